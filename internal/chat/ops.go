package chat

import (
	"html/template"
	"log/slog"
	"sync"

	"github.com/ashureev/healthguard/internal/domain"
)

// OpKind names a log mutation.
type OpKind string

const (
	OpAppend OpKind = "append"
	OpRemove OpKind = "remove"
	OpInput  OpKind = "input"
	OpReset  OpKind = "reset"
)

// Op is one mutation of the chat log, delivered to every attached sink in
// the order it happened.
type Op struct {
	Kind OpKind

	// append
	Message domain.Message
	HTML    template.HTML

	// remove
	ID string

	// input, reset
	Enabled bool
	Focus   bool

	// reset
	Log []domain.Message
}

// Sink consumes ops. Apply is called with the controller lock held and must
// not block.
type Sink interface {
	Apply(op Op)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(op Op)

// Apply calls f.
func (f SinkFunc) Apply(op Op) { f(op) }

// QueueSink buffers ops for a slow consumer and delivers them in order from
// its own goroutine. When the buffer is full the sink gives up: onDrop is
// called once and later ops are discarded.
type QueueSink struct {
	queue   chan Op
	deliver func(Op) error
	onDrop  func()

	mu      sync.Mutex
	dropped bool
	closed  bool
	done    chan struct{}
}

// NewQueueSink starts the delivery goroutine. Close must be called to stop it.
func NewQueueSink(size int, deliver func(Op) error, onDrop func()) *QueueSink {
	if size <= 0 {
		size = 32
	}
	s := &QueueSink{
		queue:   make(chan Op, size),
		deliver: deliver,
		onDrop:  onDrop,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Apply enqueues op without blocking.
func (s *QueueSink) Apply(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dropped {
		return
	}
	select {
	case s.queue <- op:
	default:
		s.dropped = true
		if s.onDrop != nil {
			go s.onDrop()
		}
	}
}

func (s *QueueSink) run() {
	defer close(s.done)
	for op := range s.queue {
		s.mu.Lock()
		dropped := s.dropped
		s.mu.Unlock()
		if dropped {
			continue // drain so Close never blocks
		}
		if err := s.deliver(op); err != nil {
			slog.Debug("chat sink delivery failed", "op", op.Kind, "error", err)
			s.mu.Lock()
			s.dropped = true
			s.mu.Unlock()
		}
	}
}

// Close stops accepting ops and waits for the queued ones to be handled.
func (s *QueueSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

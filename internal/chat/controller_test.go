package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashureev/healthguard/internal/agent"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/identity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type querierFunc func(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, error)

func (f querierFunc) Query(ctx context.Context, req domain.QueryRequest) (*domain.AgentResponse, error) {
	return f(ctx, req)
}

type recordingSink struct {
	mu  sync.Mutex
	ops []Op
}

func (s *recordingSink) Apply(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ops))
	for _, op := range s.ops {
		switch op.Kind {
		case OpAppend:
			out = append(out, "append:"+string(op.Message.Role))
		case OpInput:
			out = append(out, fmt.Sprintf("input:%t", op.Enabled))
		default:
			out = append(out, string(op.Kind))
		}
	}
	return out
}

type memRecorder struct {
	mu        sync.Mutex
	exchanges []*domain.Exchange
}

func (r *memRecorder) RecordExchange(_ context.Context, ex *domain.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, ex)
	return nil
}

func testIdentity() identity.ClientIdentity {
	return identity.NewWithPrefix(identity.WebUserPrefix, time.UnixMilli(1700000000000))
}

func vitaminC() *domain.AgentResponse {
	return &domain.AgentResponse{
		FinalAnswer:     "No.",
		Verdict:         "False",
		ReasoningTrace:  "...",
		Evidence:        []domain.EvidenceItem{},
		Recommendations: []string{"See a doctor"},
	}
}

// attachRecorder attaches a sink and discards the initial reset op.
func attachRecorder(c *Controller) *recordingSink {
	sink := &recordingSink{}
	c.Attach(sink)
	sink.ops = nil
	return sink
}

func TestSendVitaminC(t *testing.T) {
	var got domain.QueryRequest
	q := querierFunc(func(_ context.Context, req domain.QueryRequest) (*domain.AgentResponse, error) {
		got = req
		return vitaminC(), nil
	})
	id := testIdentity()
	c := NewController(id, q)
	sink := attachRecorder(c)

	turn, err := c.Send(context.Background(), "  Does vitamin C cure colds?  ")
	require.NoError(t, err)
	require.NotNil(t, turn)
	require.NoError(t, turn.Err)

	assert.Equal(t, domain.QueryRequest{UserID: id.UserID, SessionID: id.SessionID, Query: "Does vitamin C cure colds?"}, got)

	log, state := c.Snapshot()
	assert.Equal(t, StateIdle, state)
	require.Len(t, log, 2)
	assert.Equal(t, domain.RoleUser, log[0].Role)
	assert.Equal(t, "Does vitamin C cure colds?", log[0].Text)
	assert.Equal(t, domain.RoleAgent, log[1].Role)
	assert.Equal(t, "No.", log[1].Text)
	require.NotNil(t, log[1].Data)
	assert.Equal(t, "False", log[1].Data.Verdict)

	assert.Equal(t, []string{
		"append:user", "input:false", "append:placeholder", "remove", "append:agent", "input:true",
	}, sink.kinds())

	card := string(sink.ops[4].HTML)
	assert.Contains(t, card, "verdict-badge v-false")
	assert.Contains(t, card, "FALSE")
	assert.Contains(t, card, "<strong>Analysis:</strong> ...")
	assert.Contains(t, card, `<div class="msg-content">No.</div>`)
	assert.Contains(t, card, "<li>See a doctor</li>")
	assert.NotContains(t, card, "evidence-box")

	last := sink.ops[5]
	assert.True(t, last.Enabled)
	assert.True(t, last.Focus)
}

func TestSendNetworkRejection(t *testing.T) {
	q := querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		return nil, fmt.Errorf("%w: dial tcp 127.0.0.1:8000: connect: connection refused", agent.ErrQueryFailed)
	})
	c := NewController(testIdentity(), q)
	sink := attachRecorder(c)

	turn, err := c.Send(context.Background(), "Is garlic an antibiotic?")
	require.NoError(t, err)
	require.ErrorIs(t, turn.Err, agent.ErrQueryFailed)

	log, state := c.Snapshot()
	assert.Equal(t, StateIdle, state)
	require.Len(t, log, 2)

	agents := 0
	for _, m := range log {
		if m.Role == domain.RoleAgent {
			agents++
			assert.Equal(t, ConnectionErrorText, m.Text)
			assert.Nil(t, m.Data)
		}
	}
	assert.Equal(t, 1, agents)

	assert.Equal(t, []string{
		"append:user", "input:false", "append:placeholder", "remove", "append:agent", "input:true",
	}, sink.kinds())

	bubble := string(sink.ops[4].HTML)
	assert.Contains(t, bubble, "Connection Error")
	assert.NotContains(t, bubble, "verdict-badge")
	assert.NotContains(t, bubble, "evidence-box")
	assert.NotContains(t, bubble, "rec-box")
}

func TestSendBlankInputIsNoop(t *testing.T) {
	called := false
	q := querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		called = true
		return vitaminC(), nil
	})
	c := NewController(testIdentity(), q)
	sink := attachRecorder(c)

	for _, in := range []string{"", "   ", "\n\t"} {
		turn, err := c.Send(context.Background(), in)
		require.NoError(t, err)
		assert.Nil(t, turn)
	}

	assert.False(t, called)
	assert.Empty(t, sink.kinds())
	log, state := c.Snapshot()
	assert.Empty(t, log)
	assert.Equal(t, StateIdle, state)
}

func TestSendWhileSendingIsBusy(t *testing.T) {
	release := make(chan struct{})
	q := querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		<-release
		return vitaminC(), nil
	})
	c := NewController(testIdentity(), q)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Send(context.Background(), "first")
	}()

	require.Eventually(t, func() bool { return c.State() == StateSending }, time.Second, 5*time.Millisecond)

	turn, err := c.Send(context.Background(), "second")
	require.ErrorIs(t, err, ErrBusy)
	assert.Nil(t, turn)

	log, _ := c.Snapshot()
	require.Len(t, log, 2)
	assert.Equal(t, "first", log[0].Text)
	assert.True(t, log[1].IsPlaceholder())

	close(release)
	<-done

	log, state := c.Snapshot()
	assert.Equal(t, StateIdle, state)
	require.Len(t, log, 2)
	for _, m := range log {
		assert.False(t, m.IsPlaceholder())
	}
}

func TestPlaceholderNeverOrphaned(t *testing.T) {
	calls := 0
	q := querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		calls++
		if calls%2 == 0 {
			return nil, agent.ErrQueryFailed
		}
		return vitaminC(), nil
	})
	c := NewController(testIdentity(), q)

	for i := 0; i < 6; i++ {
		_, err := c.Send(context.Background(), fmt.Sprintf("claim %d", i))
		require.NoError(t, err)
	}

	log, _ := c.Snapshot()
	require.Len(t, log, 12)
	for i, m := range log {
		assert.False(t, m.IsPlaceholder(), "message %d", i)
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role)
		} else {
			assert.Equal(t, domain.RoleAgent, m.Role)
		}
	}
}

func TestSendRecordsExchange(t *testing.T) {
	rec := &memRecorder{}
	fail := false
	q := querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		if fail {
			return nil, fmt.Errorf("%w: status 502", agent.ErrQueryFailed)
		}
		return vitaminC(), nil
	})
	id := testIdentity()
	c := NewController(id, q, WithRecorder(rec))

	_, err := c.Send(context.Background(), "Does vitamin C cure colds?")
	require.NoError(t, err)
	fail = true
	_, err = c.Send(context.Background(), "again")
	require.NoError(t, err)

	require.Len(t, rec.exchanges, 2)
	assert.Equal(t, domain.OutcomeRendered, rec.exchanges[0].Outcome)
	assert.Equal(t, "False", rec.exchanges[0].Verdict)
	assert.Equal(t, id.SessionID, rec.exchanges[0].SessionID)
	assert.Equal(t, domain.OutcomeErrored, rec.exchanges[1].Outcome)
	assert.Contains(t, rec.exchanges[1].Error, "status 502")
}

func TestAttachReplaysLog(t *testing.T) {
	c := NewController(testIdentity(), querierFunc(func(context.Context, domain.QueryRequest) (*domain.AgentResponse, error) {
		return vitaminC(), nil
	}))
	c.Welcome()

	sink := &recordingSink{}
	id := c.Attach(sink)
	require.Len(t, sink.ops, 1)
	reset := sink.ops[0]
	assert.Equal(t, OpReset, reset.Kind)
	require.Len(t, reset.Log, 1)
	assert.Equal(t, WelcomeText, reset.Log[0].Text)
	assert.True(t, reset.Enabled)
	assert.Equal(t, 1, c.SinkCount())

	c.Detach(id)
	assert.Equal(t, 0, c.SinkCount())
	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, sink.ops, 1)
}

func TestRenderAppendsAtEnd(t *testing.T) {
	c := NewController(testIdentity(), nil)
	sink := attachRecorder(c)

	c.Render("one", domain.RoleUser, nil)
	c.Render("two", domain.RoleAgent, vitaminC())

	log, _ := c.Snapshot()
	require.Len(t, log, 2)
	assert.Equal(t, "one", log[0].Text)
	assert.Equal(t, "two", log[1].Text)
	assert.Equal(t, []string{"append:user", "append:agent"}, sink.kinds())
	assert.Regexp(t, `^msg-[0-9a-f-]{36}$`, log[0].ID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
}

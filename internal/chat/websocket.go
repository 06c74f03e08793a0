package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/metrics"
	"github.com/ashureev/healthguard/internal/render"
)

const (
	wsWriteTimeout = 5 * time.Second
	// wsFrameOverhead covers the JSON envelope around a claim.
	wsFrameOverhead = 1 << 10
)

// WebSocketHandler attaches a page's socket to its controller.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
	sendQueue     int
	maxBody       int64
}

// NewWebSocketHandler creates a websocket handler. Routes using it must run
// behind identity.Middleware. maxBody caps the claim carried by one frame,
// matching the HTTP send route.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool, sendQueue int, maxBody int64) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		sendQueue:     sendQueue,
		maxBody:       maxBody,
	}
}

// wsMessage is a frame sent by the page.
type wsMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	c, err := h.hub.Lookup(sessionID)
	if err != nil {
		http.Error(w, `{"error":"unknown session, reload the page"}`, http.StatusNotFound)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	if h.maxBody > 0 {
		ws.SetReadLimit(h.maxBody + wsFrameOverhead)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := NewQueueSink(h.sendQueue,
		func(op Op) error { return writeOp(ws, op) },
		func() {
			metrics.WebSocketDropped.Inc()
			slog.Warn("WebSocket send queue full, dropping client", "user_id", userID, "session_id", sessionID)
			_ = ws.Close(websocket.StatusPolicyViolation, "send queue full")
		},
	)
	sinkID := c.Attach(sink)

	var sends sync.WaitGroup
	h.readLoop(ctx, ws, c, &sends, userID)

	c.Detach(sinkID)
	sends.Wait()
	sink.Close()
	slog.Info("Chat socket closed", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop dispatches page frames until the socket closes. Queries run in
// their own goroutine so pings and close frames are still read meanwhile.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, c *Controller, sends *sync.WaitGroup, userID string) {
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		switch msg.Type {
		case "send":
			sends.Add(1)
			go func(text string) {
				defer sends.Done()
				// The query outlives the socket.
				if _, err := c.Send(context.WithoutCancel(ctx), text); errors.Is(err, ErrBusy) {
					if werr := writeFrame(ws, map[string]any{"op": "busy"}); werr != nil {
						slog.Debug("Failed to send busy notice", "error", werr)
					}
				}
			}(msg.Text)
		case "ping":
			if err := writeFrame(ws, map[string]any{"op": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			slog.Debug("Ignoring websocket frame", "type", msg.Type, "user_id", userID)
		}
	}
}

// frame converts an op into its wire form.
func frame(op Op) (map[string]any, error) {
	switch op.Kind {
	case OpAppend:
		return map[string]any{
			"op":   string(OpAppend),
			"id":   op.Message.ID,
			"role": string(op.Message.Role),
			"html": string(op.HTML),
		}, nil
	case OpRemove:
		return map[string]any{"op": string(OpRemove), "id": op.ID}, nil
	case OpInput:
		return map[string]any{"op": string(OpInput), "enabled": op.Enabled, "focus": op.Focus}, nil
	case OpReset:
		html, err := render.HTMLLog(op.Log)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"op":      string(OpReset),
			"html":    string(html),
			"enabled": op.Enabled,
			"focus":   op.Focus,
		}, nil
	default:
		return nil, errors.New("unknown op " + string(op.Kind))
	}
}

func writeOp(ws *websocket.Conn, op Op) error {
	f, err := frame(op)
	if err != nil {
		return err
	}
	return writeFrame(ws, f)
}

func writeFrame(ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, v)
}

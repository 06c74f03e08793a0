package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/healthguard/internal/chat"
	"github.com/ashureev/healthguard/internal/domain"
	"github.com/ashureev/healthguard/internal/identity"
	"github.com/ashureev/healthguard/internal/render"
	"github.com/ashureev/healthguard/web"
)

const defaultMaxBody = 64 << 10

// ChatHandler serves the chat page and its JSON API.
type ChatHandler struct {
	*Handler
	maxBody     int64
	suggestions []string
}

// NewChatHandler creates a chat handler. maxBody caps request bodies.
func NewChatHandler(base *Handler, maxBody int64, suggestions []string) *ChatHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &ChatHandler{Handler: base, maxBody: maxBody, suggestions: suggestions}
}

// RegisterRoutes registers the page and chat API routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(identity.Middleware(h.hub))
		r.Post("/send", h.Send)
		r.Get("/log", h.Log)
		r.Get("/exchanges", h.Exchanges)
	})
}

// Index opens a new chat session and renders the page around its log.
func (h *ChatHandler) Index(w http.ResponseWriter, r *http.Request) {
	c := h.hub.Create()
	id := c.Identity()
	log, state := c.Snapshot()

	logHTML, err := render.HTMLLog(log)
	if err != nil {
		slog.Error("Failed to render chat log", "error", err, "session_id", id.SessionID)
		Error(w, http.StatusInternalServerError, "render_failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := web.RenderPage(w, web.Page{
		UserID:      id.UserID,
		SessionID:   id.SessionID,
		Suggestions: h.suggestions,
		Log:         logHTML,
		InputOpen:   state == chat.StateIdle,
		MaxBody:     h.maxBody,
	}); err != nil {
		slog.Error("Failed to render chat page", "error", err, "session_id", id.SessionID)
	}
}

type sendRequest struct {
	Text string `json:"text"`
}

type messageJSON struct {
	domain.Message
	HTML string `json:"html"`
}

type logResponse struct {
	SessionID string        `json:"session_id"`
	State     string        `json:"state"`
	Messages  []messageJSON `json:"messages"`
	HTML      string        `json:"html"`
}

type sendResponse struct {
	logResponse
	Appended []messageJSON `json:"appended"`
}

// Send runs one query synchronously for clients without a websocket.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			Error(w, http.StatusRequestEntityTooLarge, "request_too_large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid_request_body")
		return
	}

	turn, err := c.Send(context.WithoutCancel(r.Context()), req.Text)
	if errors.Is(err, chat.ErrBusy) {
		Error(w, http.StatusConflict, "query_in_flight")
		return
	}
	if err != nil {
		slog.Error("Chat send failed", "error", err, "session_id", c.Identity().SessionID)
		Error(w, http.StatusInternalServerError, "send_failed")
		return
	}

	resp, err := snapshot(c)
	if err != nil {
		Error(w, http.StatusInternalServerError, "render_failed")
		return
	}
	out := sendResponse{logResponse: resp, Appended: []messageJSON{}}
	if turn != nil {
		for _, m := range []domain.Message{turn.User, turn.Reply} {
			mj, err := toJSON(m)
			if err != nil {
				Error(w, http.StatusInternalServerError, "render_failed")
				return
			}
			out.Appended = append(out.Appended, mj)
		}
	}
	JSON(w, http.StatusOK, out)
}

// Log returns the current log of the calling page.
func (h *ChatHandler) Log(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	resp, err := snapshot(c)
	if err != nil {
		Error(w, http.StatusInternalServerError, "render_failed")
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Exchanges lists the audit records of the calling page, newest first.
func (h *ChatHandler) Exchanges(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}

	exchanges, err := h.repo.ListExchanges(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("Failed to list exchanges", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "list_failed")
		return
	}
	if exchanges == nil {
		exchanges = []*domain.Exchange{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"exchanges":  exchanges,
	})
}

func (h *ChatHandler) controller(w http.ResponseWriter, r *http.Request) (*chat.Controller, bool) {
	c, err := h.hub.Lookup(identity.SessionIDFromContext(r.Context()))
	if err != nil {
		Error(w, http.StatusNotFound, "session_not_found")
		return nil, false
	}
	return c, true
}

func snapshot(c *chat.Controller) (logResponse, error) {
	log, state := c.Snapshot()
	resp := logResponse{
		SessionID: c.Identity().SessionID,
		State:     state.String(),
		Messages:  make([]messageJSON, 0, len(log)),
	}
	for _, m := range log {
		mj, err := toJSON(m)
		if err != nil {
			return logResponse{}, err
		}
		resp.Messages = append(resp.Messages, mj)
		resp.HTML += mj.HTML
	}
	return resp, nil
}

func toJSON(m domain.Message) (messageJSON, error) {
	html, err := render.HTML(m)
	if err != nil {
		return messageJSON{}, err
	}
	return messageJSON{Message: m, HTML: string(html)}, nil
}

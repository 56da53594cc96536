package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/ratelimit"
	"github.com/haasonsaas/toolchat/internal/security"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// chatRequest is the body of the chat endpoints and of websocket frames.
type chatRequest struct {
	Message string           `json:"message"`
	History []models.Message `json:"history,omitempty"`
	UserID  string           `json:"userId,omitempty"`
}

var errEmptyMessage = errors.New("message is required")

func (c *chatRequest) validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return errEmptyMessage
	}
	if !security.IsSafePrompt(c.Message) {
		return errors.New("message is too long or contains control characters")
	}
	for i, m := range c.History {
		if !security.IsSafePrompt(m.Content) {
			return fmt.Errorf("history[%d] is too long or contains control characters", i)
		}
	}
	return nil
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	actor := s.resolveActor(r, req.UserID)
	exec, ctx := s.executionContext(r, actor)

	result, err := s.deps.Chat.Chat(ctx, agent.ChatRequest{
		Prompt:  req.Message,
		History: req.History,
		Exec:    exec,
	})
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleChatStream answers with server-sent events, one StreamEvent per
// "data:" line. A rate limit rejection happens before any event and is a
// plain 429.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	actor := s.resolveActor(r, req.UserID)
	exec, ctx := s.executionContext(r, actor)

	events, err := s.deps.Chat.ChatStream(ctx, agent.ChatRequest{
		Prompt:  req.Message,
		History: req.History,
		Exec:    exec,
	})
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to encode stream event", "type", ev.Type, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// Client went away. The orchestrator observes the cancelled
			// request context and closes the channel.
			s.logger.DebugContext(ctx, "stream client disconnected", "error", err)
			drain(events)
			return
		}
		flusher.Flush()
	}
}

func drain(events <-chan models.StreamEvent) {
	for range events {
	}
}

// writeChatError maps control-plane failures to HTTP statuses.
func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rateErr     *agent.RateLimitError
		timeoutErr  *agent.TimeoutError
		upstreamErr *agent.UpstreamError
	)
	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.ResetIn.Seconds()))))
		writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
			Error: rateErr.Error(),
			Status: ratelimit.Status{
				Key:       rateErr.Key,
				Limit:     rateErr.Limit,
				Remaining: rateErr.Remaining,
				ResetInMs: rateErr.ResetIn.Milliseconds(),
			},
		})
	case errors.As(err, &timeoutErr):
		writeError(w, http.StatusGatewayTimeout, timeoutErr.Error())
	case errors.As(err, &upstreamErr):
		writeError(w, http.StatusBadGateway, upstreamErr.Error())
	case r.Context().Err() != nil:
		// Client cancelled; nobody is listening.
		s.logger.DebugContext(r.Context(), "chat cancelled by client")
	default:
		s.logger.ErrorContext(r.Context(), "chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type rateLimitResponse struct {
	Error  string           `json:"error"`
	Status ratelimit.Status `json:"status"`
}

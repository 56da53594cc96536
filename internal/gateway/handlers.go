package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/haasonsaas/toolchat/internal/auth"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// The client may have disconnected.
		return
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	actor := s.resolveActor(r, "")
	exec, _ := s.executionContext(r, actor)
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.deps.Chat.Registry().ListAvailable(exec),
	})
}

// handleHistory lists the caller's own exchanges. Admins may read another
// user's history with ?user_id=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotImplemented, "chat history is not configured")
		return
	}
	actor := s.resolveActor(r, "")
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	target := actor.ID
	if requested := r.URL.Query().Get("user_id"); requested != "" && requested != actor.ID {
		decision := auth.CheckPermission(auth.ActionRead, requested, actor)
		if !decision.Allowed {
			writeError(w, http.StatusForbidden, decision.Reason)
			return
		}
		target = requested
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.deps.History.ListByUser(r.Context(), target, limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "history lookup failed", "user_id", target, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId":  target,
		"entries": entries,
	})
}

func (s *Server) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Limiter == nil {
		writeError(w, http.StatusNotImplemented, "rate limiting is disabled")
		return
	}
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Limiter.GetStatus(key))
}

package gateway

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/auth"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const userIDHeader = "X-User-ID"

// resolveActor identifies the caller. A bearer JWT wins; otherwise, when
// header identity is allowed, the x-user-id header and then the body
// userId are consulted. The id must name a stored user. Every failure
// degrades to anonymous.
func (s *Server) resolveActor(r *http.Request, bodyUserID string) *models.User {
	ctx := r.Context()
	id := ""
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" && s.deps.JWT.Enabled() {
		subject, err := s.deps.JWT.Validate(token)
		if err != nil {
			s.logger.DebugContext(ctx, "bearer token rejected", "error", err)
		} else {
			id = subject
		}
	}
	if id == "" && s.deps.AllowHeaderIdentity {
		id = strings.TrimSpace(r.Header.Get(userIDHeader))
		if id == "" {
			id = strings.TrimSpace(bodyUserID)
		}
	}
	if id == "" {
		return nil
	}
	return s.lookupUser(ctx, id)
}

func (s *Server) lookupUser(ctx context.Context, id string) *models.User {
	if s.deps.Users == nil {
		return nil
	}
	user, err := s.deps.Users.Get(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "actor lookup failed, continuing anonymously", "user_id", id, "error", err)
		return nil
	}
	return user
}

// executionContext builds the per-call context. The request id is the one
// minted by requestIDMiddleware, never a client-supplied value.
func (s *Server) executionContext(r *http.Request, actor *models.User) (*agent.ExecutionContext, context.Context) {
	exec := agent.NewExecutionContext(actor, clientIP(r), r.UserAgent())
	ctx := r.Context()
	if id := observability.GetRequestID(ctx); id != "" {
		exec.RequestID = id
	} else {
		ctx = observability.AddRequestID(ctx, exec.RequestID)
	}
	exec.CorrelationID = observability.GetCorrelationID(ctx)
	return exec, withActor(ctx, actor)
}

func withActor(ctx context.Context, actor *models.User) context.Context {
	ctx = auth.WithActor(ctx, actor)
	if actor != nil {
		ctx = observability.AddUserID(ctx, actor.ID)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

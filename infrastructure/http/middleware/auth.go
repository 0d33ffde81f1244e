package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// AccessTokenQueryParam carries the token for clients that cannot set headers (EventSource)
const AccessTokenQueryParam = "access_token"

type subjectKey struct{}

// subjectSlot lets an outer middleware see the subject authenticated further in
type subjectSlot struct {
	subject domain.Subject
	set     bool
}

type subjectSlotKey struct{}

// TokenValidator resolves a bearer token to the subject it was issued for
type TokenValidator interface {
	ValidateAccessToken(token string) (domain.Subject, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
	logger logger.Logger
}

func NewAuthMiddleware(tokens TokenValidator, log logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &AuthMiddleware{
		tokens: tokens,
		logger: log,
	}
}

// RequireAuth rejects requests without a valid Authorization: Bearer token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.authenticate(next, false)
}

// RequireStreamAuth also accepts the token from the access_token query parameter
func (m *AuthMiddleware) RequireStreamAuth(next http.Handler) http.Handler {
	return m.authenticate(next, true)
}

func (m *AuthMiddleware) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, msg := extractToken(r, allowQuery)
		if token == "" {
			response.Unauthorized(w, msg)
			return
		}

		subject, err := m.tokens.ValidateAccessToken(token)
		if err != nil {
			logger.LogSecurityEvent(r.Context(), m.logger, "invalid_access_token", "LOW", map[string]interface{}{
				"path":  r.URL.Path,
				"ip":    getClientIP(r),
				"error": err.Error(),
			})
			response.Unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

func extractToken(r *http.Request, allowQuery bool) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if allowQuery {
			if token := r.URL.Query().Get(AccessTokenQueryParam); token != "" {
				return token, ""
			}
		}
		return "", "Authorization header required"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization header format"
	}
	if parts[1] == "" {
		return "", "Token cannot be empty"
	}
	return parts[1], ""
}

// WithSubject attaches the authenticated subject to ctx and records it for RequestLogger
func WithSubject(ctx context.Context, subject domain.Subject) context.Context {
	if slot, ok := ctx.Value(subjectSlotKey{}).(*subjectSlot); ok {
		slot.subject = subject
		slot.set = true
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject set by RequireAuth
func SubjectFromContext(ctx context.Context) (domain.Subject, bool) {
	subject, ok := ctx.Value(subjectKey{}).(domain.Subject)
	return subject, ok
}

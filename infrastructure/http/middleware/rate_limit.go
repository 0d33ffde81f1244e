package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/ratelimit"
)

type RateLimitMiddleware struct {
	rateLimitService ratelimit.RateLimitService
	logger           logger.Logger
	retryAfter       time.Duration
}

func NewRateLimitMiddleware(rateLimitService ratelimit.RateLimitService, log logger.Logger, retryAfter time.Duration) *RateLimitMiddleware {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		logger:           log,
		retryAfter:       retryAfter,
	}
}

// RateLimit limits writes per authenticated subject, falling back to client IP.
// Limiter failures let the request through.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := getClientIP(r)

		key := fmt.Sprintf("write:ip:%s", clientIP)
		if subject, ok := SubjectFromContext(ctx); ok {
			key = fmt.Sprintf("write:user:%s", subject.ID)
		}

		allowed, err := m.rateLimitService.Allow(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_exceeded", "MEDIUM", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})

			if m.retryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.retryAfter.Seconds())))
			}
			response.TooManyRequests(w, "Too many requests. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

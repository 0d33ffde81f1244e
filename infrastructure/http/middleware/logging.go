package middleware

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps streaming handlers working behind the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required by the WebSocket upgrader
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger logs one line per request and turns panics into 500s
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			slot := &subjectSlot{}
			r = r.WithContext(context.WithValue(r.Context(), subjectSlotKey{}, slot))

			defer func() {
				if p := recover(); p != nil {
					log.Error(r.Context(), "Panic while serving request", nil, map[string]interface{}{
						"panic": p,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					})
					if rec.status == 0 {
						response.InternalServerError(rec, "Internal server error")
					}
				}

				fields := map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      rec.status,
					"duration_ms": time.Since(start).Milliseconds(),
					"ip":          getClientIP(r),
				}
				if slot.set {
					fields["user_id"] = slot.subject.ID
				}
				log.Info(r.Context(), "HTTP request", fields)
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

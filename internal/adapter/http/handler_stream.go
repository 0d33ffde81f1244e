package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/middleware"
	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/http/sse"
	"github.com/complaintdesk/complaintdesk/infrastructure/http/ws"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
	"github.com/complaintdesk/complaintdesk/internal/feed"
	"github.com/complaintdesk/complaintdesk/internal/gateway"
	apperror "github.com/complaintdesk/complaintdesk/pkg/error"
)

// StreamConfig tunes the live change endpoints
type StreamConfig struct {
	HeartbeatInterval time.Duration
	PingInterval      time.Duration
	AllowedOrigins    []string
}

// StreamHandler attaches SSE and WebSocket clients to the change feed
type StreamHandler struct {
	feed     *feed.Feed
	config   StreamConfig
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(changes *feed.Feed, config StreamConfig, log logger.Logger) *StreamHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StreamHandler{
		feed:     changes,
		config:   config,
		upgrader: ws.NewUpgrader(config.AllowedOrigins),
		logger:   log.WithFields(map[string]interface{}{"component": "stream_handler"}),
	}
}

// RegisterRoutes registers the stream routes
func (h *StreamHandler) RegisterRoutes(router *mux.Router, guards RouteGuards) {
	router.Handle("/api/v1/complaints/stream", guards.stream(h.StreamSSE)).Methods(http.MethodGet)
	router.Handle("/api/v1/complaints/ws", guards.stream(h.StreamWebSocket)).Methods(http.MethodGet)
}

// StreamSSE serves complaint changes as Server-Sent Events until the client leaves
func (h *StreamHandler) StreamSSE(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}
	if _, err := feed.FilterFor(subject); err != nil {
		response.FromError(w, err)
		return
	}
	if h.feed.Closed() {
		response.FromError(w, apperror.ErrUnavailable)
		return
	}

	writer, err := sse.NewWriter(w, 2*h.config.HeartbeatInterval)
	if err != nil {
		response.InternalServerError(w, "Streaming unsupported")
		return
	}

	gw, err := gateway.Attach(h.feed, subject, writer, gateway.Options{
		HeartbeatInterval: h.config.HeartbeatInterval,
		Logger:            h.logger,
	})
	if err != nil {
		// headers are already out, so the client only sees the stream end
		h.logger.Warn(r.Context(), "Failed to attach SSE session", map[string]interface{}{"error": err.Error()})
		return
	}
	defer gw.Close()

	if err := writer.Connected(gw.ID()); err != nil {
		return
	}
	h.run(r.Context(), gw, "sse")
}

// StreamWebSocket serves complaint changes over a WebSocket connection
func (h *StreamHandler) StreamWebSocket(w http.ResponseWriter, r *http.Request) {
	subject, ok := middleware.SubjectFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}
	if _, err := feed.FilterFor(subject); err != nil {
		response.FromError(w, err)
		return
	}
	if h.feed.Closed() {
		response.FromError(w, apperror.ErrUnavailable)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Debug(r.Context(), "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	conn := ws.NewConn(raw, h.config.PingInterval)
	defer conn.Close()

	gw, err := gateway.Attach(h.feed, subject, conn, gateway.Options{
		HeartbeatInterval: h.config.PingInterval,
		Logger:            h.logger,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "Failed to attach WebSocket session", map[string]interface{}{"error": err.Error()})
		return
	}
	defer gw.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		if err := conn.ReadPump(); err != nil {
			h.logger.Debug(ctx, "WebSocket read failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := conn.Connected(gw.ID()); err != nil {
		return
	}
	h.run(ctx, gw, "websocket")
}

func (h *StreamHandler) run(ctx context.Context, gw *gateway.Gateway, transport string) {
	start := time.Now()
	fields := map[string]interface{}{
		"transport":     transport,
		"subscriber_id": gw.ID(),
		"user_id":       gw.Subject().ID,
		"role":          string(gw.Subject().Role),
	}
	h.logger.Info(ctx, "Stream session opened", fields)

	err := gw.Run(ctx)

	closed := map[string]interface{}{
		"duration": time.Since(start).String(),
		"dropped":  gw.Dropped(),
	}
	for k, v := range fields {
		closed[k] = v
	}
	if err != nil {
		closed["error"] = err.Error()
	}
	h.logger.Info(ctx, "Stream session closed", closed)
}


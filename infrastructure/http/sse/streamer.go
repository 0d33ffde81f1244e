package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/complaintdesk/complaintdesk/internal/domain"
)

// Event names written on the stream
const (
	EventConnected       = "connected"
	EventComplaintChange = "complaint.changed"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// Writer is a Server-Sent Events sink for one HTTP response.
// It is used from a single goroutine.
type Writer struct {
	w          http.ResponseWriter
	rc         *http.ResponseController
	flusher    http.Flusher
	writeLimit time.Duration
}

// NewWriter writes the SSE headers and flushes them
func NewWriter(w http.ResponseWriter, writeLimit time.Duration) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{
		w:          w,
		rc:         http.NewResponseController(w),
		flusher:    flusher,
		writeLimit: writeLimit,
	}, nil
}

// extendDeadline keeps long-lived streams alive past the server WriteTimeout.
// A non-positive writeLimit clears the deadline.
func (s *Writer) extendDeadline() {
	if s.writeLimit <= 0 {
		_ = s.rc.SetWriteDeadline(time.Time{})
		return
	}
	_ = s.rc.SetWriteDeadline(time.Now().Add(s.writeLimit))
}

// Connected announces the subscription to the client
func (s *Writer) Connected(subscriberID string) error {
	return s.WriteEvent(EventConnected, "", map[string]interface{}{
		"subscriber_id": subscriberID,
		"timestamp":     time.Now().UTC(),
	})
}

// Send implements gateway.Sink
func (s *Writer) Send(ctx context.Context, evt domain.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := fmt.Sprintf("%s@%d", evt.ComplaintID, evt.Timestamp.UnixMicro())
	return s.WriteEvent(EventComplaintChange, id, evt)
}

// Heartbeat implements gateway.Heartbeater with an SSE comment line
func (s *Writer) Heartbeat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.extendDeadline()
	if _, err := fmt.Fprint(s.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteEvent writes one named event with a JSON payload
func (s *Writer) WriteEvent(eventType, id string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.extendDeadline()
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

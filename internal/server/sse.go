package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jonathan/storybook/internal/pipeline"
)

// SSE frame names
const (
	FrameReviewRequest  = "review_request"
	FrameReviewRejected = "review_rejected"
	FrameComplete       = "complete"
	FrameError          = "error"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

// NewSSEWriter sets the stream headers and lifts the server write deadline
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	rc, err := liftWriteDeadline(w)
	if err != nil {
		return nil, err
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSEWriter{w: w, rc: rc}
	if err := s.flush(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteEvent sends one frame. An empty name writes an unnamed frame.
func (s *SSEWriter) WriteEvent(name string, data any) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", name, err)
	}

	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return s.flush()
}

// WriteProgress maps a pipeline event onto its frame
func (s *SSEWriter) WriteProgress(e pipeline.Event) error {
	switch ev := e.(type) {
	case pipeline.ReviewRequest:
		return s.WriteEvent(FrameReviewRequest, ev)
	case pipeline.ReviewRejected:
		return s.WriteEvent(FrameReviewRejected, ev)
	case pipeline.ErrorEvent:
		return s.WriteError(ev.Error)
	case pipeline.FinalResult:
		if err := s.WriteEvent("", ev); err != nil {
			return err
		}
		return s.WriteEvent(FrameComplete, ev)
	default:
		return s.WriteEvent("", ev)
	}
}

// WriteError sends an error frame
func (s *SSEWriter) WriteError(message string) error {
	return s.WriteEvent(FrameError, map[string]string{"error": message})
}

// KeepAlive writes a comment line so idle connections stay open
func (s *SSEWriter) KeepAlive() error {
	if _, err := io.WriteString(s.w, ": keep-alive\n\n"); err != nil {
		return err
	}
	return s.flush()
}

func (s *SSEWriter) flush() error {
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("streaming not supported: %w", err)
	}
	return nil
}

// liftWriteDeadline removes the server write timeout for a long-running response
func liftWriteDeadline(w http.ResponseWriter) (*http.ResponseController, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("failed to clear write deadline: %w", err)
	}
	return rc, nil
}

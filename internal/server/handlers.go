package server

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/review"
	"github.com/jonathan/storybook/internal/store"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

// GenerateRequest holds the /generate parameters
type GenerateRequest struct {
	Outline   string `json:"outline" validate:"required,max=4000"`
	Streaming bool   `json:"streaming"`
}

// ReviewRequest is the body of /review
type ReviewRequest struct {
	Approved   bool `json:"approved"`
	Regenerate bool `json:"regenerate"`
}

// ReviewResponse reports a delivered decision
type ReviewResponse struct {
	Status         string `json:"status"`
	Approved       bool   `json:"approved"`
	Regenerate     bool   `json:"regenerate"`
	SessionCreated bool   `json:"session_created"`
}

// handleGenerate runs the pipeline: as an SSE stream when streaming=true, otherwise
// synchronously returning the finished book.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := parseGenerateRequest(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "请提供故事大纲")
		return
	}

	if !req.Streaming {
		if _, err := liftWriteDeadline(w); err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		book, err := s.runner.Generate(r.Context(), req.Outline)
		if err != nil {
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		s.jsonResponse(w, http.StatusOK, book)
		return
	}

	id := sessionFrom(r.Context()).ID
	s.sessions.GetOrCreate(id)
	if err := s.sessions.Begin(id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	defer s.sessions.Clear(id)

	sse, err := NewSSEWriter(w)
	if err != nil {
		log.Error().Err(err).Msg("cannot stream response")
		return
	}

	s.stream(r.Context(), sse, pipeline.Request{
		SessionID: id,
		Outline:   req.Outline,
		Streaming: true,
		Reviewer:  s.sessions.Reviewer(id, s.cfg.ReviewTimeout()),
	})
}

// stream relays the run's events to the client. The run is produced on its own
// goroutine so keep-alive comments can be written while it is suspended.
func (s *Server) stream(ctx context.Context, sse *SSEWriter, req pipeline.Request) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	events := make(chan pipeline.Event)

	g.Go(func() error {
		defer close(events)
		for e := range s.runner.Stream(gctx, req) {
			select {
			case events <- e:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	logger := log.With().Str("session", req.SessionID).Logger()
	ticker := time.NewTicker(s.cfg.KeepAlive())
	defer ticker.Stop()

loop:
	for {
		select {
		case e, ok := <-events:
			if !ok {
				break loop
			}
			if err := sse.WriteProgress(e); err != nil {
				logger.Info().Err(err).Msg("client went away")
				break loop
			}
			if pipeline.Terminal(e) {
				logger.Debug().Str("event", string(e.Kind())).Msg("run finished")
			}
		case <-ticker.C:
			if err := sse.KeepAlive(); err != nil {
				logger.Info().Err(err).Msg("client went away")
				break loop
			}
		case <-gctx.Done():
			break loop
		}
	}

	cancel()
	_ = g.Wait()
}

// handleReview delivers a decision to the session's waiting run
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if !rs.Supplied {
		s.errorResponse(w, HTTPStatus(ErrMissingSession), ErrMissingSession.Error())
		return
	}

	var body ReviewRequest
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &body); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	created := s.sessions.Submit(rs.ID, review.Decision{Approved: body.Approved, Regenerate: body.Regenerate})
	log.Info().
		Str("session", rs.ID).
		Bool("approved", body.Approved).
		Bool("regenerate", body.Regenerate).
		Bool("session_created", created).
		Msg("review submitted")

	s.jsonResponse(w, http.StatusOK, ReviewResponse{
		Status:         "success",
		Approved:       body.Approved,
		Regenerate:     body.Regenerate,
		SessionCreated: created,
	})
}

// handleGetBook returns a persisted book
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		s.errorResponse(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	if s.books == nil {
		s.errorResponse(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}

	book, err := s.books.Load(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("book_id", id).Msg("failed to load book")
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, book)
}

// handleGetSession reports whether a session has a run in progress
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, sess)
}

// parseGenerateRequest reads the outline from a JSON body, a form or the query string
func parseGenerateRequest(r *http.Request) (GenerateRequest, error) {
	var req GenerateRequest

	if r.Method == http.MethodPost {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				return req, err
			}
			if err := sonic.Unmarshal(data, &req); err != nil {
				return req, err
			}
			req.Outline = strings.TrimSpace(req.Outline)
			return req, nil
		}
	}

	req.Outline = strings.TrimSpace(r.FormValue("outline"))
	req.Streaming, _ = strconv.ParseBool(strings.ToLower(r.FormValue("streaming")))
	return req, nil
}

package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionCookie carries the session id between requests
const SessionCookie = "storybook_session"

// SessionHeader is an alternative to the cookie for non-browser clients
const SessionHeader = "X-Session-ID"

type contextKey string

const sessionKey contextKey = "session"

// requestSession is the session resolved for one request
type requestSession struct {
	ID       string
	Supplied bool // The client sent the id rather than being assigned one
}

// sessionFrom returns the request's session. Every request through withSession has one.
func sessionFrom(ctx context.Context) requestSession {
	rs, _ := ctx.Value(sessionKey).(requestSession)
	return rs
}

// withSession resolves the session id, assigning one by cookie when the client has none,
// and evicts expired sessions.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if maxAge := s.cfg.SessionMaxAge(); maxAge > 0 {
			s.sessions.Sweep(maxAge)
		}

		rs := requestSession{ID: clientSessionID(r), Supplied: true}
		if rs.ID == "" || s.validate.Var(rs.ID, "max=128,printascii") != nil {
			rs = requestSession{ID: uuid.NewString()}
		}
		if _, err := r.Cookie(SessionCookie); err != nil || !rs.Supplied {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    rs.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(s.cfg.SessionMaxAge().Seconds()),
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, rs)))
	})
}

func clientSessionID(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their limit with 429
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientIP(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		response := map[string]any{
			"error":   "rate_limit_exceeded",
			"message": "Rate limit exceeded. Please try again later.",
			"limit":   info.Limit,
		}
		if info.RetryAfter > 0 {
			secs := int(info.RetryAfter.Seconds()) + 1
			response["retry_after"] = secs
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		log.Warn().Str("client", clientIP(r)).Str("path", r.URL.Path).Int("limit", info.Limit).Msg("rate limit exceeded")
		s.jsonResponse(w, http.StatusTooManyRequests, response)
	})
}

// clientIP uses the connection address; forwarded headers are not trusted
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

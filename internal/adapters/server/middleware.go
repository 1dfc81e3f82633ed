package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/evanschultz/flare/internal/adapters/identity"
	"github.com/evanschultz/flare/internal/app"
)

// authenticate resolves the bearer token into an actor and rejects requests without one.
func authenticate(auth Authenticator, directory ActorDirectory, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := identity.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthenticated(w, "bearer token is required")
				return
			}
			actor, err := auth.Authenticate(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "err", err)
				writeUnauthenticated(w, err.Error())
				return
			}
			if directory != nil {
				if _, err := directory.SyncActor(r.Context(), actor); err != nil {
					logger.Warn("directory sync failed", "user_id", actor.UserID, "err", err)
				}
			}
			next.ServeHTTP(w, r.WithContext(app.WithActor(r.Context(), actor)))
		})
	}
}

// writeUnauthenticated writes the 401 error envelope shared by both transports.
func writeUnauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "unauthenticated",
			"message": message,
		},
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

// WriteHeader records the status before delegating.
func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

// Write records an implicit 200 before delegating.
func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Flush forwards streaming flushes used by the MCP transport.
func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// logRequests emits one structured line per request.
func logRequests(logger Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	})
}

// recoverPanics converts handler panics into 500 responses.
func recoverPanics(logger Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			logger.Error("panic recovered", "method", r.Method, "path", r.URL.Path, "panic", recovered)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"internal server error"}}` + "\n"))
		}()
		next.ServeHTTP(w, r)
	})
}

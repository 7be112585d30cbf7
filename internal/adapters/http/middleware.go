package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeySession   ctxKey = "session"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		outcome := "success"
		if statusCode >= 400 {
			outcome = "failure"
		}

		fields := []any{
			"operation", "http_request",
			"outcome", outcome,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case statusCode >= 500:
			httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			httpLogger().WarnContext(r.Context(), "http request completed", fields...)
		default:
			httpLogger().InfoContext(r.Context(), "http request completed", fields...)
		}
	})
}

// metricsMiddleware observes request durations labeled by the matched chi
// route pattern, so path parameters do not explode label cardinality.
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, statusCode, time.Since(start).Seconds())
	})
}

// sessionMiddleware resolves the bearer token to a live session and stores
// it on the request context. Every protected route sits behind this.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		session, err := h.service.ValidateSession(r.Context(), token)
		if err != nil {
			writeMappedError(r.Context(), w, "validate_session", err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a route group behind the role hierarchy. A caller whose
// session role ranks at or above required passes.
func (h *Handler) requireRole(required domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := sessionFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
				return
			}
			if !domain.CheckAccess(session.Role, required) {
				httpLogger().WarnContext(r.Context(), "access denied",
					"operation", "require_role",
					"outcome", "denied",
					"request_id", requestIDFromContext(r.Context()),
					"username", session.Username,
					"role", session.Role,
					"required_role", required,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	v := ctx.Value(ctxKeySession)
	session, ok := v.(domain.Session)
	return session, ok
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

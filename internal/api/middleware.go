package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"consult-intake/internal/common/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	SessionHeader   = "X-Wizard-Session"
	SessionCookie   = "consult_session"
)

type sessionKey struct{}

// RequestID reuses the caller's X-Request-ID or issues a new one, echoes it
// on the response and stores it for logger.FromContext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

// AccessLog logs one line per request, at a level chosen by status.
func AccessLog(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]interface{}{
				"status":    status,
				"method":    r.Method,
				"path":      r.URL.Path,
				"latencyMs": time.Since(start).Milliseconds(),
				"bytes":     ww.BytesWritten(),
			}
			l := logger.FromContext(r.Context(), log)
			switch {
			case status >= 500:
				l.Error("request completed", fields)
			case status >= 400:
				l.Warn("request completed", fields)
			default:
				l.Info("request completed", fields)
			}
		})
	}
}

// Recover turns a handler panic into a JSON 500.
func Recover(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context(), log).Error("panic recovered", map[string]interface{}{
					"error":  fmt.Sprint(rec),
					"method": r.Method,
					"path":   r.URL.Path,
					"stack":  string(debug.Stack()),
				})
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error:     "internal_error",
					Message:   "Internal server error",
					RequestID: logger.RequestIDFromContext(r.Context()),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody caps request bodies at n bytes.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Session resolves the wizard session from the cookie or the API header and
// issues a new one on first contact. Values that are not UUIDs are replaced.
func Session(secure bool, maxAge time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
			if id == "" {
				id = r.Header.Get(SessionHeader)
			}
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(maxAge.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
		})
	}
}

// SessionID returns the wizard session resolved by Session.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"

	"github.com/warp/workforce-billing/auth"
	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/logger"
)

// =============================================================================
// ACCESS LOG
// =============================================================================

// LoggingMiddleware writes one line per request, at error level for 4xx/5xx.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []interface{}{
				"status", ww.Status(),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"latency_ms", time.Since(start).Milliseconds(),
			}
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				fields = append(fields, "request_id", reqID)
			}

			switch status := ww.Status(); {
			case status >= 500:
				log.Errorw("HTTP_REQUEST_ERROR", fields...)
			case status >= 400:
				log.Warnw("HTTP_REQUEST_WARNING", fields...)
			default:
				log.Infow("HTTP_REQUEST_INFO", fields...)
			}
		})
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type viewerKey struct{}

// ViewerFrom returns the authenticated caller stored by Authenticate.
func ViewerFrom(ctx context.Context) (billing.Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(billing.Viewer)
	return v, ok
}

func withViewer(ctx context.Context, v billing.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// Authenticate requires a valid "Authorization: Bearer <jwt>" header.
func Authenticate(issuer *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			viewer, err := issuer.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withViewer(r.Context(), viewer)))
		})
	}
}

// AllowRoles rejects authenticated callers whose role is not listed.
func AllowRoles(roles ...billing.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := ViewerFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			if !lo.Contains(roles, viewer.Role) {
				writeError(w, http.StatusForbidden, "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

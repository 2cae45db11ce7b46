package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/warp/workforce-billing/api"
	"github.com/warp/workforce-billing/auth"
	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/logger"
)

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	cases := []struct {
		status int
		msg    string
		level  zapcore.Level
	}{
		{http.StatusOK, "HTTP_REQUEST_INFO", zapcore.InfoLevel},
		{http.StatusNotFound, "HTTP_REQUEST_WARNING", zapcore.WarnLevel},
		{http.StatusInternalServerError, "HTTP_REQUEST_ERROR", zapcore.ErrorLevel},
	}
	for _, c := range cases {
		t.Run(c.msg, func(t *testing.T) {
			log, logs := observed()
			h := api.LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(c.status)
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/schedule?limit=2", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, c.msg, entry.Message)
			assert.Equal(t, c.level, entry.Level)
			fields := entry.ContextMap()
			assert.EqualValues(t, c.status, fields["status"])
			assert.Equal(t, "/api/schedule", fields["path"])
			assert.Equal(t, "limit=2", fields["query"])
		})
	}
}

func TestAllowRoles(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, found := api.ViewerFrom(r.Context())
		require.True(t, found)
		w.Header().Set("X-Viewer", v.Username)
		w.WriteHeader(http.StatusNoContent)
	})
	h := api.Authenticate(issuer)(api.AllowRoles(billing.RoleCompany)(ok))

	token, err := issuer.Issue(billing.Account{Username: "acme", Role: billing.RoleCompany})
	require.NoError(t, err)
	rec := serve(h, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acme", rec.Header().Get("X-Viewer"))

	token, err = issuer.Issue(billing.Account{Username: "budi", Role: billing.RoleEmployee})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(h, token).Code)

	rec = serve(h, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

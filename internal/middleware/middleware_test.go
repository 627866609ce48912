package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/metrics"
)

type staticVerifier map[string]core.Identity

func (v staticVerifier) Verify(_ context.Context, token string) (core.Identity, error) {
	id, ok := v[token]
	if !ok {
		return core.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func init() { gin.SetMode(gin.TestMode) }

func TestVerifyToken(t *testing.T) {
	authTime := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	verifier := staticVerifier{"good": {UID: "u1", Email: "a@example.com", AuthTime: authTime}}
	r := gin.New()
	r.Use(NewAuthMiddleware(verifier, zap.NewNop()).VerifyToken())
	r.GET("/me", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		assert.Equal(t, authTime, id.AuthTime)
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"case insensitive scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestRecoveryAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()), RequestLogger(zap.NewNop()), Metrics(m))
	r.GET("/boom/:id", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom/1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// The panicking request never returns through Metrics; only the 404 is counted.
	n, err := testutil.GatherAndCount(reg, "studentkit_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

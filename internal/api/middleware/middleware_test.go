package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/tastegraph/pkg/auth"
)

const testSecret = "0123456789abcdef0123"

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, CallerID(c))
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	v := auth.NewJWTVerifier(testSecret, "", "")
	token, err := v.Issue("u1", time.Hour)
	require.NoError(t, err)

	required := newEngine(Auth(v))
	optional := newEngine(OptionalAuth(v))

	tests := []struct {
		name       string
		engine     *gin.Engine
		header     string
		wantStatus int
		wantBody   string
	}{
		{"required ok", required, "Bearer " + token, http.StatusOK, "u1"},
		{"required lowercase scheme", required, "bearer " + token, http.StatusOK, "u1"},
		{"required missing", required, "", http.StatusUnauthorized, ""},
		{"required bad scheme", required, "Basic " + token, http.StatusUnauthorized, ""},
		{"required garbage", required, "Bearer nope", http.StatusUnauthorized, ""},
		{"optional anonymous", optional, "", http.StatusOK, ""},
		{"optional ok", optional, "Bearer " + token, http.StatusOK, "u1"},
		{"optional invalid fails closed", optional, "Bearer nope", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(tt.engine, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(0.001, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	r := newEngine(l.Middleware())
	assert.Equal(t, http.StatusOK, do(r, "").Code)
	assert.Equal(t, http.StatusOK, do(r, "").Code)
	w := do(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
}

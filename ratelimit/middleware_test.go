package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, lim Limiter, keyFunc func(*gin.Context) string) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(lim, keyFunc))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func doRequest(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddleware(t *testing.T) {
	t.Run("限流内请求正常通过", func(t *testing.T) {
		lim, err := New(&Config{
			Default: Rule{Rate: 100, Burst: 100, BlockDuration: time.Minute},
		})
		require.NoError(t, err)
		defer func() { _ = lim.Close() }()

		r := newTestRouter(t, lim, nil)
		w := doRequest(r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})

	t.Run("超过限流返回 429", func(t *testing.T) {
		lim, err := New(&Config{
			Default: Rule{Rate: 1, Burst: 1, BlockDuration: time.Minute},
		})
		require.NoError(t, err)
		defer func() { _ = lim.Close() }()

		r := newTestRouter(t, lim, nil)

		w := doRequest(r)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(r)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "rate limit exceeded")
	})

	t.Run("自定义键提取函数", func(t *testing.T) {
		lim, err := New(&Config{
			Default: Rule{Rate: 1, Burst: 1, BlockDuration: time.Minute},
		})
		require.NoError(t, err)
		defer func() { _ = lim.Close() }()

		r := newTestRouter(t, lim, func(c *gin.Context) string {
			return c.GetHeader("X-User-ID")
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-User-ID", "user-1")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-User-ID", "user-1")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("提取不到键时放行", func(t *testing.T) {
		lim, err := New(&Config{
			Default: Rule{Rate: 1, Burst: 1, BlockDuration: time.Minute},
		})
		require.NoError(t, err)
		defer func() { _ = lim.Close() }()

		r := newTestRouter(t, lim, func(c *gin.Context) string { return "" })

		for i := 0; i < 5; i++ {
			w := doRequest(r)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("nil limiter 退化为放行", func(t *testing.T) {
		r := newTestRouter(t, nil, nil)
		for i := 0; i < 5; i++ {
			w := doRequest(r)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

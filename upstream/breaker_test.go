package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_WithBreaker(t *testing.T) {
	t.Run("正常请求不影响熔断器状态", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, err := New(&Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		}, WithBreaker())
		require.NoError(t, err)
		impl := p.(*pool)

		_, err = p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, impl.endpoints[0].breaker.State())
	})

	t.Run("连续失败使熔断器打开", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p, err := New(&Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		}, WithBreaker())
		require.NoError(t, err)
		impl := p.(*pool)

		_, err = p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Equal(t, gobreaker.StateOpen, impl.endpoints[0].breaker.State())
	})

	t.Run("未启用熔断器时端点无熔断器", func(t *testing.T) {
		p, err := New(&Config{
			Endpoints: []EndpointConfig{{URL: "https://rpc-a.example.com"}},
		})
		require.NoError(t, err)
		assert.Nil(t, p.(*pool).endpoints[0].breaker)
	})
}

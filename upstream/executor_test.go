package upstream

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   Outcome
	}{
		{"200 成功", 200, nil, OutcomeSuccess},
		{"201 成功", 201, nil, OutcomeSuccess},
		{"500 服务端错误", 500, nil, OutcomeServerError},
		{"503 服务端错误", 503, nil, OutcomeServerError},
		{"429 限流", 429, nil, OutcomeRateLimited},
		{"404 客户端错误", 404, nil, OutcomeClientError},
		{"400 客户端错误", 400, nil, OutcomeClientError},
		{"传输错误", 0, errors.New("connection refused"), OutcomeConnectionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.status, tt.err))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"合法整数秒", "2", 2 * time.Second},
		{"零秒", "0", 0},
		{"缺失退回默认值", "", defaultRetryAfter},
		{"非整数退回默认值", "soon", defaultRetryAfter},
		{"负数退回默认值", "-1", defaultRetryAfter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.header))
		})
	}
}

// scriptedSource 按预设比例产出随机数的 rand.Source
//
// rand.Rand.Float64 的结果等于 Int63()/2^63，因此可以精确控制
// 加权选择落在哪个端点上。序列耗尽后回绕。
type scriptedSource struct {
	fracs []float64
	pos   int
}

func (s *scriptedSource) Int63() int64 {
	frac := s.fracs[s.pos%len(s.fracs)]
	s.pos++
	return int64(frac * float64(1<<62) * 2)
}

func (s *scriptedSource) Seed(seed int64) {}

// newTestPool 创建端点池并注入不真正等待的 sleep
func newTestPool(t *testing.T, cfg *Config, opts ...Option) (*pool, *[]time.Duration) {
	t.Helper()

	p, err := New(cfg, opts...)
	require.NoError(t, err)

	impl := p.(*pool)
	var sleeps []time.Duration
	impl.executor.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return impl, &sleeps
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("健康端点直接成功", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/data", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		res, err := p.Execute(context.Background(), http.MethodGet, "/v1/data", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, `{"ok":true}`, string(res.Body))
		assert.Equal(t, srv.URL, res.Endpoint)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("故障端点自动切换到健康端点", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer bad.Close()
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer good.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: bad.URL}, {URL: good.URL}},
			MaxRetries: 20,
		})

		res, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		assert.Equal(t, good.URL, res.Endpoint)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("A B 故障 C 正常时恰好两次失败后成功", func(t *testing.T) {
		newServer := func(status int) *httptest.Server {
			return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte("payload"))
			}))
		}
		a := newServer(http.StatusInternalServerError)
		defer a.Close()
		b := newServer(http.StatusInternalServerError)
		defer b.Close()
		c := newServer(http.StatusOK)
		defer c.Close()

		// 脚本化随机源按顺序选中 A、B、C：
		// 第 1 次 r=0 落在 A；A 失败后评分 [0.88,1,1]，r=0.5*2.88 落在 B；
		// B 失败后评分 [0.88,0.88,1]，r=0.9*2.76 落在 C。
		src := &scriptedSource{fracs: []float64{0, 0.5, 0.9}}
		p, err := New(&Config{
			Endpoints:  []EndpointConfig{{URL: a.URL}, {URL: b.URL}, {URL: c.URL}},
			MaxRetries: 3,
		}, WithRand(rand.New(src)))
		require.NoError(t, err)

		res, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		assert.Equal(t, c.URL, res.Endpoint)
		assert.Equal(t, "payload", string(res.Body))
		assert.Equal(t, 3, res.Attempts, "前两次尝试失败，第三次成功")

		byURL := map[string]EndpointStatus{}
		for _, st := range p.Endpoints() {
			byURL[st.URL] = st
		}
		assert.Equal(t, 1, byURL[a.URL].ConsecutiveErrors)
		assert.Equal(t, 1, byURL[b.URL].ConsecutiveErrors)
		assert.Equal(t, 0, byURL[c.URL].ConsecutiveErrors)
	})

	t.Run("全部失败返回重试耗尽错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		_, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)

		// 连续失败达到阈值后端点失活
		statuses := p.Endpoints()
		require.Len(t, statuses, 1)
		assert.False(t, statuses[0].Active)
		assert.Equal(t, 0.0, statuses[0].HealthScore)
	})

	t.Run("4xx 立即终止不重试", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 5,
		})

		_, err := p.Execute(context.Background(), http.MethodGet, "/missing", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClientError)
		assert.Equal(t, int32(1), calls.Load(), "客户端错误不应消耗额外尝试")
	})

	t.Run("4xx 不影响端点健康", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		// 连续多次客户端错误只反映调用方的请求问题，端点保持活跃
		for i := 0; i < 3; i++ {
			_, err := p.Execute(context.Background(), http.MethodGet, "/missing", nil)
			assert.ErrorIs(t, err, ErrClientError)
		}

		statuses := p.Endpoints()
		require.Len(t, statuses, 1)
		assert.True(t, statuses[0].Active)
		assert.Equal(t, 0, statuses[0].ConsecutiveErrors)

		res, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("429 遵循 Retry-After 暂停后重试", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, sleeps := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		res, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Attempts, "429 暂停消耗一次尝试")
		require.Len(t, *sleeps, 1)
		assert.Equal(t, 2*time.Second, (*sleeps)[0])
	})

	t.Run("429 缺少 Retry-After 时默认暂停 5 秒", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, sleeps := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		_, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.NoError(t, err)
		require.Len(t, *sleeps, 1)
		assert.Equal(t, 5*time.Second, (*sleeps)[0])
	})

	t.Run("最后一次尝试遭 429 时不再暂停", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		p, sleeps := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		_, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Len(t, *sleeps, 2, "预算耗尽后的暂停毫无意义")
	})

	t.Run("连接错误按可重试处理", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		// 先拿到地址再关闭，制造拒绝连接
		url := srv.URL
		srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: url}},
			MaxRetries: 2,
		})

		_, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	})

	t.Run("没有活跃端点返回错误", func(t *testing.T) {
		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: "https://rpc-a.example.com"}},
			MaxRetries: 3,
		})

		// 手动打满连续错误使端点失活
		for i := 0; i < 3; i++ {
			p.endpoints[0].recordFailure()
		}

		_, err := p.Execute(context.Background(), http.MethodGet, "/", nil)
		assert.ErrorIs(t, err, ErrNoEndpointsAvailable)
	})

	t.Run("请求体在重试间重放", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "payload", string(body))
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p, _ := newTestPool(t, &Config{
			Endpoints:  []EndpointConfig{{URL: srv.URL}},
			MaxRetries: 3,
		})

		res, err := p.Execute(context.Background(), http.MethodPost, "/", []byte("payload"))
		require.NoError(t, err)
		assert.Equal(t, 2, res.Attempts)
	})
}

func TestNew_ConfigValidation(t *testing.T) {
	t.Run("空端点列表返回错误", func(t *testing.T) {
		_, err := New(&Config{})
		assert.ErrorIs(t, err, ErrNoEndpointsConfigured)
	})

	t.Run("非法 URL 返回错误", func(t *testing.T) {
		_, err := New(&Config{
			Endpoints: []EndpointConfig{{URL: "not a url"}},
		})
		assert.ErrorIs(t, err, ErrInvalidEndpoint)
	})

	t.Run("权重默认为 1", func(t *testing.T) {
		p, err := New(&Config{
			Endpoints: []EndpointConfig{{URL: "https://rpc-a.example.com"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, p.Endpoints()[0].Weight)
	})
}

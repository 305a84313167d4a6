package upstream

import (
	"net/url"
	"strings"
	"time"

	"github.com/Etherlyweiner/bedrock/xerrors"
)

// EndpointConfig 单个上游端点的配置
type EndpointConfig struct {
	// URL 端点基础地址（如 https://rpc-a.example.com）
	URL string `mapstructure:"url"`

	// Weight 静态权重，>= 1，与实时健康评分相乘得到选择权重
	// （默认：1）
	Weight int `mapstructure:"weight"`
}

// Config 端点池配置
type Config struct {
	// Endpoints 端点列表，至少一个
	Endpoints []EndpointConfig `mapstructure:"endpoints"`

	// ProbeInterval 健康探测周期（默认：30 秒）
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// ProbeTimeout 单次探测超时（默认：5 秒）
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// RequestTimeout 单次业务请求尝试的超时（默认：10 秒）
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxRetries 逻辑请求的最大尝试次数，同时也是端点失活阈值
	// （连续错误达到该值的端点被标记为不活跃；默认：3）
	MaxRetries int `mapstructure:"max_retries"`

	// HealthPath 健康探测路径（默认：/health）
	HealthPath string `mapstructure:"health_path"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].Weight <= 0 {
			c.Endpoints[i].Weight = 1
		}
	}
}

// validate 验证配置
func (c *Config) validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpointsConfigured
	}
	for _, ec := range c.Endpoints {
		if ec.URL == "" {
			return xerrors.Wrap(ErrInvalidEndpoint, "url is empty")
		}
		u, err := url.Parse(ec.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return xerrors.Wrapf(ErrInvalidEndpoint, "invalid url %q", ec.URL)
		}
	}
	if c.MaxRetries < 1 {
		return xerrors.Newf("upstream: max_retries must be >= 1, got %d", c.MaxRetries)
	}
	return nil
}

// baseURL 规范化端点地址，去掉末尾斜杠
func baseURL(raw string) string {
	return strings.TrimRight(raw, "/")
}

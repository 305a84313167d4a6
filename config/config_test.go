package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app.yaml", `
upstream:
  probe_interval: 30s
  max_retries: 3
ratelimit:
  default:
    rate: 10
    burst: 20
`)

	loader, err := New(
		WithConfigName("app"),
		WithConfigPaths(dir),
		WithEnvPrefix("BEDROCKTEST"),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	t.Run("Get 读取原始值", func(t *testing.T) {
		assert.Equal(t, "30s", loader.Get("upstream.probe_interval"))
	})

	t.Run("UnmarshalKey 反序列化到结构体", func(t *testing.T) {
		var cfg struct {
			ProbeInterval string `mapstructure:"probe_interval"`
			MaxRetries    int    `mapstructure:"max_retries"`
		}
		require.NoError(t, loader.UnmarshalKey("upstream", &cfg))
		assert.Equal(t, "30s", cfg.ProbeInterval)
		assert.Equal(t, 3, cfg.MaxRetries)
	})

	t.Run("Validate 非空配置通过", func(t *testing.T) {
		assert.NoError(t, loader.Validate())
	})
}

func TestLoader_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app.yaml", "service:\n  name: from-file\n")

	t.Setenv("BEDROCKTEST_SERVICE_NAME", "from-env")

	loader, err := New(
		WithConfigName("app"),
		WithConfigPaths(dir),
		WithEnvPrefix("bedrocktest"), // 前缀会被规范化为大写
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "from-env", loader.Get("service.name"))
}

func TestLoader_MissingFile(t *testing.T) {
	loader, err := New(
		WithConfigName("does-not-exist"),
		WithConfigPaths(t.TempDir()),
	)
	require.NoError(t, err)

	// 缺失配置文件不是错误，环境变量仍然可用
	assert.NoError(t, loader.Load(context.Background()))
	assert.Error(t, loader.Validate())
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app.yaml", "limit: 5\n")

	loader, err := New(WithConfigName("app"), WithConfigPaths(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "limit")
	require.NoError(t, err)

	// 取消 context 后通道应被关闭
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/Etherlyweiner/bedrock/connector"
)

// SetupRedis 连接本地 Redis 并注册清理，-short 模式或不可用时跳过
func SetupRedis(t *testing.T) connector.RedisConnector {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"})
	if err != nil {
		t.Fatalf("testkit: create redis connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SetupEtcd 连接本地 Etcd 并注册清理，-short 模式或不可用时跳过
func SetupEtcd(t *testing.T) connector.EtcdConnector {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	conn, err := connector.NewEtcd(&connector.EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}})
	if err != nil {
		t.Fatalf("testkit: create etcd connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

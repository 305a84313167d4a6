package registry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Etherlyweiner/bedrock/xerrors"
)

// redisStore Redis 实例存储
//
// 键布局：
//   - <ns>:instance:<name>:<id>  实例哈希（扁平标量字段 + meta:* 元数据）
//   - <ns>:index:<name>          服务的实例 ID 集合
//   - <ns>:services              服务名集合
//
// 条件删除通过 Lua 脚本在服务端原子比较心跳，保证与并发心跳
// 的竞争不会误删刚刷新过的实例。
type redisStore struct {
	client    *redis.Client
	namespace string
}

// deleteIfStaleScript 比较实例当前心跳后删除，返回 1 表示已删除
var deleteIfStaleScript = redis.NewScript(`
local hb = redis.call('HGET', KEYS[1], 'last_heartbeat')
if not hb then
  return 0
end
if tonumber(hb) < tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
  redis.call('SREM', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

func newRedisStore(client *redis.Client, namespace string) *redisStore {
	return &redisStore{client: client, namespace: namespace}
}

func (s *redisStore) instanceKey(name, id string) string {
	return s.namespace + ":instance:" + name + ":" + id
}

func (s *redisStore) indexKey(name string) string {
	return s.namespace + ":index:" + name
}

func (s *redisStore) servicesKey() string {
	return s.namespace + ":services"
}

func (s *redisStore) Put(ctx context.Context, inst *ServiceInstance) error {
	fields := map[string]any{
		"id":             inst.ID,
		"name":           inst.Name,
		"host":           inst.Host,
		"port":           inst.Port,
		"status":         inst.Status,
		"last_heartbeat": inst.LastHeartbeat.UnixNano(),
	}
	for k, v := range inst.Metadata {
		fields["meta:"+k] = v
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.instanceKey(inst.Name, inst.ID), fields)
	pipe.SAdd(ctx, s.indexKey(inst.Name), inst.ID)
	pipe.SAdd(ctx, s.servicesKey(), inst.Name)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Get(ctx context.Context, name, id string) (*ServiceInstance, error) {
	fields, err := s.client.HGetAll(ctx, s.instanceKey(name, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrRegistrationNotFound
	}
	return parseInstanceHash(fields)
}

func (s *redisStore) Delete(ctx context.Context, name, id string) error {
	deleted, err := s.client.Del(ctx, s.instanceKey(name, id)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrRegistrationNotFound
	}
	return s.client.SRem(ctx, s.indexKey(name), id).Err()
}

func (s *redisStore) DeleteIfStale(ctx context.Context, name, id string, cutoff time.Time) (bool, error) {
	keys := []string{s.instanceKey(name, id), s.indexKey(name)}
	res, err := deleteIfStaleScript.Run(ctx, s.client, keys, cutoff.UnixNano(), id).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *redisStore) List(ctx context.Context, name string) ([]*ServiceInstance, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(name)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*ServiceInstance, 0, len(ids))
	for _, id := range ids {
		inst, err := s.Get(ctx, name, id)
		if err != nil {
			// 索引和哈希之间的短暂不一致，跳过即可
			if xerrors.Is(err, ErrRegistrationNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *redisStore) Names(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.servicesKey()).Result()
}

func (s *redisStore) Close() error {
	// 连接器归应用层所有
	return nil
}

// parseInstanceHash 将 Redis 哈希字段还原为实例
func parseInstanceHash(fields map[string]string) (*ServiceInstance, error) {
	port, err := strconv.Atoi(fields["port"])
	if err != nil {
		return nil, xerrors.Wrap(err, "registry: parse port")
	}
	hb, err := strconv.ParseInt(fields["last_heartbeat"], 10, 64)
	if err != nil {
		return nil, xerrors.Wrap(err, "registry: parse last_heartbeat")
	}

	inst := &ServiceInstance{
		ID:            fields["id"],
		Name:          fields["name"],
		Host:          fields["host"],
		Port:          port,
		Status:        fields["status"],
		LastHeartbeat: time.Unix(0, hb),
	}
	for k, v := range fields {
		if meta, ok := strings.CutPrefix(k, "meta:"); ok {
			if inst.Metadata == nil {
				inst.Metadata = make(map[string]string)
			}
			inst.Metadata[meta] = v
		}
	}
	return inst, nil
}

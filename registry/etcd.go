package registry

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/Etherlyweiner/bedrock/xerrors"
)

// etcdStore Etcd 实例存储
//
// 键布局：<ns>/<name>/<id>，值为实例的 JSON 序列化。
// 过期由注册表自身的清理循环负责，不使用 etcd 租约，
// 条件删除通过事务比较 ModRevision 实现：如果删除决策之后
// 实例被心跳更新过（ModRevision 变化），事务放弃删除。
type etcdStore struct {
	client    *clientv3.Client
	namespace string
}

func newEtcdStore(client *clientv3.Client, namespace string) *etcdStore {
	return &etcdStore{client: client, namespace: namespace}
}

func (s *etcdStore) instanceKey(name, id string) string {
	return s.namespace + "/" + name + "/" + id
}

func (s *etcdStore) servicePrefix(name string) string {
	return s.namespace + "/" + name + "/"
}

func (s *etcdStore) Put(ctx context.Context, inst *ServiceInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return xerrors.Wrap(err, "registry: marshal instance")
	}
	_, err = s.client.Put(ctx, s.instanceKey(inst.Name, inst.ID), string(data))
	return err
}

func (s *etcdStore) Get(ctx context.Context, name, id string) (*ServiceInstance, error) {
	resp, err := s.client.Get(ctx, s.instanceKey(name, id))
	if err != nil {
		return nil, err
	}
	if resp.Count == 0 {
		return nil, ErrRegistrationNotFound
	}

	var inst ServiceInstance
	if err := json.Unmarshal(resp.Kvs[0].Value, &inst); err != nil {
		return nil, xerrors.Wrap(err, "registry: unmarshal instance")
	}
	return &inst, nil
}

func (s *etcdStore) Delete(ctx context.Context, name, id string) error {
	resp, err := s.client.Delete(ctx, s.instanceKey(name, id))
	if err != nil {
		return err
	}
	if resp.Deleted == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

func (s *etcdStore) DeleteIfStale(ctx context.Context, name, id string, cutoff time.Time) (bool, error) {
	key := s.instanceKey(name, id)

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if resp.Count == 0 {
		return false, nil
	}

	var inst ServiceInstance
	if err := json.Unmarshal(resp.Kvs[0].Value, &inst); err != nil {
		return false, xerrors.Wrap(err, "registry: unmarshal instance")
	}
	if !inst.LastHeartbeat.Before(cutoff) {
		return false, nil
	}

	// ModRevision 不变才删除：期间有心跳写入则放弃
	txn, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", resp.Kvs[0].ModRevision)).
		Then(clientv3.OpDelete(key)).
		Commit()
	if err != nil {
		return false, err
	}
	return txn.Succeeded, nil
}

func (s *etcdStore) List(ctx context.Context, name string) ([]*ServiceInstance, error) {
	resp, err := s.client.Get(ctx, s.servicePrefix(name), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	out := make([]*ServiceInstance, 0, resp.Count)
	for _, kv := range resp.Kvs {
		var inst ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			return nil, xerrors.Wrap(err, "registry: unmarshal instance")
		}
		out = append(out, &inst)
	}
	return out, nil
}

func (s *etcdStore) Names(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, s.namespace+"/",
		clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), s.namespace+"/")
		if name, _, ok := strings.Cut(rest, "/"); ok {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *etcdStore) Close() error {
	// 连接器归应用层所有
	return nil
}

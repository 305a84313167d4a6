package registry

import (
	"context"
	"sync"
	"time"
)

// memoryStore 内存实例存储，默认后端
//
// 读多写少，用 RWMutex 保护两级 map：服务名 → 实例 ID → 实例。
type memoryStore struct {
	mu        sync.RWMutex
	instances map[string]map[string]*ServiceInstance
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		instances: make(map[string]map[string]*ServiceInstance),
	}
}

func (s *memoryStore) Put(ctx context.Context, inst *ServiceInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.instances[inst.Name]
	if !ok {
		byID = make(map[string]*ServiceInstance)
		s.instances[inst.Name] = byID
	}
	byID[inst.ID] = inst.clone()
	return nil
}

func (s *memoryStore) Get(ctx context.Context, name, id string) (*ServiceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[name][id]
	if !ok {
		return nil, ErrRegistrationNotFound
	}
	return inst.clone(), nil
}

func (s *memoryStore) Delete(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.instances[name]
	if !ok {
		return ErrRegistrationNotFound
	}
	if _, ok := byID[id]; !ok {
		return ErrRegistrationNotFound
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(s.instances, name)
	}
	return nil
}

func (s *memoryStore) DeleteIfStale(ctx context.Context, name, id string, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[name][id]
	if !ok {
		return false, nil
	}
	// 以存储中的最新心跳为准，竞态中的心跳不会被误删
	if !inst.LastHeartbeat.Before(cutoff) {
		return false, nil
	}
	delete(s.instances[name], id)
	if len(s.instances[name]) == 0 {
		delete(s.instances, name)
	}
	return true, nil
}

func (s *memoryStore) List(ctx context.Context, name string) ([]*ServiceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.instances[name]
	out := make([]*ServiceInstance, 0, len(byID))
	for _, inst := range byID {
		out = append(out, inst.clone())
	}
	return out, nil
}

func (s *memoryStore) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.instances))
	for name := range s.instances {
		names = append(names, name)
	}
	return names, nil
}

func (s *memoryStore) Close() error {
	return nil
}

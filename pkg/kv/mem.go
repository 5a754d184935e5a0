package kv

import (
	"strings"
	"sync"
)

type memStore struct {
	sync.RWMutex
	m map[string][]byte
}

// NewMemStore creates a volatile in-memory store, useful for tests.
func NewMemStore() Store {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (s *memStore) Set(key string, value []byte) error {
	s.Lock()
	defer s.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

func (s *memStore) Delete(key string) error {
	s.Lock()
	defer s.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) List(prefix string) (map[string][]byte, error) {
	s.RLock()
	defer s.RUnlock()
	out := make(map[string][]byte)
	for k, v := range s.m {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[k] = cp
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

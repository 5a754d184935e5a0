package chunk

import (
	"fmt"
	"sync"
)

type memStore struct {
	sync.Mutex
	chunks map[string]*Chunk
	used   int64
}

// NewMemStore creates a volatile in-memory chunk store with byte accounting.
func NewMemStore() Store {
	return &memStore{chunks: make(map[string]*Chunk)}
}

func key(docID string, index int64) string {
	return fmt.Sprintf("%s/%d", docID, index)
}

func (s *memStore) Get(docID string, index int64) (*Chunk, error) {
	s.Lock()
	defer s.Unlock()
	c, ok := s.chunks[key(docID, index)]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (s *memStore) Put(c *Chunk) error {
	s.Lock()
	defer s.Unlock()
	k := key(c.DocumentID, c.Index)
	if old, ok := s.chunks[k]; ok {
		s.used -= old.Size()
	}
	s.chunks[k] = c
	s.used += c.Size()
	return nil
}

func (s *memStore) Delete(docID string, index int64) error {
	s.Lock()
	defer s.Unlock()
	k := key(docID, index)
	if c, ok := s.chunks[k]; ok {
		s.used -= c.Size()
		delete(s.chunks, k)
		logger.Debugf("remove %s from cache", k)
	}
	return nil
}

func (s *memStore) ListAll() ([]*Chunk, error) {
	s.Lock()
	defer s.Unlock()
	all := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		all = append(all, c)
	}
	return all, nil
}

func (s *memStore) Clear() error {
	s.Lock()
	defer s.Unlock()
	s.chunks = make(map[string]*Chunk)
	s.used = 0
	return nil
}

func (s *memStore) UsedBytes() int64 {
	s.Lock()
	defer s.Unlock()
	return s.used
}

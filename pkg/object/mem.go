package object

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// MemStore keeps documents and records in memory. It is used in tests and
// can inject latency and random failures, like a flaky remote would.
type MemStore struct {
	sync.Mutex
	docs    map[string][]byte
	records map[string][]byte

	delay   time.Duration
	eratio  float64
	fetches int64
	writes  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:    make(map[string][]byte),
		records: make(map[string][]byte),
	}
}

func (m *MemStore) String() string { return "mem://" }

// SetDocument installs the full content of a document.
func (m *MemStore) SetDocument(id string, content []byte) {
	m.Lock()
	defer m.Unlock()
	m.docs[id] = content
}

// SetFault makes every remote call sleep for `delay` and fail with
// probability `eratio`.
func (m *MemStore) SetFault(delay time.Duration, eratio float64) {
	m.Lock()
	defer m.Unlock()
	m.delay = delay
	m.eratio = eratio
}

// Fetches returns the number of range fetches served so far.
func (m *MemStore) Fetches() int64 {
	return atomic.LoadInt64(&m.fetches)
}

// Writes returns the number of record writes served so far.
func (m *MemStore) Writes() int64 {
	return atomic.LoadInt64(&m.writes)
}

func (m *MemStore) fault() error {
	m.Lock()
	delay, eratio := m.delay, m.eratio
	m.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if eratio > 0 && rand.Float64() < eratio {
		return errors.New("random failure")
	}
	return nil
}

func (m *MemStore) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	if err := m.fault(); err != nil {
		return nil, &FetchError{id, err}
	}
	atomic.AddInt64(&m.fetches, 1)
	m.Lock()
	defer m.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, &FetchError{id, errors.New("document not found")}
	}
	if start < 0 || start >= int64(len(doc)) || end < start {
		return nil, &FetchError{id, errors.Errorf("range [%d, %d] out of [0, %d)", start, end, len(doc))}
	}
	if end >= int64(len(doc)) {
		end = int64(len(doc)) - 1
	}
	data := make([]byte, end-start+1)
	copy(data, doc[start:end+1])
	return data, nil
}

func (m *MemStore) ReadRecord(ctx context.Context, id string) ([]byte, error) {
	if err := m.fault(); err != nil {
		return nil, &FetchError{id, err}
	}
	m.Lock()
	defer m.Unlock()
	data, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemStore) WriteRecord(ctx context.Context, id string, data []byte) error {
	if err := m.fault(); err != nil {
		return &WriteError{id, err}
	}
	atomic.AddInt64(&m.writes, 1)
	m.Lock()
	defer m.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.records[id] = cp
	return nil
}

func init() {
	RegisterStore("mem", func(endpoint string) (Store, error) {
		return NewMemStore(), nil
	})
}

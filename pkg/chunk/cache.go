package chunk

import (
	"context"
	"sort"
	"sync"
	"time"

	"ReadRelay/pkg/object"

	"github.com/pkg/errors"
)

const SlowRequest = time.Second * 10

// ErrUninitialized is returned by cache operations issued before Open.
var ErrUninitialized = errors.New("chunk cache is not opened")

// Engine resolves arbitrary byte ranges of remote documents through a local
// chunk store, prefetching a window of chunks around the reading position
// and evicting the oldest cached chunks when over budget.
type Engine struct {
	remote object.Store
	group  Group

	mu    sync.Mutex // guards conf and store
	conf  Config
	store Store
}

func NewEngine(remote object.Store, conf Config) *Engine {
	if conf.ChunkSize <= 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.MaxCacheBytes <= 0 {
		conf.MaxCacheBytes = DefaultMaxCacheBytes
	}
	if conf.PreloadWindow < 0 {
		conf.PreloadWindow = 0
	}
	return &Engine{remote: remote, conf: conf}
}

// Open attaches the chunk store. Cache operations fail with
// ErrUninitialized until it is called.
func (e *Engine) Open(store Store) {
	e.mu.Lock()
	e.store = store
	e.mu.Unlock()
}

// Configure merges partial overrides onto the current config. The new
// values apply to the next cache operation; cached chunks are not rewritten.
func (e *Engine) Configure(o Overrides) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	conf, err := e.conf.merge(o)
	if err != nil {
		return err
	}
	e.conf = conf
	return nil
}

func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conf
}

func (e *Engine) snapshot() (Store, Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil, Config{}, ErrUninitialized
	}
	return e.store, e.conf, nil
}

func chunkCount(size, chunkSize int64) int64 {
	return (size + chunkSize - 1) / chunkSize
}

// LoadAround fetches the window of chunks around position and returns the
// content of the chunk containing it. The whole window is fetched
// concurrently and the call fails if any chunk of the window fails.
func (e *Engine) LoadAround(ctx context.Context, docID string, size, position int64) (string, error) {
	store, conf, err := e.snapshot()
	if err != nil {
		return "", err
	}
	if position < 0 || position >= size {
		return "", errors.Errorf("position %d out of [0, %d)", position, size)
	}
	target := position / conf.ChunkSize
	first := target - conf.PreloadWindow
	if first < 0 {
		first = 0
	}
	last := target + conf.PreloadWindow
	if max := chunkCount(size, conf.ChunkSize) - 1; last > max {
		last = max
	}

	chunks := make([]*Chunk, last-first+1)
	errs := make([]error, last-first+1)
	var wg sync.WaitGroup
	for i := first; i <= last; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			chunks[i-first], errs[i-first] = e.fetchChunk(ctx, store, conf, docID, size, i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}
	e.evict(store, conf, docID)
	return string(chunks[target-first].Content), nil
}

// ReadRange returns exactly the [offset, offset+length) bytes of the
// document along with the offset that was requested. Covering chunks are
// resolved in index order, cache first.
func (e *Engine) ReadRange(ctx context.Context, docID string, size, offset, length int64) (string, int64, error) {
	store, conf, err := e.snapshot()
	if err != nil {
		return "", offset, err
	}
	if offset < 0 || offset >= size {
		return "", offset, errors.Errorf("offset %d out of [0, %d)", offset, size)
	}
	if offset+length > size {
		length = size - offset
	}
	if length <= 0 {
		return "", offset, nil
	}
	first := offset / conf.ChunkSize
	last := (offset + length) / conf.ChunkSize
	if max := chunkCount(size, conf.ChunkSize) - 1; last > max {
		last = max
	}

	buf := make([]byte, 0, (last-first+1)*conf.ChunkSize)
	for i := first; i <= last; i++ {
		c, err := e.fetchChunk(ctx, store, conf, docID, size, i)
		if err != nil {
			return "", offset, err
		}
		buf = append(buf, c.Content...)
	}
	rel := offset - first*conf.ChunkSize
	end := rel + length
	if end > int64(len(buf)) {
		end = int64(len(buf))
	}
	content := string(buf[rel:end])
	e.evict(store, conf, docID)
	return content, offset, nil
}

// ContextView is a slice of the document centered on a reading position.
type ContextView struct {
	Content   string `json:"content"`
	Offset    int64  `json:"offset"` // absolute offset of Content[0]
	TotalSize int64  `json:"totalSize"`
}

// ReadWithContext expands [position, position+viewSize) by viewSize bytes on
// each side, clamped to the document, and returns the covered content with
// the absolute start offset actually used.
func (e *Engine) ReadWithContext(ctx context.Context, docID string, size, position, viewSize int64) (*ContextView, error) {
	start := position - viewSize
	if start < 0 {
		start = 0
	}
	end := position + 2*viewSize
	if end > size {
		end = size
	}
	content, _, err := e.ReadRange(ctx, docID, size, start, end-start)
	if err != nil {
		return nil, err
	}
	return &ContextView{Content: content, Offset: start, TotalSize: size}, nil
}

// FillCache fetches every chunk of a document into the local store, calling
// progress (if non-nil) after each chunk. Used by cache warmup.
func (e *Engine) FillCache(ctx context.Context, docID string, size int64, progress func()) error {
	store, conf, err := e.snapshot()
	if err != nil {
		return err
	}
	n := chunkCount(size, conf.ChunkSize)
	for i := int64(0); i < n; i++ {
		if _, err = e.fetchChunk(ctx, store, conf, docID, size, i); err != nil {
			return err
		}
		if progress != nil {
			progress()
		}
	}
	e.evict(store, conf, docID)
	return nil
}

// fetchChunk resolves a single chunk, cache first. A hit is returned as is:
// CachedAt is insertion time, not access time, so eviction order follows
// insertion. Concurrent fetches of the same chunk share one remote request.
func (e *Engine) fetchChunk(ctx context.Context, store Store, conf Config, docID string, size, index int64) (*Chunk, error) {
	c, err := store.Get(docID, index)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return e.group.Do(key(docID, index), func() (*Chunk, error) {
		if c, err := store.Get(docID, index); err == nil && c != nil {
			return c, nil
		}
		start := index * conf.ChunkSize
		end := start + conf.ChunkSize - 1
		if end > size-1 {
			end = size - 1
		}
		st := time.Now()
		data, err := e.remote.FetchRange(ctx, docID, start, end)
		used := time.Since(st)
		logger.Debugf("GET %s RANGE(%d,%d) (%v, %.3fs)", docID, start, end-start+1, err, used.Seconds())
		if used > SlowRequest {
			logger.Infof("slow request: GET %s (%v, %.3fs)", docID, err, used.Seconds())
		}
		if err != nil {
			return nil, err
		}
		c := &Chunk{
			DocumentID: docID,
			Index:      index,
			Start:      start,
			End:        start + int64(len(data)) - 1,
			Content:    data,
			CachedAt:   time.Now(),
		}
		if err = store.Put(c); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// evict removes the oldest cached chunks until the total is back under
// budget. Chunks of the active document are never evicted, so the cache may
// legitimately stay over budget while one large document is being read.
// Failures here are logged and swallowed; eviction is an optimization.
func (e *Engine) evict(store Store, conf Config, active string) {
	all, err := store.ListAll()
	if err != nil {
		logger.Warnf("list cached chunks: %s", err)
		return
	}
	var total int64
	for _, c := range all {
		total += c.Size()
	}
	if total <= conf.MaxCacheBytes {
		return
	}
	candidates := all[:0]
	for _, c := range all {
		if c.DocumentID != active {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CachedAt.Before(candidates[j].CachedAt)
	})
	toFree := total - conf.MaxCacheBytes
	var freed int64
	for _, c := range candidates {
		if freed >= toFree {
			break
		}
		if err := store.Delete(c.DocumentID, c.Index); err != nil {
			logger.Warnf("evict chunk %s/%d: %s", c.DocumentID, c.Index, err)
			continue
		}
		freed += c.Size()
	}
	if freed < toFree {
		logger.Debugf("cache still %d bytes over budget, chunks of %s are protected", toFree-freed, active)
	}
}

// EvictDocument removes all cached chunks of one document. Best-effort:
// storage errors are logged, never returned.
func (e *Engine) EvictDocument(docID string) {
	e.mu.Lock()
	store := e.store
	e.mu.Unlock()
	if store == nil {
		return
	}
	all, err := store.ListAll()
	if err != nil {
		logger.Warnf("list cached chunks: %s", err)
		return
	}
	for _, c := range all {
		if c.DocumentID != docID {
			continue
		}
		if err := store.Delete(c.DocumentID, c.Index); err != nil {
			logger.Warnf("remove chunk %s/%d: %s", c.DocumentID, c.Index, err)
		}
	}
}

// EvictAll clears the whole cache. Best-effort like EvictDocument.
func (e *Engine) EvictAll() {
	e.mu.Lock()
	store := e.store
	e.mu.Unlock()
	if store == nil {
		return
	}
	if err := store.Clear(); err != nil {
		logger.Warnf("clear cache: %s", err)
	}
}

// Stats describes the current cache content.
type Stats struct {
	Chunks     int      `json:"chunkCount"`
	TotalBytes int64    `json:"totalBytes"`
	Documents  []string `json:"documentIds"`
}

func (e *Engine) Stats() (*Stats, error) {
	store, _, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	all, err := store.ListAll()
	if err != nil {
		return nil, err
	}
	s := &Stats{Chunks: len(all)}
	seen := make(map[string]bool)
	for _, c := range all {
		s.TotalBytes += c.Size()
		if !seen[c.DocumentID] {
			seen[c.DocumentID] = true
			s.Documents = append(s.Documents, c.DocumentID)
		}
	}
	sort.Strings(s.Documents)
	return s, nil
}

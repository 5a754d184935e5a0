package progress

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"ReadRelay/pkg/chunk"
	"ReadRelay/pkg/object"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const DefaultFlushInterval = 30 * time.Second

// Synchronizer reconciles the local ledger against remote progress records
// with last-write-wins semantics. Local writes never block on the network:
// they land in the ledger immediately and coalesce into a pending queue
// that a periodic driver flushes to the remote store.
type Synchronizer struct {
	ledger *Ledger
	remote object.Store
	device string

	mu      sync.Mutex
	pending map[string]*Progress

	flushing int32

	interval time.Duration
	tmu      sync.Mutex
	stop     chan struct{}
	done     chan struct{}
}

func NewSynchronizer(ledger *Ledger, remote object.Store, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Synchronizer{
		ledger:   ledger,
		remote:   remote,
		device:   uuid.New().String(),
		pending:  make(map[string]*Progress),
		interval: interval,
	}
}

// Record writes progress into the ledger and enqueues a pending remote
// write. Later records for the same document replace the pending entry, so
// at most one survives per document.
func (s *Synchronizer) Record(p Progress) error {
	if p.Device == "" {
		p.Device = s.device
	}
	if err := s.ledger.Put(&p); err != nil {
		return err
	}
	s.mu.Lock()
	s.pending[p.DocumentID] = &p
	s.mu.Unlock()
	return nil
}

// Get is a local-only read of the ledger, no network.
func (s *Synchronizer) Get(docID string) (*Progress, error) {
	return s.ledger.Get(docID)
}

// Pending returns the number of queued remote writes.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Synchronizer) push(ctx context.Context, p *Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "encode progress of %s", p.DocumentID)
	}
	st := time.Now()
	err = s.remote.WriteRecord(ctx, p.DocumentID, data)
	used := time.Since(st)
	logger.Debugf("PUT progress of %s (%v, %.3fs)", p.DocumentID, err, used.Seconds())
	if used > chunk.SlowRequest {
		logger.Infof("slow request: PUT progress of %s (%v, %.3fs)", p.DocumentID, err, used.Seconds())
	}
	if err != nil {
		return err
	}
	s.dequeue(p)
	return nil
}

// dequeue drops the pending entry for a document unless a newer record was
// queued while the push was in flight.
func (s *Synchronizer) dequeue(p *Progress) {
	s.mu.Lock()
	if cur, ok := s.pending[p.DocumentID]; ok && cur.LastUpdated <= p.LastUpdated {
		delete(s.pending, p.DocumentID)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) decode(docID string, data []byte) *Progress {
	if data == nil {
		return nil
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warnf("corrupted remote record of %s, treated as absent: %s", docID, err)
		return nil
	}
	return &p
}

// Reconcile merges the local and remote state of one document:
//
//	local absent,  remote absent  -> no-op
//	local absent,  remote present -> adopt remote
//	local present, remote absent  -> push local
//	both present                  -> newer LastUpdated wins, equal is a no-op
//
// Remote fetch/write failures are returned to the caller.
func (s *Synchronizer) Reconcile(ctx context.Context, docID string) error {
	local, err := s.ledger.Get(docID)
	if err != nil {
		return err
	}
	data, err := s.remote.ReadRecord(ctx, docID)
	if err != nil {
		return err
	}
	remote := s.decode(docID, data)
	switch {
	case local == nil && remote == nil:
		return nil
	case local == nil:
		// already authoritative remotely, nothing to enqueue
		return s.ledger.Put(remote)
	case remote == nil || local.LastUpdated > remote.LastUpdated:
		return s.push(ctx, local)
	case remote.LastUpdated > local.LastUpdated:
		return s.ledger.Put(remote)
	default:
		return nil
	}
}

// FlushPending attempts a remote write for every queued document. A write
// failure keeps the entry queued for the next cycle. If a flush is already
// running the call is dropped, not queued; the next tick picks up whatever
// is still pending.
func (s *Synchronizer) FlushPending(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.flushing, 0, 1) {
		logger.Debugf("flush already in progress, skipped")
		return
	}
	defer atomic.StoreInt32(&s.flushing, 0)

	s.mu.Lock()
	batch := make([]*Progress, 0, len(s.pending))
	for _, p := range s.pending {
		batch = append(batch, p)
	}
	s.mu.Unlock()

	for _, p := range batch {
		if err := s.push(ctx, p); err != nil {
			logger.Warnf("flush progress of %s: %s", p.DocumentID, err)
		}
	}
}

// StartPeriodic begins the fixed-interval flush driver, performing an
// immediate flush first. Starting an already-started driver is a no-op.
func (s *Synchronizer) StartPeriodic() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	go func() {
		defer close(done)
		s.FlushPending(context.Background())
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				s.FlushPending(context.Background())
			}
		}
	}()
}

// StopPeriodic stops the driver; no further ticks fire after it returns.
func (s *Synchronizer) StopPeriodic() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil
}

// PullLatest fetches the remote record and adopts it if it is newer than
// the local one (or local is absent). It returns whatever the ledger now
// holds, which may be nil when neither side has state.
func (s *Synchronizer) PullLatest(ctx context.Context, docID string) (*Progress, error) {
	data, err := s.remote.ReadRecord(ctx, docID)
	if err != nil {
		return nil, err
	}
	local, err := s.ledger.Get(docID)
	if err != nil {
		return nil, err
	}
	remote := s.decode(docID, data)
	if remote == nil {
		return local, nil
	}
	if local == nil || remote.LastUpdated > local.LastUpdated {
		if err = s.ledger.Put(remote); err != nil {
			return nil, err
		}
		return remote, nil
	}
	return local, nil
}

// ReconcileAll reconciles every given document independently and
// concurrently. A failure on one document is logged and does not abort the
// others.
func (s *Synchronizer) ReconcileAll(ctx context.Context, docIDs []string) {
	var wg sync.WaitGroup
	for _, id := range docIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Reconcile(ctx, id); err != nil {
				logger.Warnf("reconcile %s: %s", id, err)
			}
		}(id)
	}
	wg.Wait()
}

// Forget removes the ledger entry and any pending write for a document.
// Used when a document is deleted from the library.
func (s *Synchronizer) Forget(docID string) error {
	s.mu.Lock()
	delete(s.pending, docID)
	s.mu.Unlock()
	return s.ledger.Delete(docID)
}

package progress

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ReadRelay/pkg/kv"
	"ReadRelay/pkg/object"
)

func testSynchronizer(interval time.Duration) (*Synchronizer, *object.MemStore) {
	remote := object.NewMemStore()
	return NewSynchronizer(NewLedger(kv.NewMemStore()), remote, interval), remote
}

func remoteRecord(t *testing.T, remote *object.MemStore, docID string) *Progress {
	t.Helper()
	data, err := remote.ReadRecord(context.Background(), docID)
	if err != nil {
		t.Fatalf("read record: %s", err)
	}
	if data == nil {
		return nil
	}
	var p Progress
	if err = json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode record: %s", err)
	}
	return &p
}

func putRemote(t *testing.T, remote *object.MemStore, p *Progress) {
	t.Helper()
	data, _ := json.Marshal(p)
	if err := remote.WriteRecord(context.Background(), p.DocumentID, data); err != nil {
		t.Fatalf("write record: %s", err)
	}
}

func TestRecordCoalesces(t *testing.T) {
	s, remote := testSynchronizer(time.Hour)
	ctx := context.Background()

	if err := s.Record(Progress{DocumentID: "bk", Position: 100, LastUpdated: 1000}); err != nil {
		t.Fatalf("record: %s", err)
	}
	if err := s.Record(Progress{DocumentID: "bk", Position: 200, LastUpdated: 2000}); err != nil {
		t.Fatalf("record: %s", err)
	}
	if n := s.Pending(); n != 1 {
		t.Fatalf("records for one document should coalesce, pending %d", n)
	}
	// the ledger is updated before any network traffic
	p, err := s.Get("bk")
	if err != nil || p == nil || p.Position != 200 {
		t.Fatalf("unexpected local state: %v %v", p, err)
	}
	if p.Device == "" {
		t.Fatal("record should be stamped with the device id")
	}
	if n := remote.Writes(); n != 0 {
		t.Fatalf("record must not touch the remote, %d writes", n)
	}

	s.FlushPending(ctx)
	if n := s.Pending(); n != 0 {
		t.Fatalf("expect empty queue after flush, pending %d", n)
	}
	if n := remote.Writes(); n != 1 {
		t.Fatalf("expect one coalesced write, got %d", n)
	}
	if r := remoteRecord(t, remote, "bk"); r == nil || r.Position != 200 {
		t.Fatalf("remote should hold the latest record: %+v", r)
	}

	// nothing pending, a second flush is a no-op
	s.FlushPending(ctx)
	if n := remote.Writes(); n != 1 {
		t.Fatalf("idempotent flush wrote again, %d writes", n)
	}
}

func TestFlushRetainsFailures(t *testing.T) {
	s, remote := testSynchronizer(time.Hour)
	ctx := context.Background()

	if err := s.Record(New("bk", 100, 1000)); err != nil {
		t.Fatalf("record: %s", err)
	}
	remote.SetFault(0, 1)
	s.FlushPending(ctx)
	if n := s.Pending(); n != 1 {
		t.Fatalf("failed write should stay queued, pending %d", n)
	}
	remote.SetFault(0, 0)
	s.FlushPending(ctx)
	if n := s.Pending(); n != 0 {
		t.Fatalf("expect retry to drain the queue, pending %d", n)
	}
	if r := remoteRecord(t, remote, "bk"); r == nil || r.Position != 100 {
		t.Fatalf("unexpected remote record: %+v", r)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("BothAbsent", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		if p, _ := s.Get("bk"); p != nil {
			t.Fatalf("expect no local state, got %+v", p)
		}
		if n := remote.Writes(); n != 0 {
			t.Fatalf("expect no remote write, got %d", n)
		}
	})

	t.Run("RemoteOnly", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		putRemote(t, remote, &Progress{DocumentID: "bk", Position: 500, LastUpdated: 5000})
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		p, err := s.Get("bk")
		if err != nil || p == nil || p.Position != 500 {
			t.Fatalf("expect remote adopted, got %v %v", p, err)
		}
	})

	t.Run("LocalOnly", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		if err := s.ledger.Put(&Progress{DocumentID: "bk", Position: 300, LastUpdated: 3000}); err != nil {
			t.Fatal(err)
		}
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		if r := remoteRecord(t, remote, "bk"); r == nil || r.Position != 300 {
			t.Fatalf("expect local pushed, got %+v", r)
		}
	})

	t.Run("LocalNewer", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		putRemote(t, remote, &Progress{DocumentID: "bk", Position: 100, LastUpdated: 1000})
		if err := s.ledger.Put(&Progress{DocumentID: "bk", Position: 200, LastUpdated: 2000}); err != nil {
			t.Fatal(err)
		}
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		if r := remoteRecord(t, remote, "bk"); r.Position != 200 {
			t.Fatalf("local should win, remote holds %+v", r)
		}
	})

	t.Run("RemoteNewer", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		putRemote(t, remote, &Progress{DocumentID: "bk", Position: 900, LastUpdated: 9000})
		if err := s.ledger.Put(&Progress{DocumentID: "bk", Position: 200, LastUpdated: 2000}); err != nil {
			t.Fatal(err)
		}
		writes := remote.Writes()
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		p, _ := s.Get("bk")
		if p == nil || p.Position != 900 {
			t.Fatalf("remote should win, local holds %+v", p)
		}
		if remote.Writes() != writes {
			t.Fatal("adopting a remote record must not write back")
		}
	})

	t.Run("EqualTimestamps", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		putRemote(t, remote, &Progress{DocumentID: "bk", Position: 100, LastUpdated: 1000})
		if err := s.ledger.Put(&Progress{DocumentID: "bk", Position: 200, LastUpdated: 1000}); err != nil {
			t.Fatal(err)
		}
		writes := remote.Writes()
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		p, _ := s.Get("bk")
		if p.Position != 200 || remote.Writes() != writes {
			t.Fatalf("equal timestamps must change nothing: local %+v, %d writes", p, remote.Writes()-writes)
		}
	})

	t.Run("CorruptRemote", func(t *testing.T) {
		s, remote := testSynchronizer(time.Hour)
		if err := remote.WriteRecord(ctx, "bk", []byte("{not json")); err != nil {
			t.Fatal(err)
		}
		if err := s.ledger.Put(&Progress{DocumentID: "bk", Position: 300, LastUpdated: 3000}); err != nil {
			t.Fatal(err)
		}
		if err := s.Reconcile(ctx, "bk"); err != nil {
			t.Fatalf("reconcile: %s", err)
		}
		// corrupt remote is treated as absent, so local is pushed over it
		if r := remoteRecord(t, remote, "bk"); r == nil || r.Position != 300 {
			t.Fatalf("expect corrupt record replaced, got %+v", r)
		}
	})
}

func TestPullLatest(t *testing.T) {
	ctx := context.Background()
	s, remote := testSynchronizer(time.Hour)

	p, err := s.PullLatest(ctx, "bk")
	if err != nil || p != nil {
		t.Fatalf("expect nothing to pull: %v %v", p, err)
	}

	if err = s.ledger.Put(&Progress{DocumentID: "bk", Position: 200, LastUpdated: 2000}); err != nil {
		t.Fatal(err)
	}
	p, err = s.PullLatest(ctx, "bk")
	if err != nil || p == nil || p.Position != 200 {
		t.Fatalf("remote absent, expect local: %v %v", p, err)
	}

	putRemote(t, remote, &Progress{DocumentID: "bk", Position: 900, LastUpdated: 9000})
	p, err = s.PullLatest(ctx, "bk")
	if err != nil || p == nil || p.Position != 900 {
		t.Fatalf("expect newer remote adopted: %v %v", p, err)
	}
	if local, _ := s.Get("bk"); local.Position != 900 {
		t.Fatalf("adopted record should persist locally, got %+v", local)
	}

	putRemote(t, remote, &Progress{DocumentID: "bk", Position: 100, LastUpdated: 1000})
	p, err = s.PullLatest(ctx, "bk")
	if err != nil || p == nil || p.Position != 900 {
		t.Fatalf("older remote must not win: %v %v", p, err)
	}
}

func TestReconcileAll(t *testing.T) {
	s, remote := testSynchronizer(time.Hour)
	putRemote(t, remote, &Progress{DocumentID: "a", Position: 10, LastUpdated: 1000})
	if err := s.ledger.Put(&Progress{DocumentID: "b", Position: 20, LastUpdated: 2000}); err != nil {
		t.Fatal(err)
	}
	s.ReconcileAll(context.Background(), []string{"a", "b", "c"})
	if p, _ := s.Get("a"); p == nil || p.Position != 10 {
		t.Fatalf("a not adopted: %+v", p)
	}
	if r := remoteRecord(t, remote, "b"); r == nil || r.Position != 20 {
		t.Fatalf("b not pushed: %+v", r)
	}
	if p, _ := s.Get("c"); p != nil {
		t.Fatalf("c should stay absent: %+v", p)
	}
}

func TestPeriodicFlush(t *testing.T) {
	s, remote := testSynchronizer(20 * time.Millisecond)
	if err := s.Record(New("bk", 100, 1000)); err != nil {
		t.Fatal(err)
	}
	s.StartPeriodic()
	s.StartPeriodic() // second start is a no-op
	deadline := time.Now().Add(time.Second)
	for s.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := s.Pending(); n != 0 {
		t.Fatalf("periodic driver did not drain the queue, pending %d", n)
	}
	s.StopPeriodic()

	// no ticks fire once stopped
	writes := remote.Writes()
	if err := s.Record(New("bk", 200, 1000)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := remote.Writes(); n != writes {
		t.Fatalf("driver still running after stop, %d new writes", n-writes)
	}
	if n := s.Pending(); n != 1 {
		t.Fatalf("record after stop should stay queued, pending %d", n)
	}
	s.StopPeriodic() // stop again is a no-op
}

func TestForget(t *testing.T) {
	s, _ := testSynchronizer(time.Hour)
	if err := s.Record(New("bk", 100, 1000)); err != nil {
		t.Fatal(err)
	}
	if err := s.Forget("bk"); err != nil {
		t.Fatalf("forget: %s", err)
	}
	if p, _ := s.Get("bk"); p != nil {
		t.Fatalf("expect ledger entry gone, got %+v", p)
	}
	if n := s.Pending(); n != 0 {
		t.Fatalf("expect pending write dropped, got %d", n)
	}
	// forgetting an unknown document is not an error
	if err := s.Forget("nope"); err != nil {
		t.Fatalf("forget unknown: %s", err)
	}
}

package progress

import (
	"testing"
	"time"

	"ReadRelay/pkg/kv"
)

func TestNewProgress(t *testing.T) {
	before := time.Now().UnixMilli()
	p := New("bk", 250, 1000)
	if p.Position != 250 || p.Percentage != 25 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if p.LastUpdated < before || p.LastUpdated > time.Now().UnixMilli() {
		t.Fatalf("bad timestamp %d", p.LastUpdated)
	}

	if p = New("bk", -5, 1000); p.Position != 0 {
		t.Fatalf("negative position not clamped: %d", p.Position)
	}
	if p = New("bk", 5000, 1000); p.Position != 999 {
		t.Fatalf("position not clamped to size: %d", p.Position)
	}
	if p = New("bk", 100, 0); p.Position != 100 || p.Percentage != 0 {
		t.Fatalf("unknown size should keep position: %+v", p)
	}
}

func TestCountLines(t *testing.T) {
	for _, c := range []struct {
		content string
		want    int
	}{
		{"", 1},
		{"no newline", 1},
		{"one\n", 2},
		{"one\ntwo\nthree", 3},
	} {
		if got := CountLines([]byte(c.content)); got != c.want {
			t.Fatalf("CountLines(%q) = %d, want %d", c.content, got, c.want)
		}
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger(kv.NewMemStore())
	if p, err := l.Get("bk"); err != nil || p != nil {
		t.Fatalf("expect no entry: %v %v", p, err)
	}
	for _, p := range []*Progress{
		{DocumentID: "b", Position: 20, LastUpdated: 2000},
		{DocumentID: "a", Position: 10, LastUpdated: 1000},
		{DocumentID: "c", Position: 30, LastUpdated: 3000},
	} {
		if err := l.Put(p); err != nil {
			t.Fatalf("put: %s", err)
		}
	}
	p, err := l.Get("b")
	if err != nil || p == nil || p.Position != 20 {
		t.Fatalf("unexpected entry: %v %v", p, err)
	}

	all, err := l.List()
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	if len(all) != 3 || all[0].DocumentID != "a" || all[2].DocumentID != "c" {
		t.Fatalf("expect 3 entries sorted by id, got %+v", all)
	}

	if err = l.Delete("b"); err != nil {
		t.Fatalf("delete: %s", err)
	}
	if p, _ = l.Get("b"); p != nil {
		t.Fatalf("expect entry gone, got %+v", p)
	}
}

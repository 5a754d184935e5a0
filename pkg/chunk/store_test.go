package chunk

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"ReadRelay/pkg/compress"
)

func testStore(t *testing.T, store Store) {
	if c, err := store.Get("bk", 0); err != nil || c != nil {
		t.Fatalf("expect miss on empty store: %v %v", c, err)
	}
	c0 := &Chunk{
		DocumentID: "bk",
		Index:      0,
		Start:      0,
		End:        10,
		Content:    []byte("hello world"),
		CachedAt:   time.Now(),
	}
	if err := store.Put(c0); err != nil {
		t.Fatalf("put: %s", err)
	}
	c1 := &Chunk{
		DocumentID: "bk",
		Index:      1,
		Start:      11,
		End:        15,
		Content:    []byte("aaaaa"),
		CachedAt:   time.Now(),
	}
	if err := store.Put(c1); err != nil {
		t.Fatalf("put: %s", err)
	}

	got, err := store.Get("bk", 0)
	if err != nil {
		t.Fatalf("get: %s", err)
	}
	if got == nil || !bytes.Equal(got.Content, c0.Content) || got.Start != 0 || got.End != 10 {
		t.Fatalf("unexpected chunk: %+v", got)
	}
	if got.Size() != 11 {
		t.Fatalf("size should be 11, got %d", got.Size())
	}

	// a refresh replaces the old chunk, one chunk per index
	c0b := &Chunk{DocumentID: "bk", Index: 0, Start: 0, End: 4, Content: []byte("fresh"), CachedAt: time.Now()}
	if err = store.Put(c0b); err != nil {
		t.Fatalf("put: %s", err)
	}
	all, err := store.ListAll()
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	if len(all) != 2 {
		t.Fatalf("expect 2 chunks, got %d", len(all))
	}
	var total int64
	for _, c := range all {
		total += c.Size()
	}
	if total != 10 {
		t.Fatalf("expect 10 bytes accounted, got %d", total)
	}

	if err = store.Delete("bk", 1); err != nil {
		t.Fatalf("delete: %s", err)
	}
	if c, err := store.Get("bk", 1); err != nil || c != nil {
		t.Fatalf("expect miss after delete: %v %v", c, err)
	}
	// deleting a missing chunk is not an error
	if err = store.Delete("bk", 99); err != nil {
		t.Fatalf("delete missing: %s", err)
	}

	if err = store.Clear(); err != nil {
		t.Fatalf("clear: %s", err)
	}
	all, _ = store.ListAll()
	if len(all) != 0 {
		t.Fatalf("expect empty store, got %d chunks", len(all))
	}
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestSqliteStore(t *testing.T) {
	store, err := OpenSqlite(filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	testStore(t, store)
}

func TestSqliteStoreCompressed(t *testing.T) {
	for _, algr := range []string{"zstd", "lz4"} {
		store, err := OpenSqlite(filepath.Join(t.TempDir(), "cache.db"), compress.NewCompressor(algr))
		if err != nil {
			t.Fatalf("open with %s: %s", algr, err)
		}
		testStore(t, store)
	}
}

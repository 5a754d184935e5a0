package kv

import (
	"bytes"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	if v, err := s.Get("k"); err != nil || v != nil {
		t.Fatalf("expect miss on empty store: %v %v", v, err)
	}
	if err := s.Set("k", []byte("v1")); err != nil {
		t.Fatalf("set: %s", err)
	}
	if err := s.Set("k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %s", err)
	}
	v, err := s.Get("k")
	if err != nil || !bytes.Equal(v, []byte("v2")) {
		t.Fatalf("unexpected value: %q %v", v, err)
	}

	for _, k := range []string{"p/a", "p/b", "q/c"} {
		if err = s.Set(k, []byte(k)); err != nil {
			t.Fatalf("set %s: %s", k, err)
		}
	}
	entries, err := s.List("p/")
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	if len(entries) != 2 || string(entries["p/a"]) != "p/a" || string(entries["p/b"]) != "p/b" {
		t.Fatalf("unexpected listing: %v", entries)
	}

	if err = s.Delete("k"); err != nil {
		t.Fatalf("delete: %s", err)
	}
	if v, _ = s.Get("k"); v != nil {
		t.Fatalf("expect miss after delete: %q", v)
	}
	// deleting a missing key is not an error
	if err = s.Delete("k"); err != nil {
		t.Fatalf("delete missing: %s", err)
	}
	if err = s.Close(); err != nil {
		t.Fatalf("close: %s", err)
	}
}

func TestMemStore(t *testing.T) {
	testStore(t, NewMemStore())
}

func TestSqliteStore(t *testing.T) {
	s, err := OpenSqlite(filepath.Join(t.TempDir(), "meta", "meta.db"))
	if err != nil {
		t.Fatalf("open: %s", err)
	}
	testStore(t, s)
}

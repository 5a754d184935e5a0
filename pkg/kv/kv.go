// Package kv is the local durable key-value store that backs the progress
// ledger. Keys are plain strings, values opaque blobs.
package kv

type Store interface {
	// Get returns the value for key, or (nil, nil) if absent.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// List returns all entries whose key starts with prefix.
	List(prefix string) (map[string][]byte, error)
	Close() error
}

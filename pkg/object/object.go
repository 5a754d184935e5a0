package object

import (
	"context"
	"fmt"
)

// Store is a remote home for documents and their reading-progress records.
// Documents are immutable blobs addressed by id and fetched by byte range;
// progress records are small JSON blobs stored next to them.
type Store interface {
	String() string
	// FetchRange returns the bytes of document `id` in [start, end], both inclusive.
	FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error)
	// ReadRecord returns the progress record for `id`, or (nil, nil) if absent.
	ReadRecord(ctx context.Context, id string) ([]byte, error)
	// WriteRecord upserts the progress record for `id`.
	WriteRecord(ctx context.Context, id string, data []byte) error
}

// FetchError reports a failed remote read (range fetch or record read).
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %s", e.Key, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports a failed remote record write.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %s", e.Key, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

type Register func(endpoint string) (Store, error)

var stores = make(map[string]Register)

func RegisterStore(name string, register Register) {
	stores[name] = register
}

func CreateStore(name, endpoint string) (Store, error) {
	f, ok := stores[name]
	if !ok {
		return nil, fmt.Errorf("invalid storage: %s", name)
	}
	return f(endpoint)
}

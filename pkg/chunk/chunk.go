package chunk

import (
	"time"

	"ReadRelay/pkg/utils"
)

var logger = utils.GetLogger("readrelay")

// Chunk is one fixed-size contiguous piece of a document. The last chunk of
// a document may be shorter. Chunks are immutable once written; a refresh is
// a delete plus reinsert.
type Chunk struct {
	DocumentID string
	Index      int64
	Start      int64 // absolute byte offset of the first byte
	End        int64 // absolute byte offset of the last byte, inclusive
	Content    []byte
	CachedAt   time.Time
}

// Size returns the content length in bytes. It is derived from the offsets
// so that metadata-only listings can still account for space.
func (c *Chunk) Size() int64 {
	return c.End - c.Start + 1
}

// Store is a local keyed store of chunks. No policy, pure storage; eviction
// decisions are made by the Engine.
type Store interface {
	// Get returns the chunk at (docID, index), or (nil, nil) if absent.
	Get(docID string, index int64) (*Chunk, error)
	Put(c *Chunk) error
	Delete(docID string, index int64) error
	// ListAll returns every cached chunk. Content may be nil in the
	// returned chunks; offsets and CachedAt are always populated.
	ListAll() ([]*Chunk, error)
	Clear() error
}

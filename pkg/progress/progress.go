package progress

import (
	"bytes"
	"time"

	"ReadRelay/pkg/utils"
)

var logger = utils.GetLogger("readrelay")

// Progress is the last known reading position of a document. LastUpdated is
// the sole tie-breaker when local and remote copies diverge; Percentage and
// Line are informational, not authoritative.
type Progress struct {
	DocumentID  string  `json:"documentId"`
	Position    int64   `json:"position"`
	Percentage  float64 `json:"percentage"`
	LastUpdated int64   `json:"lastUpdated"` // unix milliseconds
	Line        int     `json:"lineNumber,omitempty"`
	Device      string  `json:"device,omitempty"`
}

// New builds a progress record for a position inside a document of the
// given size, clamped to [0, size), stamped with the current time.
func New(docID string, position, size int64) Progress {
	if position < 0 {
		position = 0
	}
	if size > 0 && position >= size {
		position = size - 1
	}
	var pct float64
	if size > 0 {
		pct = float64(position) / float64(size) * 100
	}
	return Progress{
		DocumentID:  docID,
		Position:    position,
		Percentage:  pct,
		LastUpdated: time.Now().UnixMilli(),
	}
}

// CountLines returns the 1-based line number at the end of content.
// Best-effort: callers feed it whatever prefix of the document they have.
func CountLines(content []byte) int {
	return bytes.Count(content, []byte{'\n'}) + 1
}

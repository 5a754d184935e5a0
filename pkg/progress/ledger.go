package progress

import (
	"encoding/json"
	"sort"
	"strings"

	"ReadRelay/pkg/kv"

	"github.com/pkg/errors"
)

const ledgerPrefix = "progress/"

// Ledger is the durable local map of document id to reading progress,
// backed by a key-value store.
type Ledger struct {
	kv kv.Store
}

func NewLedger(store kv.Store) *Ledger {
	return &Ledger{store}
}

// Get returns the progress of a document, or (nil, nil) if none recorded.
func (l *Ledger) Get(docID string) (*Progress, error) {
	data, err := l.kv.Get(ledgerPrefix + docID)
	if err != nil || data == nil {
		return nil, err
	}
	var p Progress
	if err = json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "decode progress of %s", docID)
	}
	return &p, nil
}

func (l *Ledger) Put(p *Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "encode progress of %s", p.DocumentID)
	}
	return l.kv.Set(ledgerPrefix+p.DocumentID, data)
}

func (l *Ledger) Delete(docID string) error {
	return l.kv.Delete(ledgerPrefix + docID)
}

// List returns all recorded progress, sorted by document id.
func (l *Ledger) List() ([]*Progress, error) {
	entries, err := l.kv.List(ledgerPrefix)
	if err != nil {
		return nil, err
	}
	all := make([]*Progress, 0, len(entries))
	for k, v := range entries {
		var p Progress
		if err = json.Unmarshal(v, &p); err != nil {
			logger.Warnf("skip corrupted ledger entry %s: %s", strings.TrimPrefix(k, ledgerPrefix), err)
			continue
		}
		all = append(all, &p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DocumentID < all[j].DocumentID })
	return all, nil
}

package object

import (
	"context"
	"fmt"
)

type withPrefix struct {
	os     Store
	prefix string
}

// WithPrefix returns a store that adds a prefix to document ids, so several
// libraries can share one bucket.
func WithPrefix(os Store, prefix string) Store {
	return &withPrefix{os, prefix}
}

func (p *withPrefix) String() string {
	return fmt.Sprintf("%s%s", p.os, p.prefix)
}

func (p *withPrefix) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	return p.os.FetchRange(ctx, p.prefix+id, start, end)
}

func (p *withPrefix) ReadRecord(ctx context.Context, id string) ([]byte, error) {
	return p.os.ReadRecord(ctx, p.prefix+id)
}

func (p *withPrefix) WriteRecord(ctx context.Context, id string, data []byte) error {
	return p.os.WriteRecord(ctx, p.prefix+id, data)
}

var _ Store = &withPrefix{}

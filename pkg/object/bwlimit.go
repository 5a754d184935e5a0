package object

import (
	"context"

	"github.com/juju/ratelimit"
)

type bwlimit struct {
	Store
	upLimit   *ratelimit.Bucket
	downLimit *ratelimit.Bucket
}

// NewLimited caps the download/upload bandwidth of a store, in bytes per second.
func NewLimited(o Store, up, down int64) Store {
	bw := &bwlimit{o, nil, nil}
	if up > 0 {
		// there are overheads coming from HTTP/TCP/IP
		bw.upLimit = ratelimit.NewBucketWithRate(float64(up)*0.85, up)
	}
	if down > 0 {
		bw.downLimit = ratelimit.NewBucketWithRate(float64(down)*0.85, down)
	}
	return bw
}

func (p *bwlimit) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	data, err := p.Store.FetchRange(ctx, id, start, end)
	if p.downLimit != nil {
		p.downLimit.Wait(int64(len(data)))
	}
	return data, err
}

func (p *bwlimit) WriteRecord(ctx context.Context, id string, data []byte) error {
	if p.upLimit != nil {
		p.upLimit.Wait(int64(len(data)))
	}
	return p.Store.WriteRecord(ctx, id, data)
}

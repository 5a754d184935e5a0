package object

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisStore keeps document content in plain string keys so byte ranges can
// be served with GETRANGE, and progress records in a parallel key space.
type redisStore struct {
	rdb *redis.Client
}

func (r *redisStore) String() string {
	return fmt.Sprintf("redis://%s", r.rdb.Options().Addr)
}

func (r *redisStore) dataKey(id string) string   { return "doc/" + id }
func (r *redisStore) recordKey(id string) string { return "progress/" + id }

func (r *redisStore) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	key := r.dataKey(id)
	v, err := r.rdb.GetRange(ctx, key, start, end).Result()
	if err != nil {
		return nil, &FetchError{id, err}
	}
	if len(v) == 0 {
		// GETRANGE returns "" for missing keys as well
		n, err := r.rdb.Exists(ctx, key).Result()
		if err != nil {
			return nil, &FetchError{id, err}
		}
		if n == 0 {
			return nil, &FetchError{id, errors.New("document not found")}
		}
	}
	return []byte(v), nil
}

func (r *redisStore) ReadRecord(ctx context.Context, id string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &FetchError{id, err}
	}
	return data, nil
}

func (r *redisStore) WriteRecord(ctx context.Context, id string, data []byte) error {
	if err := r.rdb.Set(ctx, r.recordKey(id), data, 0).Err(); err != nil {
		return &WriteError{id, err}
	}
	return nil
}

// PutDocument uploads the full content of a document, for seeding a library.
func (r *redisStore) PutDocument(ctx context.Context, id string, content []byte) error {
	return r.rdb.Set(ctx, r.dataKey(id), content, 0).Err()
}

func newRedis(url string) (Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", url, err)
	}
	return &redisStore{redis.NewClient(opt)}, nil
}

func init() {
	RegisterStore("redis", newRedis)
}

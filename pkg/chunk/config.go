package chunk

import "github.com/pkg/errors"

const (
	DefaultChunkSize     = 512 << 10
	DefaultPreloadWindow = 2
	DefaultMaxCacheBytes = 50 << 20
)

// Config contains options for the cache Engine.
type Config struct {
	ChunkSize     int64 // bytes per chunk, > 0
	PreloadWindow int64 // chunks fetched on each side of the target, >= 0
	MaxCacheBytes int64 // eviction threshold, > 0
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		PreloadWindow: DefaultPreloadWindow,
		MaxCacheBytes: DefaultMaxCacheBytes,
	}
}

// Overrides are partial config changes merged onto the current config. Nil
// fields keep their current value. Changes take effect on the next cache
// operation and never rewrite already-cached chunks.
type Overrides struct {
	ChunkSize     *int64
	PreloadWindow *int64
	MaxCacheBytes *int64
}

func (c Config) merge(o Overrides) (Config, error) {
	if o.ChunkSize != nil {
		if *o.ChunkSize <= 0 {
			return c, errors.Errorf("invalid chunk size: %d", *o.ChunkSize)
		}
		c.ChunkSize = *o.ChunkSize
	}
	if o.PreloadWindow != nil {
		if *o.PreloadWindow < 0 {
			return c, errors.Errorf("invalid preload window: %d", *o.PreloadWindow)
		}
		c.PreloadWindow = *o.PreloadWindow
	}
	if o.MaxCacheBytes != nil {
		if *o.MaxCacheBytes <= 0 {
			return c, errors.Errorf("invalid cache size: %d", *o.MaxCacheBytes)
		}
		c.MaxCacheBytes = *o.MaxCacheBytes
	}
	return c, nil
}

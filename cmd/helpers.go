package main

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"ReadRelay/pkg/chunk"
	"ReadRelay/pkg/compress"
	"ReadRelay/pkg/kv"
	"ReadRelay/pkg/object"
	"ReadRelay/pkg/progress"

	"github.com/urfave/cli/v2"
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".readrelay"
	}
	return path.Join(home, ".readrelay")
}

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage",
			Value: "file",
			Usage: "remote store for documents and progress records (file, http, redis, mem)",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "address of the remote store (directory, URL or redis://...)",
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "prefix added to document ids on the remote store",
		},
		&cli.Int64Flag{
			Name:  "upload-limit",
			Usage: "bandwidth limit for upload in Mbps",
		},
		&cli.Int64Flag{
			Name:  "download-limit",
			Usage: "bandwidth limit for download in Mbps",
		},
	}
}

func cacheFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cache-db",
			Value: path.Join(defaultDataDir(), "cache.db"),
			Usage: "path of the local chunk cache database",
		},
		&cli.StringFlag{
			Name:  "compress",
			Value: "none",
			Usage: "compression of cached chunks at rest (none, zstd, lz4)",
		},
		&cli.Int64Flag{
			Name:  "chunk-size",
			Value: chunk.DefaultChunkSize >> 10,
			Usage: "size of one content chunk in KiB",
		},
		&cli.Int64Flag{
			Name:  "preload",
			Value: chunk.DefaultPreloadWindow,
			Usage: "chunks fetched on each side of the reading position",
		},
		&cli.Int64Flag{
			Name:  "cache-size",
			Value: chunk.DefaultMaxCacheBytes >> 20,
			Usage: "cache eviction threshold in MiB",
		},
	}
}

func metaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "meta-db",
			Value: path.Join(defaultDataDir(), "meta.db"),
			Usage: "path of the local progress ledger database",
		},
	}
}

func createStore(c *cli.Context) (object.Store, error) {
	blob, err := object.CreateStore(strings.ToLower(c.String("storage")), c.String("endpoint"))
	if err != nil {
		return nil, err
	}
	if prefix := c.String("prefix"); prefix != "" {
		blob = object.WithPrefix(blob, prefix)
	}
	if up, down := c.Int64("upload-limit"), c.Int64("download-limit"); up > 0 || down > 0 {
		blob = object.NewLimited(blob, up*1e6/8, down*1e6/8)
	}
	logger.Infof("Documents use %s", blob)
	return blob, nil
}

func createEngine(c *cli.Context, blob object.Store) (*chunk.Engine, error) {
	conf := chunk.Config{
		ChunkSize:     c.Int64("chunk-size") << 10,
		PreloadWindow: c.Int64("preload"),
		MaxCacheBytes: c.Int64("cache-size") << 20,
	}
	comp := compress.NewCompressor(c.String("compress"))
	if comp == nil {
		return nil, fmt.Errorf("unknown compress algorithm: %s", c.String("compress"))
	}
	store, err := chunk.OpenSqlite(c.String("cache-db"), comp)
	if err != nil {
		return nil, err
	}
	eng := chunk.NewEngine(blob, conf)
	eng.Open(store)
	return eng, nil
}

func createSynchronizer(c *cli.Context, blob object.Store, interval time.Duration) (*progress.Synchronizer, *progress.Ledger, error) {
	db, err := kv.OpenSqlite(c.String("meta-db"))
	if err != nil {
		return nil, nil, err
	}
	ledger := progress.NewLedger(db)
	return progress.NewSynchronizer(ledger, blob, interval), ledger, nil
}

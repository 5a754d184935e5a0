package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ReadRelay/pkg/utils"

	"github.com/urfave/cli/v2"
)

func warmupFlags() *cli.Command {
	flags := []cli.Flag{
		&cli.UintFlag{
			Name:    "threads",
			Aliases: []string{"p"},
			Value:   10,
			Usage:   "number of concurrent workers",
		},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags, cacheFlags()...)
	return &cli.Command{
		Name:      "warmup",
		Usage:     "fetch all chunks of documents into the local cache",
		ArgsUsage: "DOC-ID:SIZE [DOC-ID:SIZE ...]",
		Action:    warmup,
		Flags:     flags,
	}
}

type warmupDoc struct {
	id   string
	size int64
}

func warmup(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("DOC-ID:SIZE is needed")
	}
	var docs []warmupDoc
	for i := 0; i < c.Args().Len(); i++ {
		arg := c.Args().Get(i)
		p := strings.LastIndexByte(arg, ':')
		if p <= 0 {
			return fmt.Errorf("invalid argument %q, expect DOC-ID:SIZE", arg)
		}
		size, err := strconv.ParseInt(arg[p+1:], 10, 64)
		if err != nil || size <= 0 {
			return fmt.Errorf("invalid size in %q", arg)
		}
		docs = append(docs, warmupDoc{arg[:p], size})
	}

	blob, err := createStore(c)
	if err != nil {
		return err
	}
	eng, err := createEngine(c, blob)
	if err != nil {
		return err
	}

	chunkSize := eng.Config().ChunkSize
	var total int64
	for _, d := range docs {
		total += (d.size + chunkSize - 1) / chunkSize
	}

	logger.Infof("start to warmup %d documents with %d workers", len(docs), c.Uint("threads"))
	start := time.Now()
	bars, bar := utils.NewDynProgressBar("warming up: ", c.Bool("quiet"))
	bar.SetTotal(total, false)

	todo := make(chan warmupDoc, len(docs))
	var wg sync.WaitGroup
	var failed int64
	var mu sync.Mutex
	for i := uint(0); i < c.Uint("threads"); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range todo {
				err := eng.FillCache(context.Background(), d.id, d.size, func() { bar.Increment() })
				if err != nil {
					logger.Errorf("warmup %s: %s", d.id, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	for _, d := range docs {
		todo <- d
	}
	close(todo)
	wg.Wait()
	bar.SetTotal(total, true)
	bars.Wait()
	if failed > 0 {
		return fmt.Errorf("failed to warmup %d of %d documents", failed, len(docs))
	}
	logger.Infof("warmup %d documents in %s", len(docs), time.Since(start))
	return nil
}

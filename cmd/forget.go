package main

import (
	"fmt"

	"ReadRelay/pkg/chunk"
	"ReadRelay/pkg/compress"
	"ReadRelay/pkg/kv"
	"ReadRelay/pkg/progress"

	"github.com/urfave/cli/v2"
)

func forgetFlags() *cli.Command {
	flags := append(cacheFlags(), metaFlags()...)
	return &cli.Command{
		Name:      "forget",
		Usage:     "drop cached chunks and recorded progress of documents",
		ArgsUsage: "DOC-ID [DOC-ID ...]",
		Action:    forget,
		Flags:     flags,
	}
}

func forget(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("DOC-ID is needed")
	}

	store, err := chunk.OpenSqlite(c.String("cache-db"), compress.NewCompressor(c.String("compress")))
	if err != nil {
		return err
	}
	eng := chunk.NewEngine(nil, chunk.DefaultConfig())
	eng.Open(store)

	db, err := kv.OpenSqlite(c.String("meta-db"))
	if err != nil {
		return err
	}
	defer db.Close()
	syn := progress.NewSynchronizer(progress.NewLedger(db), nil, 0)

	for i := 0; i < c.Args().Len(); i++ {
		id := c.Args().Get(i)
		eng.EvictDocument(id)
		if err := syn.Forget(id); err != nil {
			return err
		}
		logger.Infof("forgot %s", id)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"

	"ReadRelay/pkg/chunk"
	"ReadRelay/pkg/compress"
	"ReadRelay/pkg/kv"
	"ReadRelay/pkg/progress"

	"github.com/urfave/cli/v2"
)

type sections struct {
	Cache    *chunk.Stats
	Progress []*progress.Progress
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func status(c *cli.Context) error {
	setLoggerLevel(c)

	store, err := chunk.OpenSqlite(c.String("cache-db"), compress.NewCompressor(c.String("compress")))
	if err != nil {
		return err
	}
	eng := chunk.NewEngine(nil, chunk.DefaultConfig())
	eng.Open(store)
	stats, err := eng.Stats()
	if err != nil {
		return err
	}

	db, err := kv.OpenSqlite(c.String("meta-db"))
	if err != nil {
		return err
	}
	defer db.Close()
	entries, err := progress.NewLedger(db).List()
	if err != nil {
		return err
	}

	printJson(&sections{stats, entries})
	return nil
}

func statusFlags() *cli.Command {
	flags := append(cacheFlags(), metaFlags()...)
	return &cli.Command{
		Name:   "status",
		Usage:  "show cached chunks and recorded reading progress",
		Action: status,
		Flags:  flags,
	}
}

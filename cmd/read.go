package main

import (
	"context"
	"fmt"
	"os"

	"ReadRelay/pkg/progress"

	"github.com/urfave/cli/v2"
)

func readFlags() *cli.Command {
	flags := []cli.Flag{
		&cli.Int64Flag{
			Name:     "size",
			Usage:    "total size of the document in bytes",
			Required: true,
		},
		&cli.Int64Flag{
			Name:  "position",
			Usage: "byte position to read around",
		},
		&cli.Int64Flag{
			Name:  "view",
			Value: 4096,
			Usage: "bytes of context on each side of the position",
		},
		&cli.Int64Flag{
			Name:  "offset",
			Value: -1,
			Usage: "read an exact range starting here instead of around a position",
		},
		&cli.Int64Flag{
			Name:  "length",
			Usage: "length of the exact range",
		},
		&cli.BoolFlag{
			Name:  "record",
			Usage: "record the position in the ledger and push it to the remote store",
		},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags, cacheFlags()...)
	flags = append(flags, metaFlags()...)
	return &cli.Command{
		Name:      "read",
		Usage:     "print document content around a position or an exact byte range",
		ArgsUsage: "DOC-ID",
		Action:    read,
		Flags:     flags,
	}
}

func read(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Args().Len() < 1 {
		return fmt.Errorf("DOC-ID is needed")
	}
	id := c.Args().Get(0)
	size := c.Int64("size")

	blob, err := createStore(c)
	if err != nil {
		return err
	}
	eng, err := createEngine(c, blob)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var content string
	var start int64
	if off := c.Int64("offset"); off >= 0 {
		content, start, err = eng.ReadRange(ctx, id, size, off, c.Int64("length"))
	} else {
		v, verr := eng.ReadWithContext(ctx, id, size, c.Int64("position"), c.Int64("view"))
		if verr != nil {
			return verr
		}
		content, start = v.Content, v.Offset
	}
	if err != nil {
		return err
	}
	os.Stdout.WriteString(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		os.Stdout.WriteString("\n")
	}

	if c.Bool("record") {
		syn, _, err := createSynchronizer(c, blob, 0)
		if err != nil {
			return err
		}
		pos := c.Int64("position")
		p := progress.New(id, pos, size)
		if pos >= start && pos <= start+int64(len(content)) {
			p.Line = progress.CountLines([]byte(content[:pos-start]))
		}
		if err = syn.Record(p); err != nil {
			return err
		}
		syn.FlushPending(ctx)
	}
	return nil
}

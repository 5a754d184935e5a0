package main

import (
	"context"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/juicedata/godaemon"
	"github.com/urfave/cli/v2"
)

func syncFlags() *cli.Command {
	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Value: 30 * time.Second,
			Usage: "interval between flushes of pending progress writes",
		},
		&cli.BoolFlag{
			Name:    "d",
			Aliases: []string{"background"},
			Usage:   "run in background",
		},
		&cli.StringFlag{
			Name:  "log",
			Value: path.Join(defaultDataDir(), "sync.log"),
			Usage: "path of log file when running in background",
		},
		&cli.BoolFlag{
			Name:  "no-agent",
			Usage: "disable the diagnostic agent",
		},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags, metaFlags()...)
	return &cli.Command{
		Name:   "sync",
		Usage:  "run the periodic progress synchronizer",
		Action: runSync,
		Flags:  flags,
	}
}

func makeDaemon(c *cli.Context) error {
	var attrs godaemon.DaemonAttr
	if godaemon.Stage() == 0 {
		var err error
		logfile := c.String("log")
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	return err
}

func runSync(c *cli.Context) error {
	setLoggerLevel(c)
	if c.Bool("d") {
		if err := makeDaemon(c); err != nil {
			logger.Fatalf("make daemon: %s", err)
		}
	}
	if !c.Bool("no-agent") {
		go func() {
			if err := agent.Listen(agent.Options{}); err != nil {
				logger.Warnf("gops agent: %s", err)
			}
		}()
	}

	blob, err := createStore(c)
	if err != nil {
		return err
	}
	syn, ledger, err := createSynchronizer(c, blob, c.Duration("interval"))
	if err != nil {
		return err
	}

	// pick up remote changes made while this device was offline
	entries, err := ledger.List()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for _, p := range entries {
		ids = append(ids, p.DocumentID)
	}
	syn.ReconcileAll(context.Background(), ids)

	syn.StartPeriodic()
	logger.Infof("synchronizer started, flushing every %s", c.Duration("interval"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("stopping synchronizer")
	syn.StopPeriodic()
	syn.FlushPending(context.Background())
	return nil
}

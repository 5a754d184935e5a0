package main

import (
	"os"

	"ReadRelay/pkg/utils"
	"ReadRelay/pkg/version"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger = utils.GetLogger("readrelay")

func main() {
	app := &cli.App{
		Name:    "readrelay",
		Usage:   "resume large text documents at the same position on every device",
		Version: version.Version(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug", "v"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "enable trace log",
			},
		},
		Commands: []*cli.Command{
			readFlags(),
			warmupFlags(),
			statusFlags(),
			syncFlags(),
			forgetFlags(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%s", err)
	}
}

func setLoggerLevel(c *cli.Context) {
	if c.Bool("trace") {
		utils.SetLogLevel(logrus.TraceLevel)
	} else if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	}
}

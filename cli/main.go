package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	URL = `url`
)

func init() {
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stdout)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "crashes-cli",
		Usage: "command line utils for the crash collector",
		Commands: []*cli.Command{
			SendCommand(),
			ListCommand(),
			WaitCommand(),
			RemoveCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

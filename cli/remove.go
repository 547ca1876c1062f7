package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iqoption/crashcollector/common/data/base"
)

const (
	AGE   = `older`
	INDEX = `index`
	SIZE  = `count`
	SHOW  = `show_only`
)

type Callback func(c *cli.Context, args []string) error

var rmCallbacks = map[string]Callback{
	"crashes": rmCrashes,
}

func RemoveCommand() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "remove indexed crashes from Elasticsearch",
		Action:  remove,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  AGE,
				Value: "16d",
			},
			&cli.StringFlag{
				Name:  URL,
				Value: "http://127.0.0.1:9200",
			},
			&cli.StringFlag{
				Name:  INDEX,
				Value: "crashes",
			},
			&cli.IntFlag{
				Name:  SIZE,
				Value: 1000,
			},
			&cli.BoolFlag{
				Name: SHOW,
			},
		},
	}
}

func remove(c *cli.Context) error {
	if c.NArg() == 0 {
		message := `Empty task, available values:
	crashes`
		fmt.Fprintln(c.App.Writer, message)
		return fmt.Errorf("Empty task")
	}

	task := c.Args().Get(0)

	cb, ok := rmCallbacks[task]
	if !ok {
		return fmt.Errorf("Unknown task %s", task)
	}
	return cb(c, c.Args().Tail())
}

func rmCrashes(c *cli.Context, args []string) error {
	repository, err := base.NewRepository(c.String(URL), c.String(INDEX), nil)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"url":   c.String(URL),
		}).Error("Can't create ElasticSearch client")
		return err
	}

	reports, err := repository.FindOlder(c.Context, c.String(AGE), c.Int(SIZE))
	if err != nil {
		return err
	}

	for _, r := range reports {
		if c.Bool(SHOW) {
			log.WithFields(log.Fields{
				"id":       r.Id,
				"received": r.Received,
				"files":    r.Files,
			}).Info("Crash")
			continue
		}

		if err := repository.RemoveReport(c.Context, r.Id); err != nil {
			log.WithFields(log.Fields{
				"error": err,
				"id":    r.Id,
			}).Error("Can't remove document in Elastic")
			return err
		}

		for _, path := range r.Files {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.WithFields(log.Fields{
					"error": err,
					"path":  path,
				}).Warning("Can't remove stored file")
			}
		}

		log.WithFields(log.Fields{
			"id":       r.Id,
			"received": r.Received,
		}).Info("Removed crash")
	}

	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iqoption/crashcollector/common/format"
	"github.com/iqoption/crashcollector/common/format/minidump"
	"github.com/iqoption/crashcollector/common/upload"
	"github.com/iqoption/crashcollector/common/utils"
)

const (
	FIELD    = `field`
	MINIDUMP = `minidump`
	TIMEOUT  = `timeout`
	INTERVAL = `interval`

	defaultCollector = "http://127.0.0.1:1127/"
)

func collectorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  URL,
		Value: defaultCollector,
		Usage: "collector submit URL",
	}
}

func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "upload a synthetic crash",
		Flags: []cli.Flag{
			collectorFlag(),
			&cli.StringSliceFlag{
				Name:    FIELD,
				Aliases: []string{"f"},
				Usage:   "form field as key=value, repeatable",
			},
			&cli.StringFlag{
				Name:  MINIDUMP,
				Usage: "path to a minidump to attach",
			},
		},
		Action: send,
	}
}

func send(c *cli.Context) error {
	fields := map[string]string{}
	for _, kv := range c.StringSlice(FIELD) {
		k, v, ok := utils.KeyValue(kv)
		if !ok {
			return fmt.Errorf("invalid field %q, want key=value", kv)
		}
		fields[k] = v
	}

	var files map[string]string
	if path := c.String(MINIDUMP); path != "" {
		files = map[string]string{upload.MinidumpPart: path}
	}

	id, err := upload.NewClient(c.String(URL)).Send(c.Context, fields, files)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, id)
	return nil
}

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "print the collector's crash log",
		Flags:   []cli.Flag{collectorFlag()},
		Action: func(c *cli.Context) error {
			reports, err := upload.NewClient(c.String(URL)).Crashes(c.Context)
			if err != nil {
				return err
			}
			for i := range reports {
				if err := printReport(c.App.Writer, &reports[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func WaitCommand() *cli.Command {
	return &cli.Command{
		Name:  "wait",
		Usage: "wait for the next crash and print it",
		Flags: []cli.Flag{
			collectorFlag(),
			&cli.DurationFlag{
				Name:  TIMEOUT,
				Value: 30 * time.Second,
			},
			&cli.DurationFlag{
				Name:  INTERVAL,
				Value: 200 * time.Millisecond,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration(TIMEOUT))
			defer cancel()

			r, err := waitForNext(ctx, upload.NewClient(c.String(URL)), c.Duration(INTERVAL))
			if err != nil {
				return err
			}
			return printReport(c.App.Writer, r)
		},
	}
}

// waitForNext polls the crash log until it grows past its size at call time.
func waitForNext(ctx context.Context, client *upload.Client, interval time.Duration) (*minidump.Report, error) {
	reports, err := client.Crashes(ctx)
	if err != nil {
		return nil, err
	}
	seen := len(reports)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no crash received: %w", ctx.Err())
		case <-ticker.C:
		}

		reports, err := client.Crashes(ctx)
		if err != nil {
			log.WithError(err).Debug("Can't list crashes, retry")
			continue
		}
		if len(reports) > seen {
			return &reports[seen], nil
		}
	}
}

func printReport(w io.Writer, r *minidump.Report) error {
	data, err := json.Marshal(struct {
		Id     string            `json:"id"`
		Info   *format.Info      `json:"info"`
		Extras []string          `json:"extras,omitempty"`
		Fields map[string]string `json:"fields"`
		Files  map[string]string `json:"files,omitempty"`
	}{r.Id, format.InfoFromReport(r), format.Extras(r), r.Fields, r.Files})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

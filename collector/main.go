package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iqoption/crashcollector/collector/api"
	"github.com/iqoption/crashcollector/collector/cfg"
	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/collector/service"
)

var Build string
var Version string

const (
	SIGHUP  = syscall.SIGHUP
	SIGINT  = syscall.SIGINT
	SIGTERM = syscall.SIGTERM

	shutdownTimeout = 10 * time.Second
)

func loadConfig() (cfg.Config, string) {
	var cPath string
	var showVersion bool = false
	var showBuild bool = false

	flag.StringVar(&cPath, "config", "", "path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "show version")
	flag.BoolVar(&showBuild, "build", false, "show build")

	flag.Parse()

	if showVersion {
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	if showBuild {
		fmt.Printf("Build: %s\n", Build)
		os.Exit(0)
	}

	if cPath == "" {
		log.Info("Config file is not set, listen on an ephemeral loopback port")
		return cfg.Default(), ""
	}

	conf, err := cfg.FromJson(cPath)
	if err != nil {
		log.WithError(err).Fatal("Error reading configuration file")
	}
	return conf, cPath
}

func changeLevel(l string) {
	level, err := log.ParseLevel(l)
	if err == nil {
		log.WithField("level", level).
			Info("Change log level")
		log.SetLevel(level)
	} else {
		log.WithError(err).Warning("Can't setup log level")
	}
}

func HandleError(err error) {
	if err != nil {
		log.WithError(err).Fatal("Can't start collector")
	}
}

func main() {
	conf, cPath := loadConfig()
	changeLevel(conf.LogLevel())

	m := metrics.NewMetrics()
	collector, err := service.NewCollector(conf, m)
	HandleError(err)

	server, err := api.NewServer(conf, collector, m)
	HandleError(err)
	HandleError(server.Start())

	fmt.Println(server.URL())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, SIGHUP, SIGINT, SIGTERM)
	for sig := range signals {
		if sig == SIGHUP {
			reloadConfiguration(cPath, conf)
			continue
		}

		log.WithField("signal", sig.String()).Info("Catch")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		server.Stop(ctx)
		collector.Close(ctx)
		cancel()
		return
	}
}

// reloadConfiguration applies the log level of the file. The listener and
// the sinks are bound at start and keep their settings.
func reloadConfiguration(cPath string, current cfg.Config) {
	log.Info("Try to reload configuration")
	if len(cPath) == 0 {
		return
	}
	conf, err := cfg.FromJson(cPath)
	if err != nil {
		log.WithError(err).
			Error("Error reading configuration file")
		return
	}
	if conf.Host() != current.Host() || conf.Port() != current.Port() {
		log.Warning("Listen address changed, restart the collector to apply it")
	}
	changeLevel(conf.LogLevel())
	log.Info("Reloaded configuration")
}

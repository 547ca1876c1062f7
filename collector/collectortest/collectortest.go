// Package collectortest runs a crash collection server for tests, the way
// net/http/httptest runs an HTTP server.
package collectortest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iqoption/crashcollector/collector/api"
	"github.com/iqoption/crashcollector/collector/cfg"
	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/collector/service"
	"github.com/iqoption/crashcollector/common/format/minidump"
	"github.com/iqoption/crashcollector/common/upload"
)

const stopTimeout = 5 * time.Second

// Collector is a started server on an ephemeral loopback port. It is stopped
// when the test ends.
type Collector struct {
	*api.Server
	Config  *cfg.JsonConfig
	Metrics *metrics.Metrics
}

// New starts a collector. opts adjust the default configuration before the
// server is created.
func New(tb testing.TB, opts ...func(*cfg.JsonConfig)) *Collector {
	tb.Helper()

	conf := cfg.Default()
	for _, o := range opts {
		o(conf)
	}

	m := metrics.NewMetrics()
	svc := service.New(m)
	srv, err := api.NewServer(conf, svc, m)
	require.NoError(tb, err)
	require.NoError(tb, srv.Start())

	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		srv.Stop(ctx)
		svc.Close(ctx)
	})

	return &Collector{Server: srv, Config: conf, Metrics: m}
}

// Upload sends one crash and returns the report id the server answered with.
func (c *Collector) Upload(tb testing.TB, fields map[string]string, files map[string]string) string {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	id, err := upload.NewClient(c.URL()).Send(ctx, fields, files)
	require.NoError(tb, err)
	return id
}

// AwaitCrash registers a waiter, runs trigger and returns the crash that
// arrives next. The test fails if none arrives within timeout.
func (c *Collector) AwaitCrash(tb testing.TB, timeout time.Duration, trigger func()) *minidump.Report {
	tb.Helper()

	w, err := c.Service().WaitForNextCrash()
	require.NoError(tb, err)

	trigger()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	r, err := w.Wait(ctx)
	require.NoError(tb, err, "no crash received")
	return r
}

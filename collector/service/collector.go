package service

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/common/format"
	"github.com/iqoption/crashcollector/common/format/minidump"
)

const sinkTimeout = 10 * time.Second

// CollectorService owns the crash log and the single waiter slot. The log
// is append-only and keeps decode-completion order.
type CollectorService struct {
	mu       sync.Mutex
	reports  []*minidump.Report
	byId     map[string]*minidump.Report
	waiter   *Waiter
	failures []error

	sinks     []Sink
	sinkWg    sync.WaitGroup
	closeOnce sync.Once
	metrics   *metrics.Metrics
}

// New creates a collector forwarding every crash to sinks.
func New(m *metrics.Metrics, sinks ...Sink) *CollectorService {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &CollectorService{
		byId:    map[string]*minidump.Report{},
		sinks:   sinks,
		metrics: m,
	}
}

// Add appends report to the log and detaches the pending waiter, if any.
// The returned notify must be called once the uploader has been answered:
// it resolves the detached waiter and forwards the report to the sinks.
func (s *CollectorService) Add(report *minidump.Report) (notify func()) {
	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.byId[report.Id] = report
	w := s.waiter
	s.waiter = nil
	stored := len(s.reports)
	s.mu.Unlock()

	s.metrics.CrashesReceived.Inc()
	s.metrics.CrashesStored.Set(float64(stored))

	info := format.InfoFromReport(report)
	log.WithFields(log.Fields{
		"id":           report.Id,
		"prod":         info.Product,
		"ver":          info.Version,
		"process_type": info.ProcessType,
		"platform":     info.Platform,
		"extras":       format.Extras(report),
	}).Info("Crash received")

	return func() {
		if w != nil {
			w.resolve(report.Clone())
			s.metrics.WaitersResolved.Inc()
		}
		s.forward(report.Clone())
	}
}

func (s *CollectorService) Metrics() *metrics.Metrics {
	return s.metrics
}

// Fail records a rejected upload.
func (s *CollectorService) Fail(err error) {
	s.mu.Lock()
	s.failures = append(s.failures, err)
	s.mu.Unlock()

	s.metrics.ParseErrors.Inc()
}

// Failures returns the errors of every rejected upload so far.
func (s *CollectorService) Failures() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.failures...)
}

// Crashes returns a snapshot of the log in append order.
func (s *CollectorService) Crashes() []*minidump.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*minidump.Report, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.Clone()
	}
	return out
}

// Latest returns the most recently appended crash.
func (s *CollectorService) Latest() (*minidump.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.reports) == 0 {
		return nil, false
	}
	return s.reports[len(s.reports)-1].Clone(), true
}

func (s *CollectorService) Get(id string) (*minidump.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byId[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// WaitForNextCrash registers a waiter for the first crash appended after
// this call. Only one waiter may be pending at a time.
func (s *CollectorService) WaitForNextCrash() (*Waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiter != nil {
		return nil, ErrWaiterPending
	}
	w := &Waiter{c: make(chan *minidump.Report, 1), s: s}
	s.waiter = w
	return w, nil
}

func (s *CollectorService) forward(report *minidump.Report) {
	for _, sink := range s.sinks {
		s.sinkWg.Add(1)
		go func(sink Sink) {
			defer s.sinkWg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()

			if err := sink.Deliver(ctx, report); err != nil {
				s.metrics.SinkFailures.WithLabelValues(sink.Name()).Inc()
				log.WithFields(log.Fields{
					"sink":  sink.Name(),
					"id":    report.Id,
					"error": err,
				}).Error("Can't forward crash")
			}
		}(sink)
	}
}

// Close waits for in-flight forwards, bounded by ctx, then closes the sinks.
func (s *CollectorService) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { s.close(ctx) })
	return nil
}

func (s *CollectorService) close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.sinkWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warning("Stop waiting for crash forwards")
	}

	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			log.WithFields(log.Fields{
				"sink":  sink.Name(),
				"error": err,
			}).Warning("Can't close sink")
		}
	}
}

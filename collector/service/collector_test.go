package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/common/format/minidump"
)

type fakeSink struct {
	mu      sync.Mutex
	got     []*minidump.Report
	err     error
	closed  bool
	deliver chan struct{}
}

func newFakeSink(err error) *fakeSink {
	return &fakeSink{err: err, deliver: make(chan struct{}, 16)}
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Deliver(_ context.Context, r *minidump.Report) error {
	f.mu.Lock()
	f.got = append(f.got, r)
	f.mu.Unlock()
	f.deliver <- struct{}{}
	return f.err
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func add(s *CollectorService, fields map[string]string) *minidump.Report {
	r := minidump.NewReport(fields)
	s.Add(r)()
	return r
}

func TestCrashesKeepsAppendOrder(t *testing.T) {
	s := New(nil)
	require.Empty(t, s.Crashes())

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, add(s, map[string]string{"n": fmt.Sprint(i)}).Id)
	}

	crashes := s.Crashes()
	require.Len(t, crashes, 5)
	for i, c := range crashes {
		require.Equal(t, ids[i], c.Id)
		require.Equal(t, fmt.Sprint(i), c.Fields["n"])
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	require.Equal(t, ids[4], latest.Id)

	got, ok := s.Get(ids[2])
	require.True(t, ok)
	require.Equal(t, "2", got.Fields["n"])

	_, ok = s.Get("unknown")
	require.False(t, ok)
}

func TestCrashesReturnsSnapshot(t *testing.T) {
	s := New(nil)
	fields := map[string]string{"prod": "Electron", "ver": "1.2.3"}
	add(s, fields)

	crashes := s.Crashes()
	crashes[0].Fields["prod"] = "changed"

	again := s.Crashes()
	if diff := cmp.Diff(fields, again[0].Fields); diff != "" {
		t.Errorf("record changed through snapshot (-want +got):\n%s", diff)
	}
}

func TestLatestOnEmptyLog(t *testing.T) {
	_, ok := New(nil).Latest()
	require.False(t, ok)
}

func TestWaitForNextCrash(t *testing.T) {
	s := New(nil)
	w, err := s.WaitForNextCrash()
	require.NoError(t, err)

	sent := add(s, map[string]string{"prod": "Electron", "ver": "1.2.3"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := w.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, sent.Id, got.Id)
	require.Equal(t, "Electron", got.Fields["prod"])
	require.Equal(t, "1.2.3", got.Fields["ver"])
}

func TestWaiterIgnoresEarlierCrashes(t *testing.T) {
	s := New(nil)
	add(s, map[string]string{"n": "before"})

	w, err := s.WaitForNextCrash()
	require.NoError(t, err)

	select {
	case r := <-w.C():
		t.Fatalf("waiter resolved with a crash from before registration: %v", r.Fields)
	default:
	}

	add(s, map[string]string{"n": "after"})
	r := <-w.C()
	require.Equal(t, "after", r.Fields["n"])
}

func TestWaiterResolvedOnceUnderConcurrentAdds(t *testing.T) {
	m := metrics.NewMetrics()
	s := New(m)
	w, err := s.WaitForNextCrash()
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			add(s, map[string]string{"n": fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	first := <-w.C()
	select {
	case r := <-w.C():
		t.Fatalf("waiter resolved twice, second with %v", r.Fields)
	default:
	}

	crashes := s.Crashes()
	require.Len(t, crashes, n)
	require.Equal(t, crashes[0].Id, first.Id)
	require.Equal(t, 1.0, testutil.ToFloat64(m.WaitersResolved))
	require.Equal(t, float64(n), testutil.ToFloat64(m.CrashesReceived))
	require.Equal(t, float64(n), testutil.ToFloat64(m.CrashesStored))

	// The slot is free again once resolved.
	_, err = s.WaitForNextCrash()
	require.NoError(t, err)
}

func TestSecondWaiterIsRejected(t *testing.T) {
	s := New(nil)
	w, err := s.WaitForNextCrash()
	require.NoError(t, err)

	_, err = s.WaitForNextCrash()
	require.True(t, errors.Is(err, ErrWaiterPending))

	w.Cancel()
	_, err = s.WaitForNextCrash()
	require.NoError(t, err)
}

func TestWaitTimesOut(t *testing.T) {
	s := New(nil)
	w, err := s.WaitForNextCrash()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	// Timing out cancels the waiter, so a crash now lands in the log only.
	add(s, map[string]string{"n": "late"})
	require.Len(t, s.Crashes(), 1)
	_, err = s.WaitForNextCrash()
	require.NoError(t, err)
}

func TestNotifyForwardsToSinks(t *testing.T) {
	m := metrics.NewMetrics()
	ok := newFakeSink(nil)
	failing := newFakeSink(errors.New("unavailable"))
	s := New(m, ok, failing)

	r := add(s, map[string]string{"prod": "Electron"})
	<-ok.deliver
	<-failing.deliver

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	require.Len(t, ok.got, 1)
	require.Equal(t, r.Id, ok.got[0].Id)
	require.True(t, ok.closed)
	require.True(t, failing.closed)
	require.Equal(t, 1.0, testutil.ToFloat64(m.SinkFailures.WithLabelValues("fake")))
}

func TestFailures(t *testing.T) {
	m := metrics.NewMetrics()
	s := New(m)
	s.Fail(&ParseError{Err: errors.New("no multipart boundary")})

	failures := s.Failures()
	require.Len(t, failures, 1)

	var perr *ParseError
	require.True(t, errors.As(failures[0], &perr))
	require.Contains(t, perr.Error(), "no multipart boundary")
	require.Empty(t, s.Crashes())
	require.Equal(t, 1.0, testutil.ToFloat64(m.ParseErrors))
}

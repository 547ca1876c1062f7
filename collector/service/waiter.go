package service

import (
	"context"

	"github.com/go-errors/errors"

	"github.com/iqoption/crashcollector/common/format/minidump"
)

// Waiter is a one-shot subscription to the next crash appended to the log.
type Waiter struct {
	c chan *minidump.Report
	s *CollectorService
}

// C receives exactly one report, unless the waiter is cancelled first or the
// collector never gets another crash.
func (w *Waiter) C() <-chan *minidump.Report {
	return w.c
}

// Wait blocks until the crash arrives or ctx ends. On ctx end the waiter is
// cancelled.
func (w *Waiter) Wait(ctx context.Context) (*minidump.Report, error) {
	select {
	case r := <-w.c:
		return r, nil
	case <-ctx.Done():
		w.Cancel()
		// Delivery may have won the race with cancellation.
		select {
		case r := <-w.c:
			return r, nil
		default:
		}
		return nil, errors.Wrap(ctx.Err(), 0)
	}
}

// Cancel frees the waiter slot. It is a no-op once the waiter was resolved.
func (w *Waiter) Cancel() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	if w.s.waiter == w {
		w.s.waiter = nil
	}
}

func (w *Waiter) resolve(r *minidump.Report) {
	w.c <- r
}

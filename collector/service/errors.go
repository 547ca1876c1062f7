package service

import (
	"github.com/go-errors/errors"
)

// ErrWaiterPending is returned by WaitForNextCrash while another waiter is
// registered and has neither been resolved nor cancelled.
var ErrWaiterPending = errors.New("a crash waiter is already pending")

// ParseError means an upload body could not be decoded as multipart form
// data. It fails that one request only.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "malformed crash upload: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

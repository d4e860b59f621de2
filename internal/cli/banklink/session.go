package banklink

import (
	"context"

	"github.com/thrivebase/thrivebase/internal/cli/client"
)

// Result is how a link session ended. Exchange is set after a successful
// token exchange, Exit when the user left the widget, Err on failure.
type Result struct {
	Exchange *client.ExchangeResponse
	Exit     *Exit
	Err      error
}

// LinkSession is an open Plaid Link widget whose outcome is handled in the
// background
type LinkSession struct {
	handle   Handle
	finished chan struct{}
	result   Result
}

func newLinkSession(h Handle) *LinkSession {
	return &LinkSession{
		handle:   h,
		finished: make(chan struct{}),
	}
}

// Finished is closed once the outcome has been handled
func (s *LinkSession) Finished() <-chan struct{} {
	return s.finished
}

// Wait blocks until the outcome has been handled or ctx is done
func (s *LinkSession) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.finished:
		return s.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

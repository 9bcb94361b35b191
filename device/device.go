// Package device defines the link a CAN adapter exposes to the rest of the
// program.
package device

import (
	"context"
	"errors"

	"obdreader/can"
)

// ErrClosed is returned once a link has been closed.
var ErrClosed = errors.New("device: closed")

// Bus is a raw CAN link.
type Bus interface {
	// Run reads frames from the link and delivers them on frames until ctx
	// is done or the link fails. It blocks, so run it in its own goroutine.
	Run(ctx context.Context, frames chan<- can.Frame) error

	// Send transmits one frame.
	Send(f can.Frame) error

	Close() error
}

// Package sim is a scripted ECU that answers diagnostic requests with canned
// frames. It stands in for a vehicle when no adapter is attached.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"obdreader/can"
	"obdreader/device"
)

const (
	// FunctionalID is the OBD-II broadcast request identifier.
	FunctionalID = 0x7DF
	// PhysicalID is the request identifier of the first engine ECU.
	PhysicalID = 0x7E0
	// ResponseID is where that ECU answers.
	ResponseID = 0x7E8

	queueSize = 64
)

// Option configures an ECU.
type Option func(*ECU)

// WithResponse answers requests carrying payload with frames. Frames are
// sent as written: a script starting with a first frame is held after that
// frame until flow control arrives.
func WithResponse(payload []byte, frames ...can.Frame) Option {
	return func(e *ECU) {
		e.script[key(payload)] = frames
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *ECU) {
		e.logger = logger
	}
}

// ECU is a device.Bus backed by a response script.
type ECU struct {
	logger zerolog.Logger
	script map[string][]can.Frame

	mu      sync.Mutex
	pending []can.Frame
	closed  bool

	out chan can.Frame
}

var _ device.Bus = (*ECU)(nil)

// New returns an ECU that knows the default script plus any responses given
// in opts.
func New(opts ...Option) *ECU {
	e := &ECU{
		logger: zerolog.Nop(),
		script: make(map[string][]can.Frame),
		out:    make(chan can.Frame, queueSize),
	}
	for _, opt := range DefaultScript() {
		opt(e)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run delivers the ECU's answers until ctx is done or the ECU is closed.
func (e *ECU) Run(ctx context.Context, frames chan<- can.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-e.out:
			if !ok {
				return device.ErrClosed
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Send hands a frame to the ECU.
func (e *ECU) Send(f can.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return device.ErrClosed
	}
	if f.Len == 0 {
		return nil
	}

	switch {
	case f.ID == PhysicalID && f.Data[0]>>4 == 0x3:
		if len(e.pending) == 0 {
			e.logger.Warn().Stringer("frame", f).Msg("flow control without transfer")
			return nil
		}
		pending := e.pending
		e.pending = nil
		return e.queue(pending...)

	case f.ID == FunctionalID || f.ID == PhysicalID:
		// Single frame requests only.
		n := int(f.Data[0] & 0x0F)
		if f.Data[0]>>4 != 0 || n == 0 || n > int(f.Len)-1 {
			e.logger.Warn().Stringer("frame", f).Msg("ignoring malformed request")
			return nil
		}
		payload := f.Data[1 : 1+n]
		frames, ok := e.script[key(payload)]
		if !ok {
			// serviceNotSupported
			return e.queue(can.Frame{ID: ResponseID, Len: 8, Data: [8]byte{0x03, 0x7F, payload[0], 0x11}})
		}
		e.pending = nil
		if len(frames) == 0 {
			return nil // scripted silence
		}
		if frames[0].Data[0]>>4 == 0x1 {
			e.pending = append([]can.Frame(nil), frames[1:]...)
			return e.queue(frames[0])
		}
		return e.queue(frames...)
	}
	return nil
}

func (e *ECU) queue(frames ...can.Frame) error {
	for _, f := range frames {
		select {
		case e.out <- f:
		default:
			return fmt.Errorf("sim: response queue full")
		}
	}
	return nil
}

// Close stops the ECU.
func (e *ECU) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.out)
	}
	return nil
}

func key(payload []byte) string {
	return fmt.Sprintf("% X", payload)
}

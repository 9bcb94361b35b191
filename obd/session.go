// Package obd reads OBD-II diagnostic data over an ISO-TP link: it sends
// single frame requests, reassembles the answers and decodes them.
package obd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"obdreader/can"
	"obdreader/device"
	"obdreader/isotp"
	"obdreader/report"
)

// Direction of a traced frame
type Direction int

const (
	Rx Direction = iota
	Tx
)

func (d Direction) String() string {
	if d == Tx {
		return "tx"
	}
	return "rx"
}

// Sender transmits frames on the link.
type Sender interface {
	Send(f can.Frame) error
}

// TraceFunc observes every frame the session sends or accepts.
type TraceFunc func(dir Direction, f can.Frame)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithIDs sets the request identifier and the identifier responses are
// accepted from.
func WithIDs(request, response uint32) SessionOption {
	return func(s *Session) {
		s.requestID = request
		s.responseID = response
	}
}

// WithTimeout bounds how long a request waits for its complete response.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithStrictSequence rejects responses whose consecutive frames arrive out
// of order.
func WithStrictSequence(strict bool) SessionOption {
	return func(s *Session) {
		s.strict = strict
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTrace registers fn to observe traffic.
func WithTrace(fn TraceFunc) SessionOption {
	return func(s *Session) {
		s.trace = fn
	}
}

// Session runs one request/response conversation at a time with the ECU
// answering on the response identifier.
type Session struct {
	tx Sender
	rx <-chan can.Frame

	requestID  uint32
	responseID uint32
	timeout    time.Duration
	strict     bool
	logger     zerolog.Logger
	trace      TraceFunc

	mu  sync.Mutex // one conversation at a time; guards asm
	asm *isotp.Reassembler
}

// NewSession returns a Session sending on tx and reading frames from rx.
func NewSession(tx Sender, rx <-chan can.Frame, opts ...SessionOption) *Session {
	s := &Session{
		tx:         tx,
		rx:         rx,
		requestID:  0x7DF,
		responseID: 0x7E8,
		timeout:    200 * time.Millisecond,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	var asmOpts []isotp.Option
	if s.strict {
		asmOpts = append(asmOpts, isotp.WithStrictSequence())
	}
	s.asm = isotp.New(asmOpts...)
	s.logger = s.logger.With().Str("component", "obd").Logger()
	return s
}

// Do sends req and returns the reassembled response payload. Frames from
// other identifiers are ignored. The timeout covers the whole exchange.
func (s *Session) Do(ctx context.Context, req Request) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.asm.Clear()
	s.drain()

	f, err := req.Frame(s.requestID)
	if err != nil {
		return nil, err
	}
	if err := s.send(f); err != nil {
		return nil, fmt.Errorf("send %s request: %w", req.Name, err)
	}

	start := time.Now()
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	started := false

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			s.asm.Clear()
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, req.Name, s.timeout)

		case f, ok := <-s.rx:
			if !ok {
				return nil, device.ErrClosed
			}
			if f.ID != s.responseID {
				continue
			}
			if !started && isContinuation(f) {
				// Tail of an earlier, abandoned response.
				s.logger.Debug().Stringer("frame", f).Msg("dropping stale consecutive frame")
				continue
			}
			started = true
			s.observe(Rx, f)

			needsFlowControl, err := s.asm.AddFrame(f)
			if err != nil {
				s.asm.Clear()
				return nil, fmt.Errorf("%s response: %w", req.Name, err)
			}

			if needsFlowControl {
				if err := s.send(s.asm.FlowControlFrame()); err != nil {
					s.asm.Clear()
					return nil, fmt.Errorf("send flow control: %w", err)
				}
			}

			if s.asm.Complete() {
				payload := s.asm.Payload()
				s.asm.Clear()
				s.logger.Debug().
					Str("request", req.Name).
					Int("bytes", len(payload)).
					Dur("elapsed", time.Since(start)).
					Msg("response complete")
				return payload, nil
			}
		}
	}
}

func isContinuation(f can.Frame) bool {
	role, err := isotp.Classify(f)
	return err == nil && role == isotp.RoleConsecutive
}

// drain drops frames left over from an earlier exchange.
func (s *Session) drain() {
	for {
		select {
		case _, ok := <-s.rx:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) send(f can.Frame) error {
	s.observe(Tx, f)
	return s.tx.Send(f)
}

func (s *Session) observe(dir Direction, f can.Frame) {
	s.logger.Debug().Stringer("dir", dir).Stringer("frame", f).Msg("frame")
	if s.trace != nil {
		s.trace(dir, f)
	}
}

// ReadVIN requests the vehicle identification number.
func (s *Session) ReadVIN(ctx context.Context) (string, error) {
	payload, err := s.Do(ctx, VINRequest)
	if err != nil {
		return "", err
	}
	return ParseVIN(payload)
}

// ReadCodes requests the stored trouble codes.
func (s *Session) ReadCodes(ctx context.Context) ([]string, error) {
	payload, err := s.Do(ctx, StoredCodesRequest)
	if err != nil {
		return nil, err
	}
	return ParseCodes(payload)
}

// ClearCodes asks the ECU to clear stored trouble codes.
func (s *Session) ClearCodes(ctx context.Context) error {
	payload, err := s.Do(ctx, ClearCodesRequest)
	if err != nil {
		return err
	}
	return ParseClear(payload)
}

// Query runs the query for t and wraps the outcome in a report.
func (s *Session) Query(ctx context.Context, t report.Type) report.Report {
	r := report.Report{Type: t}
	switch t {
	case report.TypeVIN:
		r.VIN, r.Err = s.ReadVIN(ctx)
	case report.TypeCodes:
		r.Codes, r.Err = s.ReadCodes(ctx)
	case report.TypeCleared:
		r.Err = s.ClearCodes(ctx)
	default:
		r.Err = fmt.Errorf("obd: unknown query %v", t)
	}
	r.At = time.Now()

	if r.Err != nil {
		s.logger.Warn().Err(r.Err).Stringer("query", t).Msg("query failed")
	} else {
		s.logger.Info().Stringer("query", t).Str("result", r.Data()).Msg("query done")
	}
	return r
}

// Package slcan talks to CAN adapters that speak the Lawicel serial line
// protocol, either on a USB serial port or over TCP.
package slcan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"obdreader/can"
	"obdreader/config"
	"obdreader/device"
)

// Client represents an open channel on an SLCAN adapter
type Client struct {
	conn   io.ReadWriteCloser // The underlying connection (TCP, Serial, etc.)
	logger zerolog.Logger

	mu     sync.Mutex // serializes writes
	closed bool
}

// Connect opens the adapter named by the interface config and starts its
// CAN channel at the configured bitrate.
func Connect(conf config.InterfaceConfig, logger zerolog.Logger) (*Client, error) {
	var (
		conn io.ReadWriteCloser
		err  error
	)

	// host:port means a network adapter, anything else is a serial device
	if strings.Contains(conf.Device, ":") && !strings.HasPrefix(strings.ToUpper(conf.Device), "COM") {
		logger.Info().Str("address", conf.Device).Msg("connecting to SLCAN adapter over TCP")
		conn, err = connectTCP(conf.Device)
	} else {
		logger.Info().Str("device", conf.Device).Int("baud", conf.Baud).Msg("opening SLCAN serial adapter")
		conn, err = connectSerial(conf.Device, conf.Baud)
	}
	if err != nil {
		return nil, err
	}

	c := newClient(conn, logger)
	if err := c.open(conf.Bitrate); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info().Int("bitrate", conf.Bitrate).Msg("CAN channel open")
	return c, nil
}

func newClient(conn io.ReadWriteCloser, logger zerolog.Logger) *Client {
	return &Client{conn: conn, logger: logger.With().Str("component", "slcan").Logger()}
}

// open resets the channel, sets the bitrate and opens it.
func (c *Client) open(bitrate int) error {
	setup, err := BitrateCommand(bitrate)
	if err != nil {
		return err
	}
	for _, cmd := range []string{"C", setup, "O"} {
		if err := c.write(cmd + string(CR)); err != nil {
			return fmt.Errorf("slcan: %s: %w", cmd, err)
		}
	}
	return nil
}

// Run reads frames until ctx is done or the connection fails.
func (c *Client) Run(ctx context.Context, frames chan<- can.Frame) error {
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	decoder := NewDecoder(c.conn)
	for {
		f, err := decoder.ReadFrame()
		if errors.Is(err, ErrMalformedLine) {
			c.logger.Warn().Err(err).Msg("skipping line")
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return device.ErrClosed
			}
			return fmt.Errorf("slcan: read: %w", err)
		}

		c.logger.Debug().Stringer("frame", f).Msg("rx")
		select {
		case frames <- f:
		case <-ctx.Done():
			return nil
		}
	}
}

// Send transmits one frame.
func (c *Client) Send(f can.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	c.logger.Debug().Stringer("frame", f).Msg("tx")
	return c.write(EncodeFrame(f))
}

func (c *Client) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return device.ErrClosed
	}
	_, err := io.WriteString(c.conn, s)
	return err
}

// Close closes the CAN channel and disconnects from the adapter
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	// Best effort: the adapter may already be gone.
	io.WriteString(c.conn, "C"+string(CR))
	return c.conn.Close()
}

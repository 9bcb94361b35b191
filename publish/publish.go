// Package publish forwards query reports to an event sink as text lines,
// one "<event> <data>" line per report.
package publish

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"obdreader/config"
	"obdreader/report"
)

const (
	dialTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// Publisher delivers reports somewhere outside the process.
type Publisher interface {
	Publish(r report.Report) error
	Close() error
}

// Discard is the Publisher used when no sink is configured.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(report.Report) error { return nil }
func (discard) Close() error                { return nil }

// Client represents an active connection to an event sink
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	logger zerolog.Logger
}

// New returns Discard when conf has no address, otherwise a connected Client.
func New(conf config.PublishConfig, logger zerolog.Logger) (Publisher, error) {
	if conf.Address == "" {
		return Discard, nil
	}
	return Connect(conf, logger)
}

// Connect dials the sink and announces this source.
func Connect(conf config.PublishConfig, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("component", "publish").Str("address", conf.Address).Logger()

	conn, err := net.DialTimeout("tcp", conf.Address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event sink %s: %w", conf.Address, err)
	}

	c := &Client{conn: conn, logger: logger}
	if err := c.writeLine("# obdreader " + sanitize(conf.Source)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("event sink hello failed: %w", err)
	}
	logger.Info().Msg("connected to event sink")
	return c, nil
}

// Publish sends one report.
func (c *Client) Publish(r report.Report) error {
	line := r.Event()
	if data := sanitize(r.Data()); data != "" {
		line += " " + data
	}
	if err := c.writeLine(line); err != nil {
		return fmt.Errorf("publish %s: %w", r.Event(), err)
	}
	c.logger.Debug().Str("event", r.Event()).Msg("published")
	return nil
}

func (c *Client) writeLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// Close disconnects the client
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// sanitize keeps a value on one line.
func sanitize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

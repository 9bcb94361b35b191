package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is read when no config file is named on the command line
const DefaultPath = "config.toml"

// Interface types
const (
	InterfaceSLCAN = "slcan"
	InterfaceSim   = "sim"
)

// Config holds all application configuration
type Config struct {
	Interface InterfaceConfig `toml:"interface"`
	OBD       OBDConfig       `toml:"obd"`
	Publish   PublishConfig   `toml:"publish"`
	Log       LogConfig       `toml:"log"`
}

// InterfaceConfig selects the CAN adapter
type InterfaceConfig struct {
	Type    string `toml:"type"`    // "slcan" or "sim"
	Device  string `toml:"device"`  // serial path, or host:port for TCP adapters
	Baud    int    `toml:"baud"`    // serial line speed
	Bitrate int    `toml:"bitrate"` // CAN bus speed
}

// OBDConfig holds the request/response addressing and timing
type OBDConfig struct {
	RequestID      uint32        `toml:"request_id"`
	ResponseID     uint32        `toml:"response_id"`
	Timeout        time.Duration `toml:"timeout"`
	StrictSequence bool          `toml:"strict_sequence"`
}

// PublishConfig points at an event sink. An empty address disables publishing.
type PublishConfig struct {
	Address string `toml:"address"`
	Source  string `toml:"source"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	NoColor bool   `toml:"no_color"`
}

// Default returns the settings of a Carloop style setup: 500 kbit bus,
// functional requests on 0x7DF, engine ECU answering on 0x7E8.
func Default() Config {
	return Config{
		Interface: InterfaceConfig{
			Type:    InterfaceSLCAN,
			Device:  "/dev/ttyACM0",
			Baud:    115200,
			Bitrate: 500000,
		},
		OBD: OBDConfig{
			RequestID:  0x7DF,
			ResponseID: 0x7E8,
			Timeout:    200 * time.Millisecond,
		},
		Publish: PublishConfig{
			Source: "obdreader",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the configuration from path on top of the defaults.
// With an empty path DefaultPath is tried and may be missing.
func LoadConfig(path string) (Config, error) {
	conf := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return conf, nil
		}
		return conf, err
	}

	if err := toml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parse %s: %w", path, err)
	}
	conf.Interface.Type = strings.ToLower(strings.TrimSpace(conf.Interface.Type))

	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("%s: %w", path, err)
	}
	return conf, nil
}

// Validate checks the values that would otherwise fail later and further
// from their cause.
func (c Config) Validate() error {
	switch c.Interface.Type {
	case InterfaceSLCAN:
		if c.Interface.Device == "" {
			return fmt.Errorf("interface.device is required for slcan")
		}
		if c.Interface.Baud <= 0 {
			return fmt.Errorf("interface.baud must be positive")
		}
	case InterfaceSim:
	default:
		return fmt.Errorf("unknown interface type: %q", c.Interface.Type)
	}
	if c.OBD.Timeout <= 0 {
		return fmt.Errorf("obd.timeout must be positive")
	}
	if c.OBD.ResponseID < 8 {
		return fmt.Errorf("obd.response_id %#x has no paired request identifier", c.OBD.ResponseID)
	}
	return nil
}

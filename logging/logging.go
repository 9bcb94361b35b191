// Package logging sets up the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"obdreader/config"
)

const (
	EnvLogLevel   = "OBDREADER_LOG_LEVEL"
	EnvLogNoColor = "OBDREADER_LOG_NOCOLOR"
)

// Configure installs a console logger writing to out and returns it. The
// level and color settings from cfg can be overridden from the environment.
func Configure(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}
	noColor := cfg.NoColor

	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		noColor = v
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a config or environment value to a zerolog level.
// Besides zerolog's own names it accepts "warning", "off" and "none".
func ParseLevel(raw string) (zerolog.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	if name == "" {
		return zerolog.InfoLevel, false
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return level, true
}

var levelAliases = map[string]string{
	"warning": "warn",
	"off":     "disabled",
	"none":    "disabled",
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

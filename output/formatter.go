// Package output renders query reports for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"obdreader/report"
)

// Formatter defines the interface for output formatting.
type Formatter interface {
	Format(r report.Report) string
}

// NewFormatter returns a Formatter for the given format string.
// Supported formats: "text" (default), "json", "yaml".
func NewFormatter(format string) Formatter {
	switch strings.ToLower(format) {
	case "json":
		return &JSONFormatter{}
	case "yaml":
		return &YAMLFormatter{}
	default:
		return &TextFormatter{}
	}
}

// Valid reports whether format names a known formatter.
func Valid(format string) bool {
	switch strings.ToLower(format) {
	case "", "text", "json", "yaml":
		return true
	}
	return false
}

// view is the structured form shared by the JSON and YAML formatters.
type view struct {
	Event string    `json:"event" yaml:"event"`
	VIN   string    `json:"vin,omitempty" yaml:"vin,omitempty"`
	Codes []string  `json:"codes,omitempty" yaml:"codes,omitempty"`
	Error string    `json:"error,omitempty" yaml:"error,omitempty"`
	Time  time.Time `json:"time" yaml:"time"`
}

func newView(r report.Report) view {
	v := view{
		Event: r.Event(),
		VIN:   r.VIN,
		Codes: r.Codes,
		Time:  r.At.UTC(),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

// TextFormatter prints the one line summary.
type TextFormatter struct{}

func (f *TextFormatter) Format(r report.Report) string {
	return r.Summary() + "\n"
}

// JSONFormatter formats reports as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(r report.Report) string {
	b, err := json.MarshalIndent(newView(r), "", "  ")
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

// YAMLFormatter formats reports as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(r report.Report) string {
	b, err := yaml.Marshal(newView(r))
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}

package report

import (
	"fmt"
	"strings"
	"time"
)

// Type defines which diagnostic query a report answers.
type Type int

const (
	TypeVIN     Type = iota // Vehicle identification number
	TypeCodes               // Stored trouble codes
	TypeCleared             // Trouble codes cleared
)

func (t Type) String() string {
	switch t {
	case TypeVIN:
		return "vin"
	case TypeCodes:
		return "codes"
	case TypeCleared:
		return "clear"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Report holds the outcome of one diagnostic query.
type Report struct {
	Type Type
	At   time.Time

	VIN   string   // TypeVIN
	Codes []string // TypeCodes

	Err error // set when the query failed
}

// Event names the outcome the way it is published, e.g. "vin/result".
func (r Report) Event() string {
	switch {
	case r.Type == TypeCleared && r.Err == nil:
		return "codes/cleared"
	case r.Type == TypeVIN && r.Err == nil:
		return "vin/result"
	case r.Type == TypeVIN:
		return "vin/error"
	case r.Err == nil:
		return "codes/result"
	default:
		return "codes/error"
	}
}

// Data is the event payload: the VIN, a comma separated code list, or the
// error text.
func (r Report) Data() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	switch r.Type {
	case TypeVIN:
		return r.VIN
	case TypeCodes:
		return strings.Join(r.Codes, ",")
	default:
		return ""
	}
}

// Summary is a one line human readable description.
func (r Report) Summary() string {
	if r.Err != nil {
		return fmt.Sprintf("%s failed: %v", r.Type, r.Err)
	}
	switch r.Type {
	case TypeVIN:
		return "VIN: " + r.VIN
	case TypeCodes:
		if len(r.Codes) == 0 {
			return "No stored codes"
		}
		return "Codes: " + strings.Join(r.Codes, ", ")
	default:
		return "Codes cleared"
	}
}

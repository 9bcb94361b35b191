package obd

import (
	"fmt"

	"obdreader/can"
)

// OBD-II services (SAE J1979)
const (
	ServiceStoredCodes = 0x03
	ServiceClearCodes  = 0x04
	ServiceVehicleInfo = 0x09

	PIDVIN = 0x02

	// A positive response echoes the service plus this offset.
	positiveResponseOffset = 0x40
	negativeResponse       = 0x7F
)

// Request is a diagnostic request small enough for one frame.
type Request struct {
	Name    string
	Payload []byte // service followed by its parameters
}

var (
	VINRequest         = Request{Name: "vin", Payload: []byte{ServiceVehicleInfo, PIDVIN}}
	StoredCodesRequest = Request{Name: "codes", Payload: []byte{ServiceStoredCodes}}
	ClearCodesRequest  = Request{Name: "clear", Payload: []byte{ServiceClearCodes}}
)

// Frame encodes the request as a single frame to id, zero padded to 8 bytes.
func (r Request) Frame(id uint32) (can.Frame, error) {
	if len(r.Payload) == 0 || len(r.Payload) > can.MaxDataLen-1 {
		return can.Frame{}, fmt.Errorf("obd: %s request of %d bytes does not fit a single frame", r.Name, len(r.Payload))
	}
	f := can.Frame{ID: id, Len: can.MaxDataLen}
	f.Data[0] = byte(len(r.Payload)) // single frame, size in the low nibble
	copy(f.Data[1:], r.Payload)
	return f, nil
}

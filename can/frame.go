package can

import (
	"errors"
	"fmt"
	"strings"
)

// MaxDataLen is the payload capacity of a classical CAN frame.
const MaxDataLen = 8

// Identifier limits
const (
	MaxStandardID = 0x7FF
	MaxExtendedID = 0x1FFFFFFF
)

var (
	ErrInvalidID  = errors.New("can: invalid identifier")
	ErrInvalidLen = errors.New("can: invalid data length")
)

// Frame is a classical CAN data frame as delivered by the link device.
// Only the first Len bytes of Data are meaningful on receive.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [MaxDataLen]byte
}

// NewFrame builds a frame from an identifier and up to 8 data bytes.
func NewFrame(id uint32, data ...byte) (Frame, error) {
	var f Frame
	if len(data) > MaxDataLen {
		return f, fmt.Errorf("%w: %d bytes", ErrInvalidLen, len(data))
	}
	f.ID = id
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	return f, f.Validate()
}

// Validate reports whether the frame fits the classical CAN limits.
func (f Frame) Validate() error {
	if f.Len > MaxDataLen {
		return ErrInvalidLen
	}
	if f.ID > MaxExtendedID {
		return ErrInvalidID
	}
	return nil
}

// Extended is true when the identifier needs the 29-bit format.
func (f Frame) Extended() bool {
	return f.ID > MaxStandardID
}

// Bytes returns the meaningful data bytes.
func (f Frame) Bytes() []byte {
	n := int(f.Len)
	if n > MaxDataLen {
		n = MaxDataLen
	}
	return f.Data[:n]
}

// String renders the frame in candump compact form, e.g. 7E8#1014490201314434.
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended() {
		fmt.Fprintf(&b, "%08X#", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X#", f.ID)
	}
	for _, d := range f.Bytes() {
		fmt.Fprintf(&b, "%02X", d)
	}
	return b.String()
}

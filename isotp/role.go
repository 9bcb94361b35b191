package isotp

import (
	"fmt"

	"obdreader/can"
)

// Role is the protocol control information type carried in the top nibble
// of a frame's first data byte.
type Role uint8

const (
	RoleSingle      Role = 0x0 // whole message in one frame
	RoleFirst       Role = 0x1 // first frame of a multi-frame message
	RoleConsecutive Role = 0x2 // continuation
	RoleFlow        Role = 0x3 // flow control, only ever sent by this side
)

func (r Role) String() string {
	switch r {
	case RoleSingle:
		return "single"
	case RoleFirst:
		return "first"
	case RoleConsecutive:
		return "consecutive"
	case RoleFlow:
		return "flow"
	default:
		return fmt.Sprintf("role(%#x)", uint8(r))
	}
}

// Header returns the header byte for this role with the given low nibble.
func (r Role) Header(low uint8) byte {
	return byte(r)<<4 | low&0x0F
}

// Classify returns the role of f. Nibbles outside the four defined roles are
// reported as ErrUnrecognizedRole rather than coerced.
func Classify(f can.Frame) (Role, error) {
	if f.Len == 0 {
		return 0, fmt.Errorf("%w: no header byte", ErrShortFrame)
	}
	nibble := f.Data[0] >> 4
	switch Role(nibble) {
	case RoleSingle, RoleFirst, RoleConsecutive, RoleFlow:
		return Role(nibble), nil
	}
	return 0, fmt.Errorf("%w: header nibble %#x", ErrUnrecognizedRole, nibble)
}

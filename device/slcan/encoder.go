package slcan

import (
	"fmt"
	"strings"

	"obdreader/can"
)

// EncodeFrame converts a CAN frame into the ASCII transmit command.
func EncodeFrame(f can.Frame) string {
	var b strings.Builder
	if f.Extended() {
		b.WriteByte('T')
		fmt.Fprintf(&b, "%08X", f.ID&can.MaxExtendedID)
	} else {
		b.WriteByte('t')
		fmt.Fprintf(&b, "%03X", f.ID&can.MaxStandardID)
	}

	data := f.Bytes()
	b.WriteByte('0' + byte(len(data)))
	for _, d := range data {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteByte(CR)
	return b.String()
}

// bitrateCommands maps a CAN bitrate to the adapter's setup command.
var bitrateCommands = map[int]string{
	10000:   "S0",
	20000:   "S1",
	50000:   "S2",
	100000:  "S3",
	125000:  "S4",
	250000:  "S5",
	500000:  "S6",
	800000:  "S7",
	1000000: "S8",
}

// BitrateCommand returns the setup command for bitrate.
func BitrateCommand(bitrate int) (string, error) {
	cmd, ok := bitrateCommands[bitrate]
	if !ok {
		return "", fmt.Errorf("slcan: unsupported bitrate %d", bitrate)
	}
	return cmd, nil
}

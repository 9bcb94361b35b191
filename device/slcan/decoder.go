package slcan

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"

	"obdreader/can"
)

// SLCAN protocol bytes
const (
	CR   byte = '\r' // Line terminator
	BELL byte = 0x07 // Adapter error reply
)

// maxLineLen fits an extended frame with 8 data bytes and a timestamp.
const maxLineLen = 1 + 8 + 1 + 16 + 4

var ErrMalformedLine = errors.New("slcan: malformed line")

// Decoder reads CAN frames from an SLCAN byte stream
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a new SLCAN frame decoder
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadFrame reads the next received data frame. Acknowledgements, status
// replies and remote frames are skipped.
func (d *Decoder) ReadFrame() (can.Frame, error) {
	var line bytes.Buffer

	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return can.Frame{}, err
		}

		switch b {
		case CR:
			if line.Len() == 0 {
				continue // plain ack
			}
			raw := line.Bytes()
			switch raw[0] {
			case 't', 'T':
				f, err := parseLine(raw)
				if err != nil {
					return can.Frame{}, err
				}
				return f, nil
			default:
				// z/Z transmit acks, version and status replies
				line.Reset()
			}
		case BELL:
			line.Reset()
		case '\n':
		default:
			if line.Len() >= maxLineLen {
				line.Reset()
				return can.Frame{}, fmt.Errorf("%w: line longer than %d bytes", ErrMalformedLine, maxLineLen)
			}
			line.WriteByte(b)
		}
	}
}

// parseLine decodes "tIIILDD.." or "TIIIIIIIILDD..", optionally followed by
// a 4 digit timestamp.
func parseLine(line []byte) (can.Frame, error) {
	var f can.Frame

	idLen := 3
	if line[0] == 'T' {
		idLen = 8
	}
	if len(line) < 1+idLen+1 {
		return f, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return f, fmt.Errorf("%w: identifier %q", ErrMalformedLine, line[1:1+idLen])
	}

	dlc := int(line[1+idLen]) - '0'
	if dlc < 0 || dlc > can.MaxDataLen {
		return f, fmt.Errorf("%w: length %q", ErrMalformedLine, line[1+idLen])
	}

	data := line[2+idLen:]
	if len(data) != dlc*2 && len(data) != dlc*2+4 {
		return f, fmt.Errorf("%w: %d data digits for length %d", ErrMalformedLine, len(data), dlc)
	}
	if _, err := hex.Decode(f.Data[:dlc], data[:dlc*2]); err != nil {
		return f, fmt.Errorf("%w: data %q", ErrMalformedLine, data)
	}

	f.ID = uint32(id)
	f.Len = uint8(dlc)
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return f, nil
}

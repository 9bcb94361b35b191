// Package isotp reassembles ISO 15765-2 (transport protocol over CAN)
// messages received from a diagnostic ECU.
//
// A CAN frame carries at most 8 bytes. Short messages fit in a single frame;
// longer ones arrive as a first frame followed by consecutive frames, and the
// receiver must answer the first frame with a flow control frame before the
// sender transmits the rest.
package isotp

import (
	"fmt"

	"obdreader/can"
)

// ResponseOffset is the distance between a request identifier and the
// identifier the ECU answers on (0x7E0 -> 0x7E8).
const ResponseOffset = 8

// Wire layout of the protocol control information.
const (
	singleDataOffset      = 1
	firstDataOffset       = 2
	consecutiveDataOffset = 1

	// singleFrameCapacity is the number of data bytes a single frame can carry.
	singleFrameCapacity = can.MaxDataLen - singleDataOffset
)

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithStrictSequence makes the Reassembler check the sequence counter of
// consecutive frames. Without it frames are appended in arrival order and
// loss, duplication or reordering go unnoticed.
func WithStrictSequence() Option {
	return func(r *Reassembler) {
		r.strict = true
	}
}

// Reassembler accumulates the frames of one conversation into a message.
//
// A Reassembler holds a single in-flight message and is not safe for
// concurrent use. Callers talking to several ECUs at once need one instance
// per response identifier.
type Reassembler struct {
	strict bool

	id       uint32
	size     int
	buf      []byte
	complete bool

	// started is set by a single or first frame and cleared by Clear.
	started bool
	// multi is set while a first frame's transfer is in progress.
	multi   bool
	nextSeq uint8
}

// New returns an empty Reassembler.
func New(opts ...Option) *Reassembler {
	r := &Reassembler{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddFrame adds the data of f to the current message. It returns true when f
// was a first frame, meaning FlowControlFrame must now be transmitted.
//
// A frame that returns an error leaves the state unchanged.
func (r *Reassembler) AddFrame(f can.Frame) (bool, error) {
	role, err := Classify(f)
	if err != nil {
		return false, err
	}

	needsFlowControl := false
	switch role {
	case RoleSingle:
		size := int(f.Data[0] & 0x0F)
		if size > singleFrameCapacity {
			return false, fmt.Errorf("%w: declared %d bytes", ErrSingleFrameOverflow, size)
		}
		if int(f.Len) < singleDataOffset+size {
			return false, fmt.Errorf("%w: single frame declares %d bytes, carries %d", ErrShortFrame, size, int(f.Len)-singleDataOffset)
		}
		r.start(f.ID, size, false)
		r.addDataFrom(singleDataOffset, f)

	case RoleFirst:
		if f.Len < firstDataOffset {
			return false, fmt.Errorf("%w: first frame without size", ErrShortFrame)
		}
		size := int(f.Data[0]&0x0F)<<8 | int(f.Data[1])
		r.start(f.ID, size, true)
		r.addDataFrom(firstDataOffset, f)
		needsFlowControl = true

	case RoleConsecutive:
		if r.strict {
			if err := r.checkSequence(f); err != nil {
				return false, err
			}
		}
		r.id = f.ID
		r.addDataFrom(consecutiveDataOffset, f)
		r.nextSeq = (r.nextSeq + 1) & 0x0F

	case RoleFlow:
		return false, ErrUnexpectedFlowControl
	}

	r.complete = r.started && len(r.buf) == r.size
	if r.complete {
		r.multi = false
	}
	return needsFlowControl, nil
}

func (r *Reassembler) start(id uint32, size int, multi bool) {
	r.Clear()
	r.id = id
	r.size = size
	r.started = true
	r.multi = multi
	r.nextSeq = 1
	if cap(r.buf) < size {
		r.buf = make([]byte, 0, size)
	}
}

// addDataFrom appends data bytes from offset i until the frame or the
// declared size runs out.
func (r *Reassembler) addDataFrom(i int, f can.Frame) {
	data := f.Bytes()
	for ; len(r.buf) < r.size && i < len(data); i++ {
		r.buf = append(r.buf, data[i])
	}
}

func (r *Reassembler) checkSequence(f can.Frame) error {
	if !r.multi {
		return fmt.Errorf("%w: no multi-frame transfer in progress", ErrOutOfSequence)
	}
	if seq := f.Data[0] & 0x0F; seq != r.nextSeq {
		return fmt.Errorf("%w: expected %d, got %d", ErrOutOfSequence, r.nextSeq, seq)
	}
	return nil
}

// ID is the identifier of the frame stream being assembled.
func (r *Reassembler) ID() uint32 {
	return r.id
}

// DeclaredSize is the number of bytes the message holds once complete.
func (r *Reassembler) DeclaredSize() int {
	return r.size
}

// Complete reports whether all declared bytes have been received.
func (r *Reassembler) Complete() bool {
	return r.complete
}

// Payload returns a copy of the bytes received so far.
func (r *Reassembler) Payload() []byte {
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}

// Clear resets the Reassembler so it can be reused for the next message.
func (r *Reassembler) Clear() {
	r.buf = r.buf[:0]
	r.size = 0
	r.complete = false
	r.started = false
	r.multi = false
	r.nextSeq = 0
}

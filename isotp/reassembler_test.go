package isotp

import (
	"bytes"
	"errors"
	"testing"

	"obdreader/can"
)

const ecuResponseID = 0x7E8

func frame(id uint32, data ...byte) can.Frame {
	f := can.Frame{ID: id, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

// vinFrames is the VIN response 49 02 01 "1D4GP24R45B123456" split the way
// an ECU sends it.
func vinFrames() []can.Frame {
	return []can.Frame{
		frame(ecuResponseID, 0x10, 0x14, 0x49, 0x02, 0x01, '1', 'D', '4'),
		frame(ecuResponseID, 0x21, 'G', 'P', '2', '4', 'R', '4', '5'),
		frame(ecuResponseID, 0x22, 'B', '1', '2', '3', '4', '5', '6'),
	}
}

func mustAdd(t *testing.T, r *Reassembler, f can.Frame) bool {
	t.Helper()
	fc, err := r.AddFrame(f)
	if err != nil {
		t.Fatalf("add frame %s: %v", f, err)
	}
	return fc
}

func TestSingleFrameCompletion(t *testing.T) {
	r := New()
	fc := mustAdd(t, r, frame(ecuResponseID, 0x03, 'A', 'B', 'C', 0, 0, 0, 0))
	if fc {
		t.Fatalf("single frame must not need flow control")
	}
	if !r.Complete() {
		t.Fatalf("expected complete")
	}
	if r.DeclaredSize() != 3 {
		t.Fatalf("declared size: got %d want 3", r.DeclaredSize())
	}
	if !bytes.Equal(r.Payload(), []byte("ABC")) {
		t.Fatalf("payload: got %q", r.Payload())
	}
	if r.ID() != ecuResponseID {
		t.Fatalf("id: got %#x", r.ID())
	}
}

func TestMultiFrameCompletion(t *testing.T) {
	r := New()
	frames := vinFrames()

	if !mustAdd(t, r, frames[0]) {
		t.Fatalf("first frame must need flow control")
	}
	if r.DeclaredSize() != 20 {
		t.Fatalf("declared size: got %d want 20", r.DeclaredSize())
	}
	want := []byte{0x49, 0x02, 0x01, '1', 'D', '4'}
	if !bytes.Equal(r.Payload(), want) {
		t.Fatalf("payload after first frame: got % X want % X", r.Payload(), want)
	}
	if r.Complete() {
		t.Fatalf("complete after first frame")
	}

	if mustAdd(t, r, frames[1]) {
		t.Fatalf("consecutive frame must not need flow control")
	}
	if r.Complete() {
		t.Fatalf("complete after first consecutive frame")
	}
	if n := len(r.Payload()); n != 13 {
		t.Fatalf("payload length: got %d want 13", n)
	}

	mustAdd(t, r, frames[2])
	if !r.Complete() {
		t.Fatalf("expected complete after last frame")
	}
	want = append([]byte{0x49, 0x02, 0x01}, "1D4GP24R45B123456"...)
	if !bytes.Equal(r.Payload(), want) {
		t.Fatalf("payload: got %q want %q", r.Payload(), want)
	}
}

func TestFlowControlAddressing(t *testing.T) {
	r := New()
	mustAdd(t, r, vinFrames()[0])
	fc := r.FlowControlFrame()
	if fc.ID != 0x7E0 {
		t.Fatalf("flow control id: got %#x want 0x7E0", fc.ID)
	}
	if fc.Len != 8 {
		t.Fatalf("flow control len: got %d want 8", fc.Len)
	}
	if fc.Data[0]>>4 != 0x3 {
		t.Fatalf("flow control role nibble: got %#x", fc.Data[0]>>4)
	}
	if fc.Data[0] != 0x30 {
		t.Fatalf("flow control header: got %#x want 0x30", fc.Data[0])
	}
	for i := 1; i < 8; i++ {
		if fc.Data[i] != 0 {
			t.Fatalf("flow control byte %d: got %#x want 0", i, fc.Data[i])
		}
	}
	if role, err := Classify(fc); err != nil || role != RoleFlow {
		t.Fatalf("flow control classifies as %v, %v", role, err)
	}
}

func TestFlowControlWithoutPairedRequest(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, r *Reassembler)
	}{
		{"no frame yet", func(*testing.T, *Reassembler) {}},
		{"identifier below offset", func(t *testing.T, r *Reassembler) {
			mustAdd(t, r, frame(0x5, 0x10, 0x14, 0x49, 0x02, 0x01, '1', 'D', '4'))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			tc.setup(t, r)
			fc := r.FlowControlFrame()
			if fc.ID != 0 {
				t.Fatalf("flow control id: got %#x want 0", fc.ID)
			}
			if err := fc.Validate(); err != nil {
				t.Fatalf("flow control frame invalid: %v", err)
			}
		})
	}
}

func TestClear(t *testing.T) {
	r := New()
	for _, f := range vinFrames() {
		mustAdd(t, r, f)
	}
	r.Clear()
	if r.DeclaredSize() != 0 || r.Complete() || len(r.Payload()) != 0 {
		t.Fatalf("state after clear: size=%d complete=%v payload=%q", r.DeclaredSize(), r.Complete(), r.Payload())
	}

	mustAdd(t, r, frame(ecuResponseID, 0x02, 0x44, 0x00, 0, 0, 0, 0, 0))
	if !r.Complete() || !bytes.Equal(r.Payload(), []byte{0x44, 0x00}) {
		t.Fatalf("fresh message after clear: complete=%v payload=% X", r.Complete(), r.Payload())
	}
}

func TestNewMessageOverridesIncomplete(t *testing.T) {
	cases := []struct {
		name     string
		next     can.Frame
		wantSize int
		want     []byte
	}{
		{
			name:     "single",
			next:     frame(ecuResponseID, 0x02, 0xAA, 0xBB, 0, 0, 0, 0, 0),
			wantSize: 2,
			want:     []byte{0xAA, 0xBB},
		},
		{
			name:     "first",
			next:     frame(ecuResponseID, 0x10, 0x09, 1, 2, 3, 4, 5, 6),
			wantSize: 9,
			want:     []byte{1, 2, 3, 4, 5, 6},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			frames := vinFrames()
			mustAdd(t, r, frames[0])
			mustAdd(t, r, frames[1])

			mustAdd(t, r, tc.next)
			if r.DeclaredSize() != tc.wantSize {
				t.Fatalf("declared size: got %d want %d", r.DeclaredSize(), tc.wantSize)
			}
			if !bytes.Equal(r.Payload(), tc.want) {
				t.Fatalf("payload: got % X want % X", r.Payload(), tc.want)
			}
		})
	}
}

func TestTruncationAtDeclaredSize(t *testing.T) {
	r := New()
	mustAdd(t, r, frame(ecuResponseID, 0x10, 0x08, 1, 2, 3, 4, 5, 6))
	mustAdd(t, r, frame(ecuResponseID, 0x21, 7, 8, 9, 10, 11, 12, 13))
	if !r.Complete() {
		t.Fatalf("expected complete")
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(r.Payload(), want) {
		t.Fatalf("payload: got % X want % X", r.Payload(), want)
	}

	// Further consecutive frames cannot grow a complete message.
	mustAdd(t, r, frame(ecuResponseID, 0x22, 14, 15, 16, 17, 18, 19, 20))
	if len(r.Payload()) != 8 || !r.Complete() {
		t.Fatalf("message grew past declared size: % X", r.Payload())
	}
}

func TestConsecutiveRespectsFrameLength(t *testing.T) {
	r := New()
	mustAdd(t, r, frame(ecuResponseID, 0x10, 0x0A, 1, 2, 3, 4, 5, 6))
	mustAdd(t, r, frame(ecuResponseID, 0x21, 7, 8))
	if r.Complete() {
		t.Fatalf("complete with 8 of 10 bytes")
	}
	if len(r.Payload()) != 8 {
		t.Fatalf("payload length: got %d want 8", len(r.Payload()))
	}
	mustAdd(t, r, frame(ecuResponseID, 0x22, 9, 10))
	if !r.Complete() {
		t.Fatalf("expected complete")
	}
}

func TestClassify(t *testing.T) {
	for nibble := 0; nibble < 16; nibble++ {
		f := frame(ecuResponseID, byte(nibble<<4))
		role, err := Classify(f)
		if nibble <= 3 {
			if err != nil {
				t.Fatalf("nibble %d: unexpected error %v", nibble, err)
			}
			if role != Role(nibble) {
				t.Fatalf("nibble %d: got role %v", nibble, role)
			}
			continue
		}
		if !errors.Is(err, ErrUnrecognizedRole) {
			t.Fatalf("nibble %d: expected ErrUnrecognizedRole, got %v", nibble, err)
		}
	}
}

func TestUnrecognizedRoleLeavesStateUnchanged(t *testing.T) {
	r := New()
	mustAdd(t, r, vinFrames()[0])
	before := r.Payload()

	_, err := r.AddFrame(frame(0x7E9, 0x45, 1, 2, 3, 4, 5, 6, 7))
	if !errors.Is(err, ErrUnrecognizedRole) {
		t.Fatalf("expected ErrUnrecognizedRole, got %v", err)
	}
	if r.ID() != ecuResponseID || !bytes.Equal(r.Payload(), before) || r.DeclaredSize() != 20 {
		t.Fatalf("state changed by rejected frame")
	}
}

func TestSingleFrameOverflow(t *testing.T) {
	r := New()
	_, err := r.AddFrame(frame(ecuResponseID, 0x08, 1, 2, 3, 4, 5, 6, 7))
	if !errors.Is(err, ErrSingleFrameOverflow) {
		t.Fatalf("expected ErrSingleFrameOverflow, got %v", err)
	}
	if r.Complete() || r.DeclaredSize() != 0 {
		t.Fatalf("overflowing single frame changed state")
	}
}

func TestShortFrames(t *testing.T) {
	cases := []struct {
		name string
		f    can.Frame
	}{
		{"empty", frame(ecuResponseID)},
		{"first without size", frame(ecuResponseID, 0x10)},
		{"single missing data", frame(ecuResponseID, 0x05, 1, 2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			if _, err := r.AddFrame(tc.f); !errors.Is(err, ErrShortFrame) {
				t.Fatalf("expected ErrShortFrame, got %v", err)
			}
		})
	}
}

func TestInboundFlowControlRejected(t *testing.T) {
	r := New()
	_, err := r.AddFrame(frame(0x7E0, 0x30, 0, 0, 0, 0, 0, 0, 0))
	if !errors.Is(err, ErrUnexpectedFlowControl) {
		t.Fatalf("expected ErrUnexpectedFlowControl, got %v", err)
	}
}

func TestLenientIgnoresSequence(t *testing.T) {
	r := New()
	frames := vinFrames()
	mustAdd(t, r, frames[0])
	// Counters swapped: lenient mode appends in arrival order.
	mustAdd(t, r, frame(ecuResponseID, append([]byte{0x22}, frames[1].Data[1:]...)...))
	mustAdd(t, r, frame(ecuResponseID, append([]byte{0x21}, frames[2].Data[1:]...)...))
	if !r.Complete() {
		t.Fatalf("expected complete")
	}
	want := append([]byte{0x49, 0x02, 0x01}, "1D4GP24R45B123456"...)
	if !bytes.Equal(r.Payload(), want) {
		t.Fatalf("payload: got %q", r.Payload())
	}
}

func TestLenientStrayConsecutive(t *testing.T) {
	r := New()
	mustAdd(t, r, frame(ecuResponseID, 0x21, 1, 2, 3, 4, 5, 6, 7))
	if r.Complete() || len(r.Payload()) != 0 {
		t.Fatalf("stray consecutive frame started a message")
	}
}

func TestStrictRejectsOutOfSequence(t *testing.T) {
	cases := []struct {
		name string
		seq  byte
	}{
		{"skipped", 0x22},
		{"repeated first", 0x20},
		{"far ahead", 0x2F},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(WithStrictSequence())
			frames := vinFrames()
			mustAdd(t, r, frames[0])
			_, err := r.AddFrame(frame(ecuResponseID, tc.seq, 1, 2, 3, 4, 5, 6, 7))
			if !errors.Is(err, ErrOutOfSequence) {
				t.Fatalf("expected ErrOutOfSequence, got %v", err)
			}
			if len(r.Payload()) != 6 {
				t.Fatalf("rejected frame was appended")
			}
			// The expected frame is still accepted afterwards.
			mustAdd(t, r, frames[1])
			mustAdd(t, r, frames[2])
			if !r.Complete() {
				t.Fatalf("expected complete")
			}
		})
	}
}

func TestStrictRejectsDuplicate(t *testing.T) {
	r := New(WithStrictSequence())
	frames := vinFrames()
	mustAdd(t, r, frames[0])
	mustAdd(t, r, frames[1])
	if _, err := r.AddFrame(frames[1]); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence for duplicate, got %v", err)
	}
}

func TestStrictRejectsConsecutiveWithoutTransfer(t *testing.T) {
	r := New(WithStrictSequence())
	if _, err := r.AddFrame(frame(ecuResponseID, 0x21, 1, 2, 3, 4, 5, 6, 7)); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}

	mustAdd(t, r, frame(ecuResponseID, 0x10, 0x08, 1, 2, 3, 4, 5, 6))
	mustAdd(t, r, frame(ecuResponseID, 0x21, 7, 8, 0, 0, 0, 0, 0))
	if _, err := r.AddFrame(frame(ecuResponseID, 0x22, 9, 0, 0, 0, 0, 0, 0)); !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence after completion, got %v", err)
	}
}

func TestStrictSequenceWraps(t *testing.T) {
	r := New(WithStrictSequence())
	// 6 bytes in the first frame plus 16 consecutive frames of 7 bytes.
	size := 6 + 16*7
	mustAdd(t, r, frame(ecuResponseID, 0x10|byte(size>>8), byte(size), 0, 0, 0, 0, 0, 0))
	seq := byte(1)
	for i := 0; i < 16; i++ {
		mustAdd(t, r, frame(ecuResponseID, 0x20|seq, 1, 2, 3, 4, 5, 6, 7))
		seq = (seq + 1) & 0x0F
	}
	if !r.Complete() || len(r.Payload()) != size {
		t.Fatalf("expected complete %d-byte message, got %d bytes", size, len(r.Payload()))
	}
}

func TestTwelveBitSize(t *testing.T) {
	r := New()
	mustAdd(t, r, frame(ecuResponseID, 0x1F, 0xFF, 0, 0, 0, 0, 0, 0))
	if r.DeclaredSize() != 0xFFF {
		t.Fatalf("declared size: got %d want 4095", r.DeclaredSize())
	}
}

func TestPayloadIsCopy(t *testing.T) {
	r := New()
	mustAdd(t, r, frame(ecuResponseID, 0x03, 'A', 'B', 'C', 0, 0, 0, 0))
	p := r.Payload()
	p[0] = 'Z'
	if r.Payload()[0] != 'A' {
		t.Fatalf("payload aliases internal buffer")
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	mustAdd(t, a, vinFrames()[0])
	mustAdd(t, b, frame(0x7E9, 0x02, 0x44, 0x00, 0, 0, 0, 0, 0))
	if a.DeclaredSize() != 20 || a.Complete() {
		t.Fatalf("instance a disturbed")
	}
	if !b.Complete() || b.ID() != 0x7E9 {
		t.Fatalf("instance b disturbed")
	}
}

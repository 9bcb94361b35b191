package isotp

import "obdreader/can"

// Flow status values carried in the low nibble of a flow control header.
const (
	FlowContinue uint8 = 0x0
	FlowWait     uint8 = 0x1
	FlowOverflow uint8 = 0x2
)

// FlowControlFrame returns the frame to send after a first frame. It tells the
// sender to continue with no block size limit and no separation time, and is
// addressed to the request identifier paired with the current stream.
//
// Only meaningful once a first frame has been accepted from an identifier of
// at least ResponseOffset. Otherwise there is no paired request identifier
// and the frame is addressed to 0.
//
// Every data byte is set explicitly since all 8 go out on the wire.
func (r *Reassembler) FlowControlFrame() can.Frame {
	var id uint32
	if r.id >= ResponseOffset {
		id = r.id - ResponseOffset
	}
	return can.Frame{
		ID:  id,
		Len: can.MaxDataLen,
		Data: [can.MaxDataLen]byte{
			RoleFlow.Header(FlowContinue),
			0, // block size: no limit
			0, // STmin: no separation time
			0, 0, 0, 0, 0,
		},
	}
}

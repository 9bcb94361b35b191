package isotp

import "errors"

var (
	ErrUnrecognizedRole      = errors.New("isotp: unrecognized frame role")
	ErrSingleFrameOverflow   = errors.New("isotp: size exceeds single frame capacity")
	ErrOutOfSequence         = errors.New("isotp: out of sequence frame")
	ErrUnexpectedFlowControl = errors.New("isotp: unexpected inbound flow control frame")
	ErrShortFrame            = errors.New("isotp: frame too short")
)

package obd

import "errors"

var (
	ErrTimeout           = errors.New("obd: no response within timeout")
	ErrNegativeResponse  = errors.New("obd: negative response")
	ErrUnexpectedService = errors.New("obd: unexpected response service")
	ErrMalformedResponse = errors.New("obd: malformed response")
)

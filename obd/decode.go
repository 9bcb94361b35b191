package obd

import (
	"fmt"
)

const vinLength = 17

// Negative response codes (ISO 14229)
var responseCodes = map[byte]string{
	0x10: "general reject",
	0x11: "service not supported",
	0x12: "subfunction not supported",
	0x13: "incorrect message length",
	0x21: "busy, repeat request",
	0x22: "conditions not correct",
	0x31: "request out of range",
	0x78: "response pending",
}

// checkResponse verifies payload answers service positively and returns the
// bytes after the service id.
func checkResponse(service byte, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	if payload[0] == negativeResponse {
		if len(payload) < 3 {
			return nil, fmt.Errorf("%w: short negative response % X", ErrMalformedResponse, payload)
		}
		name, ok := responseCodes[payload[2]]
		if !ok {
			name = "unknown"
		}
		return nil, fmt.Errorf("%w: service %#02x code %#02x (%s)", ErrNegativeResponse, payload[1], payload[2], name)
	}
	if payload[0] != service+positiveResponseOffset {
		return nil, fmt.Errorf("%w: got %#02x, want %#02x", ErrUnexpectedService, payload[0], service+positiveResponseOffset)
	}
	return payload[1:], nil
}

// ParseVIN extracts the VIN from a service 09 PID 02 response. The VIN is the
// last 17 bytes; some vehicles left pad it.
func ParseVIN(payload []byte) (string, error) {
	rest, err := checkResponse(ServiceVehicleInfo, payload)
	if err != nil {
		return "", err
	}
	if len(rest) == 0 || rest[0] != PIDVIN {
		return "", fmt.Errorf("%w: not a VIN response", ErrMalformedResponse)
	}
	if len(rest)-1 < vinLength {
		return "", fmt.Errorf("%w: VIN response of %d bytes", ErrMalformedResponse, len(payload))
	}
	vin := rest[len(rest)-vinLength:]
	for _, c := range vin {
		if c < 0x20 || c > 0x7E {
			return "", fmt.Errorf("%w: non printable VIN byte %#02x", ErrMalformedResponse, c)
		}
	}
	return string(vin), nil
}

// ParseCodes decodes a service 03 response into codes such as "P0133".
func ParseCodes(payload []byte) ([]string, error) {
	rest, err := checkResponse(ServiceStoredCodes, payload)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: missing code count", ErrMalformedResponse)
	}
	count := int(rest[0])
	raw := rest[1:]
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd code data length %d", ErrMalformedResponse, len(raw))
	}
	if count > len(raw)/2 {
		return nil, fmt.Errorf("%w: %d codes announced, %d present", ErrMalformedResponse, count, len(raw)/2)
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		a, b := raw[2*i], raw[2*i+1]
		if a == 0 && b == 0 {
			continue
		}
		codes = append(codes, DecodeDTC(a, b))
	}
	return codes, nil
}

// ParseClear checks a service 04 response.
func ParseClear(payload []byte) error {
	_, err := checkResponse(ServiceClearCodes, payload)
	return err
}

// DecodeDTC formats the two byte trouble code encoding: the top two bits
// select the system letter, the rest are four hex digits.
func DecodeDTC(a, b byte) string {
	const systems = "PCBU"
	return fmt.Sprintf("%c%d%X%X%X", systems[a>>6], (a>>4)&0x03, a&0x0F, b>>4, b&0x0F)
}

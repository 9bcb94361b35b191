package sim

import "obdreader/can"

// DefaultVIN is the vehicle identification number the default script reports.
const DefaultVIN = "1D4GP24R45B123456"

func response(data ...byte) can.Frame {
	f := can.Frame{ID: ResponseID, Len: can.MaxDataLen}
	copy(f.Data[:], data)
	return f
}

// DefaultScript answers the VIN, stored codes and clear codes requests.
func DefaultScript() []Option {
	return []Option{
		// 09 02: VIN, 20 bytes over three frames
		WithResponse([]byte{0x09, 0x02},
			response(0x10, 0x14, 0x49, 0x02, 0x01, '1', 'D', '4'),
			response(0x21, 'G', 'P', '2', '4', 'R', '4', '5'),
			response(0x22, 'B', '1', '2', '3', '4', '5', '6'),
		),
		// 03: two stored codes, P0133 and P0244
		WithResponse([]byte{0x03},
			response(0x06, 0x43, 0x02, 0x01, 0x33, 0x02, 0x44, 0x00),
		),
		// 04: clear codes
		WithResponse([]byte{0x04},
			response(0x01, 0x44),
		),
	}
}

package slcan

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds each serial read so a closed port is noticed.
const readTimeout = 500 * time.Millisecond

// connectSerial opens the USB serial port of an SLCAN adapter
func connectSerial(devicePath string, baud int) (io.ReadWriteCloser, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("no device path (e.g., /dev/ttyACM0 or COM3) provided for SLCAN serial")
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(devicePath, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", devicePath, err)
	}

	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &port{Port: p}, nil
}

// port hides read timeouts from the decoder: a timed out read returns no
// data and no error, which bufio would eventually treat as a stuck reader.
type port struct {
	serial.Port
	closed atomic.Bool
}

func (p *port) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if p.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (p *port) Close() error {
	p.closed.Store(true)
	return p.Port.Close()
}

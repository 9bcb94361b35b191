package slcan

import (
	"fmt"
	"net"
	"time"
)

const (
	dialTimeout = 10 * time.Second
	keepAlive   = 15 * time.Second
)

// connectTCP dials an SLCAN adapter bridged onto the network, such as an
// ESP32 or CAN-to-Ethernet box ("192.168.4.1:3333").
func connectTCP(address string) (net.Conn, error) {
	if address == "" {
		return nil, fmt.Errorf("no adapter address (ip:port) provided for SLCAN over TCP")
	}

	d := net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}
	conn, err := d.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SLCAN adapter at %s: %w", address, err)
	}
	return conn, nil
}

//go:build rp2040 || rp2350

package main

import (
	"machine"
)

// usbPort adapts machine.Serial (USB CDC-ACM on RP2040) to drivers.UART
type usbPort struct{}

// InitUSB initializes USB serial communication
// TinyGo sets up the CDC descriptors; this only configures the endpoint
func InitUSB() *usbPort {
	machine.Serial.Configure(machine.UARTConfig{})
	return &usbPort{}
}

// Buffered returns the number of bytes available to read from USB
func (usbPort) Buffered() int {
	return machine.Serial.Buffered()
}

// Read drains up to len(p) buffered bytes without blocking
func (usbPort) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

// Write writes to USB. A short count means the host is not draining the
// endpoint.
func (usbPort) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}

// Ready implements protocol.Readier. The IN endpoint only drains while a host
// holds the port open, which it signals by asserting DTR.
func (usbPort) Ready() bool {
	return machine.Serial.DTR()
}

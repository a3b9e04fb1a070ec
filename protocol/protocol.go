// Package protocol implements the single-byte keypad protocol spoken between
// the host and the bridge, the byte queues that carry it, and the transport
// that moves it across the virtual serial port.
package protocol

// Version represents the bridge firmware version
const Version = "0.1.0"

// Protocol constants
const (
	QueueCapacity = 128 // Default capacity of each direction's byte queue

	// CDC bulk endpoint size. Never send more than one bank less one byte per
	// poll so a zero length packet is never needed to end a transfer.
	EndpointSize = 16
	MaxBurst     = EndpointSize - 1

	Ack     byte = '=' // Command accepted and pulse armed
	Service byte = 's' // Pulse the service line
)

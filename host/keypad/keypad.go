// Package keypad is a host-side client for the VMC keypad bridge.
package keypad

import (
	"errors"
	"fmt"
	"io"
	"time"

	"vmcbridge/host/serial"
	"vmcbridge/protocol"
)

// DefaultAckTimeout covers a queued key waiting for the previous press to be
// strobed out by the VMC
const DefaultAckTimeout = 2 * time.Second

var ErrNotConnected = errors.New("not connected to bridge")

// Keypad represents a connection to a bridge
type Keypad struct {
	// Transport layer
	transport *protocol.HostTransport

	// Serial port
	port io.ReadWriteCloser

	ackTimeout time.Duration

	// Connection state
	connected bool
}

// New creates a new Keypad instance (not yet connected)
func New() *Keypad {
	return &Keypad{
		ackTimeout: DefaultAckTimeout,
	}
}

// SetAckTimeout changes how long Press waits for the bridge's ack
func (k *Keypad) SetAckTimeout(d time.Duration) {
	k.ackTimeout = d
}

// Connect connects to a bridge via serial port
func (k *Keypad) Connect(device string) error {
	return k.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to a bridge with a custom serial config
func (k *Keypad) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	// Key presses queued before we connected are stale
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush serial port: %w", err)
	}

	k.Attach(port)
	return nil
}

// Attach uses an already open port
func (k *Keypad) Attach(port io.ReadWriteCloser) {
	k.port = port
	k.transport = protocol.NewHostTransport(port)
	k.connected = true
}

// Close closes the connection to the bridge
func (k *Keypad) Close() error {
	if k.transport != nil {
		if err := k.transport.Close(); err != nil {
			return err
		}
	}
	k.connected = false
	return nil
}

// Press asks the bridge to press key on the VMC and waits for the ack
func (k *Keypad) Press(key byte) error {
	if !k.connected {
		return ErrNotConnected
	}
	if err := k.transport.SendKey(key, k.ackTimeout); err != nil {
		// A late ack must not satisfy the next press
		k.transport.Reset()
		return err
	}
	return nil
}

// PressSequence presses each key of keys in order, e.g. a product code
func (k *Keypad) PressSequence(keys string) error {
	for i := 0; i < len(keys); i++ {
		if err := k.Press(keys[i]); err != nil {
			return fmt.Errorf("key %d of %q: %w", i+1, keys, err)
		}
	}
	return nil
}

// Service pulses the VMC service line
func (k *Keypad) Service() error {
	if !k.connected {
		return ErrNotConnected
	}
	return k.transport.SendService()
}

// Events delivers presses of the physical keypad
func (k *Keypad) Events() <-chan protocol.KeyEvent {
	if k.transport == nil {
		return nil
	}
	return k.transport.Keys()
}

// Unknown returns how many unrecognised bytes the bridge sent
func (k *Keypad) Unknown() uint32 {
	if k.transport == nil {
		return 0
	}
	return k.transport.Unknown()
}

// IsConnected returns whether the bridge is connected
func (k *Keypad) IsConnected() bool {
	return k.connected
}

package serial

import (
	"errors"
	"io"
	"time"
)

// DefaultBaud matches the bridge's UART transport. USB CDC ignores it.
const DefaultBaud = 115200

// DefaultReadTimeout bounds each read so the reader can notice Close
const DefaultReadTimeout = 100 * time.Millisecond

var (
	errNoDevice = errors.New("serial: no device given")
	errBadBaud  = errors.New("serial: baud must be positive")
)

// Port is an open link to the bridge. Tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush drops bytes received but not read yet
	Flush() error
}

// Config describes how to open the bridge's serial device
type Config struct {
	Device      string // e.g. "/dev/ttyACM0", "COM3"
	Baud        int
	ReadTimeout time.Duration // 0 blocks
}

// DefaultConfig returns the settings the bridge firmware expects
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate rejects configs Open could not use
func (c *Config) Validate() error {
	if c.Device == "" {
		return errNoDevice
	}
	if c.Baud <= 0 {
		return errBadBaud
	}
	return nil
}

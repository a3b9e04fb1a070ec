package core

import (
	"errors"

	"vmcbridge/protocol"
)

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PinChange selects which edges raise a pin interrupt
type PinChange uint8

const (
	PinRising PinChange = iota
	PinFalling
	PinToggle
)

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInput configures a pin as a floating input. An open-drain line
	// is released to high impedance this way.
	ConfigureInput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// ReadPin reads the current pin level
	ReadPin(pin GPIOPin) bool

	// SetInterrupt calls callback from interrupt context on the given edges.
	// A nil callback disables the interrupt.
	SetInterrupt(pin GPIOPin, change PinChange, callback func(GPIOPin)) error
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

var ErrPinConflict = errors.New("pin assigned twice")

// PinError ties a pin setup failure to the offending GPIO
type PinError struct {
	Pin GPIOPin
	Err error
}

func (e *PinError) Error() string {
	return "gpio " + utoa(uint32(e.Pin)) + ": " + e.Err.Error()
}

func (e *PinError) Unwrap() error { return e.Err }

// Pinout binds every bridge signal to a GPIO
type Pinout struct {
	KeyCols  [protocol.Columns]GPIOPin // keypad column select, driven low to scan
	KeyRows  [protocol.Rows]GPIOPin    // keypad row sense, pulled up
	BusSense [protocol.Columns]GPIOPin // VMC column strobes, low while selected
	BusRows  [protocol.Rows]GPIOPin    // VMC row drive
	Service  GPIOPin                   // service switch, open drain
}

// Validate rejects pinouts that use a GPIO for more than one signal. extra
// lists board pins outside the bridge (status LED, UART) that must not
// collide either.
func (p *Pinout) Validate(extra ...GPIOPin) error {
	seen := make(map[GPIOPin]bool)
	check := func(pins ...GPIOPin) error {
		for _, pin := range pins {
			if seen[pin] {
				return &PinError{Pin: pin, Err: ErrPinConflict}
			}
			seen[pin] = true
		}
		return nil
	}
	if err := check(p.KeyCols[:]...); err != nil {
		return err
	}
	if err := check(p.KeyRows[:]...); err != nil {
		return err
	}
	if err := check(p.BusSense[:]...); err != nil {
		return err
	}
	if err := check(p.BusRows[:]...); err != nil {
		return err
	}
	if err := check(p.Service); err != nil {
		return err
	}
	return check(extra...)
}

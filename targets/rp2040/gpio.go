//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"

	"vmcbridge/core"
)

// Highest GPIO number on the RP2350B; the RP2040 stops at 29
const maxGPIO = 47

var errPinRange = errors.New("no such GPIO")

// RPGPIODriver implements the GPIODriver interface for RP2040/RP2350.
// Pins are reconfigured on every call: the service line switches between
// output and high impedance at run time.
type RPGPIODriver struct {
	// Track configured pins; a fixed array keeps ReadPin usable from
	// interrupt context
	configured [maxGPIO + 1]bool
}

// NewRPGPIODriver creates a new GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin > maxGPIO {
		return errPinRange
	}
	pinNumberToMachinePin(pin).Configure(machine.PinConfig{Mode: mode})
	d.configured[pin] = true
	return nil
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// ConfigureInputPullUp configures a pin as an input with pull-up resistor
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

// ConfigureInput configures a pin as a floating input
func (d *RPGPIODriver) ConfigureInput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInput)
}

// SetPin sets the output latch. It may be called before the pin is an
// output so that the first driven level is already correct.
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if pin > maxGPIO {
		return errPinRange
	}
	pinNumberToMachinePin(pin).Set(value)
	return nil
}

// ReadPin reads the current pin level
func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	if pin > maxGPIO || !d.configured[pin] {
		return false
	}
	return pinNumberToMachinePin(pin).Get()
}

// SetInterrupt attaches callback to the pin's edge interrupt
func (d *RPGPIODriver) SetInterrupt(pin core.GPIOPin, change core.PinChange, callback func(core.GPIOPin)) error {
	if pin > maxGPIO {
		return errPinRange
	}
	mp := pinNumberToMachinePin(pin)
	if callback == nil {
		return mp.SetInterrupt(0, nil)
	}

	var mc machine.PinChange
	switch change {
	case core.PinRising:
		mc = machine.PinRising
	case core.PinFalling:
		mc = machine.PinFalling
	default:
		mc = machine.PinToggle
	}
	return mp.SetInterrupt(mc, func(p machine.Pin) {
		callback(core.GPIOPin(p))
	})
}

// pinNumberToMachinePin converts a pin to a machine.Pin
// GPIO numbers map directly: GPIO0 = 0, GPIO1 = 1, etc.
func pinNumberToMachinePin(pin core.GPIOPin) machine.Pin {
	return machine.Pin(pin)
}

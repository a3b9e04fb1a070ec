package core

import (
	"errors"
	"time"

	"vmcbridge/protocol"
)

// DefaultServiceWidth is how long the service line is held low
const DefaultServiceWidth = 100 * time.Millisecond

// ServiceLine drives the VMC service switch, an open-drain line that is only
// ever pulled low or released
type ServiceLine struct {
	gpio  GPIODriver
	pin   GPIOPin
	delay Delayer
	width time.Duration
}

// NewServiceLine creates a service line on pin
func NewServiceLine(gpio GPIODriver, pin GPIOPin, delay Delayer, width time.Duration) *ServiceLine {
	if width <= 0 {
		width = DefaultServiceWidth
	}
	return &ServiceLine{gpio: gpio, pin: pin, delay: delay, width: width}
}

// Release puts the line in high impedance
func (s *ServiceLine) Release() error {
	if err := s.gpio.ConfigureInput(s.pin); err != nil {
		return &PinError{Pin: s.pin, Err: err}
	}
	return nil
}

// Pulse pulls the line low for the configured width, then releases it.
// Blocks the caller for the whole pulse.
func (s *ServiceLine) Pulse() error {
	// Latch low before enabling the driver so the line never glitches high
	if err := s.gpio.SetPin(s.pin, false); err != nil {
		return &PinError{Pin: s.pin, Err: err}
	}
	if err := s.gpio.ConfigureOutput(s.pin); err != nil {
		return &PinError{Pin: s.pin, Err: err}
	}
	s.delay.Delay(s.width)
	return s.Release()
}

// DecoderStats counts decoder activity
type DecoderStats struct {
	Commands     uint32 // key bytes that armed the generator
	AcksDropped  uint32 // acks lost to a full to-host queue
	ServicePulse uint32 // service pulses sent
	Ignored      uint32 // bytes with no meaning
}

// Decoder turns host command bytes into pulse generator arms and service
// pulses
type Decoder struct {
	registry *CommandRegistry
	busMap   *protocol.Keymap
	pulser   *PulseGenerator
	service  *ServiceLine
	clock    Clock
	toHost   *protocol.ByteQueue

	stats DecoderStats
}

// NewDecoder creates a decoder and registers one command per key of busMap
// plus the service command
func NewDecoder(busMap *protocol.Keymap, pulser *PulseGenerator, service *ServiceLine, clock Clock, toHost *protocol.ByteQueue) *Decoder {
	d := &Decoder{
		registry: NewCommandRegistry(),
		busMap:   busMap,
		pulser:   pulser,
		service:  service,
		clock:    clock,
		toHost:   toHost,
	}
	for col := uint8(0); col < protocol.Columns; col++ {
		for row := uint8(0); row < protocol.Rows; row++ {
			key := busMap.Lookup(col, row)
			d.registry.Register(key, "key_"+string(key), d.handleKey)
		}
	}
	d.registry.Register(protocol.Service, "service", d.handleService)
	return d
}

// Poll consumes at most one byte from toBus. It does nothing unless a byte is
// waiting and the pulse generator is idle, so an armed press is never
// overwritten.
func (d *Decoder) Poll(toBus *protocol.ByteQueue) {
	if toBus.IsEmpty() || !d.pulser.Idle() {
		return
	}
	b, _ := toBus.Remove()
	err := d.registry.Dispatch(b)
	if errors.Is(err, ErrUnknownCommand) {
		d.stats.Ignored++
		return
	}
	if err != nil {
		DebugAsync("decoder: " + err.Error())
	}
}

func (d *Decoder) handleKey(key byte) error {
	col, row, ok := d.busMap.Locate(key)
	if !ok {
		return ErrUnknownCommand
	}
	if err := d.pulser.Arm(col, row); err != nil {
		return err
	}
	d.stats.Commands++
	RecordEvent(EvtArm, col, row, d.clock.Millis(), uint32(key))
	if !d.toHost.Insert(protocol.Ack) {
		d.stats.AcksDropped++
	}
	return nil
}

func (d *Decoder) handleService(byte) error {
	if err := d.service.Pulse(); err != nil {
		return err
	}
	d.stats.ServicePulse++
	RecordEvent(EvtService, 0, 0, d.clock.Millis(), 0)
	return nil
}

// Registry exposes the command table
func (d *Decoder) Registry() *CommandRegistry {
	return d.registry
}

// Stats returns a copy of the decoder counters
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

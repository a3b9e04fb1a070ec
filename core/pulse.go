package core

import (
	"errors"
	"sync/atomic"
	"time"

	"vmcbridge/protocol"
)

var (
	ErrGeneratorBusy = errors.New("pulse generator not idle")
	ErrInvalidKey    = errors.New("key coordinate out of range")
)

// LoopUnit is the timing quantum the VMC expects pulses to be built from:
// one 4-cycle delay loop iteration at 16 MHz.
const LoopUnit = 250 * time.Nanosecond

// LoopUnits converts a loop count to a duration
func LoopUnits(n uint32) time.Duration {
	return time.Duration(n) * LoopUnit
}

// PulseShape holds the phase widths of one emulated key press
type PulseShape struct {
	SettleA   time.Duration // wait after the column strobe is seen
	SettleB   time.Duration // second half of the settle wait
	Strobe    time.Duration // first row-low window
	Gap       time.Duration // row released between strobe and hold (columns 0 and 1)
	Col0Extra time.Duration // added to Gap for column 0
	Hold      time.Duration // final row-low window
}

// DefaultPulseShape is the timing the VMC was characterised with
var DefaultPulseShape = PulseShape{
	SettleA:   LoopUnits(60000),
	SettleB:   LoopUnits(59600),
	Strobe:    LoopUnits(50),
	Gap:       LoopUnits(200),
	Col0Extra: LoopUnits(300),
	Hold:      LoopUnits(10000),
}

// Phase is one stretch of constant row level
type Phase struct {
	Low      bool
	Duration time.Duration
}

// MaxPhases bounds the length of a PulsePlan
const MaxPhases = 4

// PulsePlan is the row waveform for one column. The row idles high before
// the first phase and is released high after the last.
type PulsePlan struct {
	Phases [MaxPhases]Phase
	N      int
}

func (p *PulsePlan) add(low bool, d time.Duration) {
	if d <= 0 {
		return
	}
	if p.N > 0 && p.Phases[p.N-1].Low == low {
		p.Phases[p.N-1].Duration += d
		return
	}
	p.Phases[p.N] = Phase{Low: low, Duration: d}
	p.N++
}

// Plan builds the row waveform for col. Adjacent phases with the same level
// are merged, so column 2 has a single low window of Strobe+Hold.
func (s *PulseShape) Plan(col uint8) PulsePlan {
	var p PulsePlan
	p.add(false, s.SettleA+s.SettleB)
	p.add(true, s.Strobe)
	if col < 2 {
		gap := s.Gap
		if col == 0 {
			gap += s.Col0Extra
		}
		p.add(false, gap)
	}
	p.add(true, s.Hold)
	return p
}

// Total returns the plan's duration
func (p *PulsePlan) Total() time.Duration {
	var d time.Duration
	for i := 0; i < p.N; i++ {
		d += p.Phases[i].Duration
	}
	return d
}

// PulseOutput drives the bus row lines
type PulseOutput interface {
	// Configure sets all rows to their idle (high) level
	Configure() error

	// Emit plays plan on row and returns with the row high. Called from
	// interrupt context; must not allocate.
	Emit(row uint8, plan *PulsePlan)
}

// GPIOPulseOutput bit-bangs the rows and times phases with a Delayer
type GPIOPulseOutput struct {
	gpio  GPIODriver
	rows  [protocol.Rows]GPIOPin
	delay Delayer
}

// NewGPIOPulseOutput creates a busy-wait pulse backend
func NewGPIOPulseOutput(gpio GPIODriver, rows [protocol.Rows]GPIOPin, delay Delayer) *GPIOPulseOutput {
	return &GPIOPulseOutput{gpio: gpio, rows: rows, delay: delay}
}

// Configure implements PulseOutput
func (o *GPIOPulseOutput) Configure() error {
	for _, pin := range o.rows {
		if err := o.gpio.SetPin(pin, true); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
		if err := o.gpio.ConfigureOutput(pin); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
	}
	return nil
}

// Emit implements PulseOutput. It runs in interrupt context with pins that
// passed Configure, so SetPin errors are not checked.
func (o *GPIOPulseOutput) Emit(row uint8, plan *PulsePlan) {
	pin := o.rows[row]
	for i := 0; i < plan.N; i++ {
		o.gpio.SetPin(pin, !plan.Phases[i].Low)
		o.delay.Delay(plan.Phases[i].Duration)
	}
	o.gpio.SetPin(pin, true)
}

// Arm word layout: state in bits 8-9, column in bits 4-7, row in bits 0-3
const (
	stateIdle    uint32 = 0
	stateArmed   uint32 = 1 << 8
	statePulsing uint32 = 2 << 8
	stateMask    uint32 = 3 << 8
)

func packArm(col, row uint8) uint32 {
	return stateArmed | uint32(col)<<4 | uint32(row)
}

func unpackArm(w uint32) (col, row uint8) {
	return uint8(w>>4) & 0x0F, uint8(w) & 0x0F
}

// PulseStats counts pulse generator activity
type PulseStats struct {
	Armed     uint32 // successful Arm calls
	Pulses    uint32 // pulses emitted
	Unmatched uint32 // edges while armed with the armed column not low
	Spurious  uint32 // edges while idle or already pulsing
}

// PulseGenerator emits one key press on the VMC bus when the VMC strobes the
// armed column. The decoder arms it; the column-sense interrupt fires it.
type PulseGenerator struct {
	gpio   GPIODriver
	sense  [protocol.Columns]GPIOPin
	output PulseOutput
	clock  Clock
	plans  [protocol.Columns]PulsePlan

	arm uint32 // shared with interrupt context, atomic only

	armed     uint32
	pulses    uint32
	unmatched uint32
	spurious  uint32
}

// NewPulseGenerator creates a generator watching the bus sense pins of pins
func NewPulseGenerator(gpio GPIODriver, pins *Pinout, output PulseOutput, clock Clock, shape PulseShape) *PulseGenerator {
	g := &PulseGenerator{
		gpio:   gpio,
		sense:  pins.BusSense,
		output: output,
		clock:  clock,
	}
	for col := range g.plans {
		g.plans[col] = shape.Plan(uint8(col))
	}
	return g
}

// Configure prepares the rows and attaches the pin-change handler to every
// column sense line
func (g *PulseGenerator) Configure() error {
	if err := g.output.Configure(); err != nil {
		return err
	}
	for _, pin := range g.sense {
		if err := g.gpio.ConfigureInput(pin); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
		if err := g.gpio.SetInterrupt(pin, PinToggle, g.HandleEdge); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
	}
	return nil
}

// Arm selects the key to press on the next strobe of its column
func (g *PulseGenerator) Arm(col, row uint8) error {
	if col >= protocol.Columns || row >= protocol.Rows {
		return ErrInvalidKey
	}
	if !atomic.CompareAndSwapUint32(&g.arm, stateIdle, packArm(col, row)) {
		return ErrGeneratorBusy
	}
	atomic.AddUint32(&g.armed, 1)
	return nil
}

// Idle reports whether the generator can be armed
func (g *PulseGenerator) Idle() bool {
	return atomic.LoadUint32(&g.arm) == stateIdle
}

// Armed returns the armed coordinate, if any
func (g *PulseGenerator) Armed() (col, row uint8, ok bool) {
	w := atomic.LoadUint32(&g.arm)
	if w&stateMask != stateArmed {
		return 0, 0, false
	}
	col, row = unpackArm(w)
	return col, row, true
}

// HandleEdge is the pin-change interrupt handler shared by all sense pins.
// It pulses only if armed and the armed column's sense line is low; any other
// edge is counted and ignored.
func (g *PulseGenerator) HandleEdge(GPIOPin) {
	w := atomic.LoadUint32(&g.arm)
	if w&stateMask != stateArmed {
		atomic.AddUint32(&g.spurious, 1)
		return
	}
	col, row := unpackArm(w)
	if g.gpio.ReadPin(g.sense[col]) {
		atomic.AddUint32(&g.unmatched, 1)
		return
	}
	if !atomic.CompareAndSwapUint32(&g.arm, w, statePulsing) {
		atomic.AddUint32(&g.spurious, 1)
		return
	}

	g.output.Emit(row, &g.plans[col])

	atomic.AddUint32(&g.pulses, 1)
	RecordEvent(EvtPulse, col, row, g.clock.Millis(), 0)
	atomic.StoreUint32(&g.arm, stateIdle)
}

// Plan returns the waveform used for col
func (g *PulseGenerator) Plan(col uint8) PulsePlan {
	return g.plans[col]
}

// Stats returns a snapshot of the generator counters
func (g *PulseGenerator) Stats() PulseStats {
	return PulseStats{
		Armed:     atomic.LoadUint32(&g.armed),
		Pulses:    atomic.LoadUint32(&g.pulses),
		Unmatched: atomic.LoadUint32(&g.unmatched),
		Spurious:  atomic.LoadUint32(&g.spurious),
	}
}

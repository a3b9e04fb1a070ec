package core

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"vmcbridge/protocol"
)

// BridgeConfig collects the collaborators and tunables of a Bridge. Zero
// values select defaults.
type BridgeConfig struct {
	GPIO    GPIODriver // defaults to the registered driver
	Pins    Pinout
	Port    drivers.UART
	Clock   Clock
	Delayer Delayer     // defaults to SleepDelayer
	Output  PulseOutput // defaults to a GPIOPulseOutput on Pins.BusRows

	// BusLayout maps command bytes to bus coordinates; defaults to the
	// keypad layout
	BusLayout *protocol.Keymap

	QueueCapacity int
	DebounceMs    uint32
	ServiceWidth  time.Duration
	MaxBurst      int
	Shape         *PulseShape // defaults to DefaultPulseShape
}

var ErrNoPort = errors.New("bridge: no port")

// Stats is a snapshot of every bridge counter
type Stats struct {
	KeysAccepted uint32
	KeysDropped  uint32
	Decoder      DecoderStats
	Pulse        PulseStats
	Transport    protocol.TransportStats
	Panics       uint32
}

// Bridge owns the queues and components and runs them from one cooperative
// loop. Only the pulse generator's arm word is touched from interrupt context.
type Bridge struct {
	toBus  *protocol.ByteQueue
	toHost *protocol.ByteQueue

	transport *protocol.Transport
	scanner   *Scanner
	decoder   *Decoder
	pulser    *PulseGenerator
	service   *ServiceLine
	clock     Clock

	panics uint32
}

// NewBridge wires a bridge from cfg. Hardware is untouched until Start.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Port == nil {
		return nil, ErrNoPort
	}
	if cfg.GPIO == nil {
		cfg.GPIO = MustGPIO()
	}
	if cfg.Clock == nil {
		cfg.Clock = &TickClock{}
	}
	if cfg.Delayer == nil {
		cfg.Delayer = SleepDelayer{}
	}
	if cfg.BusLayout == nil {
		cfg.BusLayout = &protocol.KeypadLayout
	}
	if cfg.Output == nil {
		cfg.Output = NewGPIOPulseOutput(cfg.GPIO, cfg.Pins.BusRows, cfg.Delayer)
	}
	shape := DefaultPulseShape
	if cfg.Shape != nil {
		shape = *cfg.Shape
	}
	if err := cfg.Pins.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{
		toBus:     protocol.NewByteQueue(cfg.QueueCapacity),
		toHost:    protocol.NewByteQueue(cfg.QueueCapacity),
		transport: protocol.NewTransport(cfg.Port),
		clock:     cfg.Clock,
	}
	if cfg.MaxBurst > 0 {
		b.transport.SetMaxBurst(cfg.MaxBurst)
	}
	b.transport.SetResetCallback(func() {
		DebugAsync("host reconnected")
	})

	b.scanner = NewScanner(cfg.GPIO, &cfg.Pins, &protocol.KeypadLayout, cfg.Clock, cfg.DebounceMs)
	b.pulser = NewPulseGenerator(cfg.GPIO, &cfg.Pins, cfg.Output, cfg.Clock, shape)
	b.service = NewServiceLine(cfg.GPIO, cfg.Pins.Service, cfg.Delayer, cfg.ServiceWidth)
	b.decoder = NewDecoder(cfg.BusLayout, b.pulser, b.service, cfg.Clock, b.toHost)
	return b, nil
}

// Start configures all pins and enables the pulse interrupt
func (b *Bridge) Start() error {
	if err := b.scanner.Configure(); err != nil {
		return err
	}
	if err := b.service.Release(); err != nil {
		return err
	}
	if err := b.pulser.Configure(); err != nil {
		return err
	}
	DebugPrintln("bridge started")
	return nil
}

// Step runs one main loop iteration: transport, scanner, decoder
func (b *Bridge) Step() {
	flushes := b.transport.Stats().StaleFlushes
	b.transport.Poll(b.toBus, b.toHost)
	if b.transport.Stats().StaleFlushes != flushes {
		RecordEvent(EvtStaleFlush, 0, 0, b.clock.Millis(), 0)
	}

	b.scanner.Scan(b.toHost)
	b.decoder.Poll(b.toBus)
}

// Run steps the bridge until ctx is done. A panic inside a step is counted
// and the loop carries on with empty queues.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		b.safeStep()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

func (b *Bridge) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			b.panics++
			RecordEvent(EvtPanic, 0, 0, b.clock.Millis(), b.panics)
			b.toBus.Reset()
			b.toHost.Reset()
		}
	}()
	b.Step()
}

// Stats returns a snapshot of all counters
func (b *Bridge) Stats() Stats {
	state := disableInterrupts()
	s := Stats{
		KeysAccepted: b.scanner.Accepted(),
		KeysDropped:  b.scanner.Dropped(),
		Decoder:      b.decoder.Stats(),
		Pulse:        b.pulser.Stats(),
		Transport:    b.transport.Stats(),
		Panics:       b.panics,
	}
	restoreInterrupts(state)
	return s
}

// Pulser returns the pulse generator, e.g. for a status indicator
func (b *Bridge) Pulser() *PulseGenerator {
	return b.pulser
}

// HostGone reports whether the transport dropped the host after repeated
// send failures
func (b *Bridge) HostGone() bool {
	return b.transport.HostGone()
}

// Pending returns the number of bytes waiting in each direction
func (b *Bridge) Pending() (toBus, toHost int) {
	return b.toBus.Count(), b.toHost.Count()
}

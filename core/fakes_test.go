package core

import (
	"errors"
	"time"

	"vmcbridge/protocol"
)

var testPins = Pinout{
	KeyCols:  [protocol.Columns]GPIOPin{10, 11, 12},
	KeyRows:  [protocol.Rows]GPIOPin{13, 14, 15, 16, 17, 18, 19},
	BusSense: [protocol.Columns]GPIOPin{20, 21, 22},
	BusRows:  [protocol.Rows]GPIOPin{0, 1, 2, 3, 4, 5, 6},
	Service:  7,
}

type pinMode uint8

const (
	modeUnset pinMode = iota
	modeOutput
	modePullUp
	modeInput
)

// levelChange is an output transition stamped with virtual time
type levelChange struct {
	pin   GPIOPin
	level bool
	at    time.Duration
}

// fakeDelayer advances virtual time instead of sleeping
type fakeDelayer struct {
	now time.Duration
}

func (d *fakeDelayer) Delay(dur time.Duration) { d.now += dur }

// fakeGPIO simulates the keypad matrix and records output transitions
type fakeGPIO struct {
	pins    *Pinout
	delayer *fakeDelayer

	mode    map[GPIOPin]pinMode
	out     map[GPIOPin]bool
	in      map[GPIOPin]bool // externally driven input levels
	irq     map[GPIOPin]func(GPIOPin)
	pressed map[[2]int]bool
	changes []levelChange
	failSet map[GPIOPin]bool // SetPin returns errPinFault for these
}

var errPinFault = errors.New("pin fault")

func newFakeGPIO(pins *Pinout, delayer *fakeDelayer) *fakeGPIO {
	return &fakeGPIO{
		pins:    pins,
		delayer: delayer,
		mode:    make(map[GPIOPin]pinMode),
		out:     make(map[GPIOPin]bool),
		in:      make(map[GPIOPin]bool),
		irq:     make(map[GPIOPin]func(GPIOPin)),
		pressed: make(map[[2]int]bool),
		failSet: make(map[GPIOPin]bool),
	}
}

func (f *fakeGPIO) ConfigureOutput(pin GPIOPin) error {
	f.mode[pin] = modeOutput
	return nil
}

func (f *fakeGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	f.mode[pin] = modePullUp
	return nil
}

func (f *fakeGPIO) ConfigureInput(pin GPIOPin) error {
	f.mode[pin] = modeInput
	return nil
}

func (f *fakeGPIO) SetPin(pin GPIOPin, value bool) error {
	if f.failSet[pin] {
		return errPinFault
	}
	if old, ok := f.out[pin]; ok && old == value {
		return nil
	}
	f.out[pin] = value
	var at time.Duration
	if f.delayer != nil {
		at = f.delayer.now
	}
	f.changes = append(f.changes, levelChange{pin: pin, level: value, at: at})
	return nil
}

func (f *fakeGPIO) ReadPin(pin GPIOPin) bool {
	for key := range f.pressed {
		if f.pins.KeyRows[key[1]] != pin {
			continue
		}
		col := f.pins.KeyCols[key[0]]
		if f.mode[col] == modeOutput && !f.out[col] {
			return false
		}
	}
	if level, ok := f.in[pin]; ok {
		return level
	}
	if f.mode[pin] == modeOutput {
		return f.out[pin]
	}
	return true
}

func (f *fakeGPIO) SetInterrupt(pin GPIOPin, change PinChange, callback func(GPIOPin)) error {
	if callback == nil {
		delete(f.irq, pin)
		return nil
	}
	f.irq[pin] = callback
	return nil
}

// press holds down keypad key (col, row)
func (f *fakeGPIO) press(col, row int) { f.pressed[[2]int{col, row}] = true }

func (f *fakeGPIO) release(col, row int) { delete(f.pressed, [2]int{col, row}) }

// strobe pulls a bus column sense line low and raises its interrupt
func (f *fakeGPIO) strobe(col int) {
	pin := f.pins.BusSense[col]
	f.in[pin] = false
	if cb := f.irq[pin]; cb != nil {
		cb(pin)
	}
	f.in[pin] = true
}

// changesOn returns the recorded transitions of pin
func (f *fakeGPIO) changesOn(pin GPIOPin) []levelChange {
	var out []levelChange
	for _, c := range f.changes {
		if c.pin == pin {
			out = append(out, c)
		}
	}
	return out
}

// fakePort is an in-memory drivers.UART
type fakePort struct {
	rx          []byte
	tx          []byte
	panicOnRead bool
}

func (p *fakePort) Buffered() int {
	if p.panicOnRead {
		p.panicOnRead = false
		panic("port fault")
	}
	return len(p.rx)
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.tx = append(p.tx, b...)
	return len(b), nil
}

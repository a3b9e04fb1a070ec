package core

import (
	"vmcbridge/protocol"
)

// DefaultDebounceMs is the minimum interval between two reports of one key.
// A key held down is reported again at this rate.
const DefaultDebounceMs = 100

// Scanner reads the keypad matrix and queues pressed keys for the host
type Scanner struct {
	gpio     GPIODriver
	cols     [protocol.Columns]GPIOPin
	rows     [protocol.Rows]GPIOPin
	keymap   *protocol.Keymap
	clock    Clock
	debounce uint32

	// Time of the last accepted press per key; seen is false until the first
	last [protocol.Columns][protocol.Rows]uint32
	seen [protocol.Columns][protocol.Rows]bool

	accepted uint32
	dropped  uint32
}

// NewScanner creates a scanner over the keypad pins of pins
func NewScanner(gpio GPIODriver, pins *Pinout, keymap *protocol.Keymap, clock Clock, debounceMs uint32) *Scanner {
	if debounceMs == 0 {
		debounceMs = DefaultDebounceMs
	}
	return &Scanner{
		gpio:     gpio,
		cols:     pins.KeyCols,
		rows:     pins.KeyRows,
		keymap:   keymap,
		clock:    clock,
		debounce: debounceMs,
	}
}

// Configure sets the column lines as outputs idling high and the row lines as
// pulled-up inputs
func (s *Scanner) Configure() error {
	for _, pin := range s.cols {
		if err := s.gpio.SetPin(pin, true); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
		if err := s.gpio.ConfigureOutput(pin); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
	}
	for _, pin := range s.rows {
		if err := s.gpio.ConfigureInputPullUp(pin); err != nil {
			return &PinError{Pin: pin, Err: err}
		}
	}
	return nil
}

// Scan makes one pass over the matrix. A pressed key is inserted into out
// once more than debounce ms have passed since its last accepted press. The
// press restarts the interval even if out was full; it is counted as dropped.
//
// Pin errors are not checked here; Configure already proved every pin.
func (s *Scanner) Scan(out *protocol.ByteQueue) {
	for col := 0; col < protocol.Columns; col++ {
		s.gpio.SetPin(s.cols[col], false)
		for row := 0; row < protocol.Rows; row++ {
			if s.gpio.ReadPin(s.rows[row]) {
				continue
			}
			now := s.clock.Millis()
			if s.seen[col][row] && Elapsed(now, s.last[col][row]) <= s.debounce {
				continue
			}
			s.seen[col][row] = true
			s.last[col][row] = now

			if out.Insert(s.keymap[col][row]) {
				s.accepted++
				RecordEvent(EvtKeyAccepted, uint8(col), uint8(row), now, uint32(s.keymap[col][row]))
			} else {
				s.dropped++
				RecordEvent(EvtKeyDropped, uint8(col), uint8(row), now, uint32(s.keymap[col][row]))
			}
		}
		s.gpio.SetPin(s.cols[col], true)
	}
}

// Accepted returns how many presses were queued
func (s *Scanner) Accepted() uint32 { return s.accepted }

// Dropped returns how many presses were lost to a full queue
func (s *Scanner) Dropped() uint32 { return s.dropped }

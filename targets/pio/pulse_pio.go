//go:build rp2040 || rp2350

package pio

// PIO pulse backend using tinygo-org/pio package
// The state machine times every phase of a key press in hardware, so the
// strobe width does not depend on interrupt latency or flash cache misses.

import (
	"errors"
	"machine"

	"vmcbridge/core"
	"vmcbridge/protocol"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Phase word format:
//
//	Bits 0-6:  row pin levels (bit i drives bus row i)
//	Bits 7-31: hold count; 0 marks the final word
//
// Program flow:
//  1. Pull a phase word from the FIFO
//  2. Drive the 7 row pins from its low bits
//  3. Load the hold count into X; a zero count goes back to the pull
//  4. Spin X+1 cycles, then wrap to the pull
//
// buildPulseProgram creates the pulse PIO program using AssemblerV0
func buildPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                          // 0: pull block
		asm.Out(rp2pio.OutDestPins, protocol.Rows).Encode(),     // 1: out pins, 7
		asm.Out(rp2pio.OutDestX, 32-protocol.Rows).Encode(),     // 2: out x, 25
		asm.Jmp(pulsePIOOrigin, rp2pio.JmpXZero).Encode(),       // 3: jmp !x, 0
		asm.Jmp(pulsePIOOrigin+4, rp2pio.JmpXNZeroDec).Encode(), // 4: jmp x--, 4
		// .wrap
	}
}

const (
	pulsePIOOrigin = 0 // Load at offset 0 for correct jump addresses

	// Cycles between two "out pins" that are not spent in the spin loop
	phaseOverhead = 4

	rowMask  = 1<<protocol.Rows - 1
	maxCount = 1<<(32-protocol.Rows) - 1
)

var ErrRowsNotConsecutive = errors.New("pio: bus rows must be consecutive GPIOs")

// PulsePIO implements core.PulseOutput on a PIO state machine
type PulsePIO struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	base    machine.Pin
	offset  uint8
	cpuFreq uint64
}

// NewPulsePIO creates a PIO pulse backend driving rows.
// pioNum: 0 for PIO0, 1 for PIO1
// smNum: 0-3 for state machine number
func NewPulsePIO(pioNum, smNum uint8, rows [protocol.Rows]core.GPIOPin) (*PulsePIO, error) {
	for i, pin := range rows {
		if pin != rows[0]+core.GPIOPin(i) {
			return nil, ErrRowsNotConsecutive
		}
	}

	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	return &PulsePIO{
		pio:  pioHW,
		sm:   pioHW.StateMachine(smNum),
		base: machine.Pin(rows[0]),
	}, nil
}

// Configure loads the program and parks all rows high
func (p *PulsePIO) Configure() error {
	// Claim the state machine first
	p.sm.TryClaim()

	program := buildPulseProgram()
	offset, err := p.pio.AddProgram(program, pulsePIOOrigin)
	if err != nil {
		return err
	}
	p.offset = offset
	p.cpuFreq = uint64(machine.CPUFrequency())

	for i := 0; i < protocol.Rows; i++ {
		(p.base + machine.Pin(i)).Configure(machine.PinConfig{Mode: p.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()

	// OUT pins: all seven rows
	cfg.SetOutPins(p.base, protocol.Rows)

	// Shift right, autopull disabled (explicit PULL), 32-bit threshold
	cfg.SetOutShift(true, false, 32)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// Full speed: one count is one system clock cycle
	cfg.SetClkDivIntFrac(1, 0)

	// Initialize state machine FIRST
	p.sm.Init(offset, cfg)

	// THEN set pin directions and idle levels (must be after Init!)
	p.sm.SetPindirsConsecutive(p.base, protocol.Rows, true)
	p.sm.SetPinsConsecutive(p.base, protocol.Rows, true)

	p.sm.SetEnabled(true)
	return nil
}

func (p *PulsePIO) phaseWord(row uint8, ph core.Phase) uint32 {
	levels := uint32(rowMask)
	if ph.Low {
		levels &^= 1 << row
	}
	cycles := uint64(ph.Duration) * p.cpuFreq / 1e9
	count := uint64(1)
	if cycles > phaseOverhead+1 {
		count = cycles - phaseOverhead
	}
	if count > maxCount {
		count = maxCount
	}
	return levels | uint32(count)<<protocol.Rows
}

// Emit implements core.PulseOutput. It returns once the final word has been
// taken by the state machine, which drives the rows high on the next cycle.
func (p *PulsePIO) Emit(row uint8, plan *core.PulsePlan) {
	for i := 0; i < plan.N; i++ {
		word := p.phaseWord(row, plan.Phases[i])
		for p.sm.IsTxFIFOFull() {
			// Busy wait - the previous phase is still running
		}
		p.sm.TxPut(word)
	}

	for p.sm.IsTxFIFOFull() {
	}
	p.sm.TxPut(rowMask)

	for !p.sm.IsTxFIFOEmpty() {
	}
}

// Stop halts the state machine and releases the rows high
func (p *PulsePIO) Stop() {
	p.sm.SetEnabled(false)
	p.sm.ClearFIFOs()
	p.sm.Restart()
	p.sm.SetPinsConsecutive(p.base, protocol.Rows, true)
	p.sm.SetEnabled(true)
}

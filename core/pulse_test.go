package core

import (
	"errors"
	"testing"
	"time"
)

func newTestGenerator(t *testing.T) (*PulseGenerator, *fakeGPIO, *fakeDelayer) {
	t.Helper()
	delayer := &fakeDelayer{}
	gpio := newFakeGPIO(&testPins, delayer)
	output := NewGPIOPulseOutput(gpio, testPins.BusRows, delayer)
	g := NewPulseGenerator(gpio, &testPins, output, &TickClock{}, DefaultPulseShape)
	if err := g.Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	gpio.changes = nil
	return g, gpio, delayer
}

func TestDefaultPulseShape(t *testing.T) {
	s := DefaultPulseShape
	if s.SettleA+s.SettleB != 29900*time.Microsecond {
		t.Errorf("Settle should be 29.9ms, got %v", s.SettleA+s.SettleB)
	}
	if s.Strobe != 12500*time.Nanosecond {
		t.Errorf("Strobe should be 12.5us, got %v", s.Strobe)
	}
	if s.Hold != 2500*time.Microsecond {
		t.Errorf("Hold should be 2.5ms, got %v", s.Hold)
	}
}

func TestPulsePlans(t *testing.T) {
	s := DefaultPulseShape
	settle := s.SettleA + s.SettleB

	tests := []struct {
		col    uint8
		phases []Phase
	}{
		{0, []Phase{{false, settle}, {true, s.Strobe}, {false, s.Gap + s.Col0Extra}, {true, s.Hold}}},
		{1, []Phase{{false, settle}, {true, s.Strobe}, {false, s.Gap}, {true, s.Hold}}},
		{2, []Phase{{false, settle}, {true, s.Strobe + s.Hold}}},
	}
	for _, tt := range tests {
		plan := s.Plan(tt.col)
		if plan.N != len(tt.phases) {
			t.Errorf("Column %d: expected %d phases, got %d", tt.col, len(tt.phases), plan.N)
			continue
		}
		for i, want := range tt.phases {
			if plan.Phases[i] != want {
				t.Errorf("Column %d phase %d: got %+v, want %+v", tt.col, i, plan.Phases[i], want)
			}
		}
	}
}

func TestPulsePlanSkipsEmptyPhases(t *testing.T) {
	s := PulseShape{Strobe: time.Microsecond, Hold: time.Millisecond}
	plan := s.Plan(1)
	if plan.N != 1 || !plan.Phases[0].Low || plan.Phases[0].Duration != time.Millisecond+time.Microsecond {
		t.Errorf("Zero settle and gap should collapse to one low phase, got %+v", plan)
	}
}

func TestPulseGeneratorConfigure(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)

	for _, pin := range testPins.BusRows {
		if gpio.mode[pin] != modeOutput || !gpio.out[pin] {
			t.Errorf("Bus row %d should be an output idling high", pin)
		}
	}
	for _, pin := range testPins.BusSense {
		if gpio.mode[pin] != modeInput {
			t.Errorf("Sense pin %d should be a floating input", pin)
		}
		if gpio.irq[pin] == nil {
			t.Errorf("Sense pin %d has no interrupt handler", pin)
		}
	}
	if !g.Idle() {
		t.Error("New generator should be idle")
	}
}

func TestPulseGeneratorArm(t *testing.T) {
	g, _, _ := newTestGenerator(t)

	if err := g.Arm(3, 0); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for column 3, got %v", err)
	}
	if err := g.Arm(0, 7); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for row 7, got %v", err)
	}

	if err := g.Arm(1, 2); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if g.Idle() {
		t.Error("Armed generator should not be idle")
	}
	col, row, ok := g.Armed()
	if !ok || col != 1 || row != 2 {
		t.Errorf("Armed() = (%d,%d,%v), want (1,2,true)", col, row, ok)
	}

	if err := g.Arm(0, 0); !errors.Is(err, ErrGeneratorBusy) {
		t.Errorf("Second arm should fail with ErrGeneratorBusy, got %v", err)
	}
	if col, row, _ := g.Armed(); col != 1 || row != 2 {
		t.Error("Failed arm must not overwrite the armed key")
	}
}

func TestPulseGeneratorColumn1(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)
	g.Arm(1, 2)

	gpio.strobe(1)

	if !g.Idle() {
		t.Error("Generator should return to idle after the pulse")
	}

	want := []levelChange{
		{testPins.BusRows[2], false, 29900 * time.Microsecond},
		{testPins.BusRows[2], true, 29912500 * time.Nanosecond},
		{testPins.BusRows[2], false, 29962500 * time.Nanosecond},
		{testPins.BusRows[2], true, 32462500 * time.Nanosecond},
	}
	got := gpio.changesOn(testPins.BusRows[2])
	if len(got) != len(want) {
		t.Fatalf("Expected %d transitions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Transition %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	if len(gpio.changes) != len(got) {
		t.Error("Only the armed row should change")
	}
	if g.Stats().Pulses != 1 {
		t.Errorf("Expected 1 pulse, got %d", g.Stats().Pulses)
	}
}

func TestPulseGeneratorColumn0ExtraGap(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)
	g.Arm(0, 6)
	gpio.strobe(0)

	got := gpio.changesOn(testPins.BusRows[6])
	if len(got) != 4 {
		t.Fatalf("Expected 4 transitions, got %d", len(got))
	}
	gap := got[2].at - got[1].at
	if gap != 125*time.Microsecond {
		t.Errorf("Column 0 gap should be 125us, got %v", gap)
	}
}

func TestPulseGeneratorColumn2SingleLow(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)
	g.Arm(2, 0)
	gpio.strobe(2)

	got := gpio.changesOn(testPins.BusRows[0])
	if len(got) != 2 {
		t.Fatalf("Column 2 should go low once and release, got %+v", got)
	}
	if got[0].level || !got[1].level {
		t.Error("Expected low then high")
	}
	if got[1].at-got[0].at != 2512500*time.Nanosecond {
		t.Errorf("Low window should be strobe+hold, got %v", got[1].at-got[0].at)
	}
}

func TestPulseGeneratorIgnoresOtherColumns(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)
	g.Arm(1, 3)

	// VMC strobes column 0: its edge reaches the shared handler but column 1
	// is still high
	gpio.strobe(0)
	gpio.strobe(2)

	if len(gpio.changes) != 0 {
		t.Errorf("No row should move, got %+v", gpio.changes)
	}
	if _, _, ok := g.Armed(); !ok {
		t.Error("Generator should stay armed")
	}
	if g.Stats().Unmatched != 2 {
		t.Errorf("Expected 2 unmatched edges, got %d", g.Stats().Unmatched)
	}

	gpio.strobe(1)
	if g.Stats().Pulses != 1 || !g.Idle() {
		t.Error("Strobe on the armed column should fire the pulse")
	}
}

func TestPulseGeneratorSpuriousEdge(t *testing.T) {
	g, gpio, _ := newTestGenerator(t)

	gpio.strobe(1)
	if len(gpio.changes) != 0 {
		t.Error("Idle generator must not drive the bus")
	}
	if g.Stats().Spurious != 1 {
		t.Errorf("Expected 1 spurious edge, got %d", g.Stats().Spurious)
	}
}

// reentrantOutput raises another edge halfway through a pulse
type reentrantOutput struct {
	inner *GPIOPulseOutput
	gpio  *fakeGPIO
	fired bool
}

func (o *reentrantOutput) Configure() error { return o.inner.Configure() }

func (o *reentrantOutput) Emit(row uint8, plan *PulsePlan) {
	if !o.fired {
		o.fired = true
		o.gpio.strobe(1)
	}
	o.inner.Emit(row, plan)
}

func TestPulseGeneratorIgnoresEdgeWhilePulsing(t *testing.T) {
	delayer := &fakeDelayer{}
	gpio := newFakeGPIO(&testPins, delayer)
	output := &reentrantOutput{inner: NewGPIOPulseOutput(gpio, testPins.BusRows, delayer), gpio: gpio}
	g := NewPulseGenerator(gpio, &testPins, output, &TickClock{}, DefaultPulseShape)
	if err := g.Configure(); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	g.Arm(1, 1)
	gpio.strobe(1)

	st := g.Stats()
	if st.Pulses != 1 {
		t.Errorf("Expected exactly 1 pulse, got %d", st.Pulses)
	}
	if st.Spurious != 1 {
		t.Errorf("Edge during the pulse should be spurious, got %d", st.Spurious)
	}
	if !g.Idle() {
		t.Error("Generator should end idle")
	}
}

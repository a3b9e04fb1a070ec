package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures a bridge event for post-mortem analysis
type Event struct {
	Type  uint8  // Event type code
	Col   uint8  // Matrix column, if any
	Row   uint8  // Matrix row, if any
	Clock uint32 // Millisecond clock at event
	Value uint32 // Context-dependent value
}

// Event type codes
const (
	EvtKeyAccepted = 1 // keypad press queued for the host
	EvtKeyDropped  = 2 // keypad press lost, to-host queue full
	EvtArm         = 3 // decoder armed the pulse generator
	EvtPulse       = 4 // pulse emitted on the bus
	EvtService     = 5 // service line pulsed
	EvtStaleFlush  = 6 // host gone, to-host queue flushed
	EvtPanic       = 7 // main loop recovered from a panic
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring, written from both the main loop and the pulse interrupt
	eventRing     [EventRingSize]Event
	eventRingHead uint8

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent captures an event in the ring buffer. Never blocks, safe from
// interrupt context.
func RecordEvent(eventType, col, row uint8, clock, value uint32) {
	state := disableInterrupts()
	idx := eventRingHead
	eventRing[idx] = Event{
		Type:  eventType,
		Col:   col,
		Row:   row,
		Clock: clock,
		Value: value,
	}
	eventRingHead = (idx + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the ring contents, oldest first, skipping empty slots
func Events() []Event {
	state := disableInterrupts()
	ring := eventRing
	start := eventRingHead
	restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := ring[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtKeyAccepted:
		return "KEY"
	case EvtKeyDropped:
		return "KEY_DROPPED!"
	case EvtArm:
		return "ARM"
	case EvtPulse:
		return "PULSE"
	case EvtService:
		return "SERVICE"
	case EvtStaleFlush:
		return "STALE_FLUSH"
	case EvtPanic:
		return "PANIC!"
	}
	return "UNKNOWN"
}

// DumpEventRing outputs the event ring (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENT] " + eventName(evt.Type) +
			" col=" + utoa(uint32(evt.Col)) +
			" row=" + utoa(uint32(evt.Row)) +
			" clock=" + utoa(evt.Clock) +
			" v=" + utoa(evt.Value))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	state := disableInterrupts()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
	restoreInterrupts(state)
}

package core

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic millisecond counter. It wraps silently at 2^32, so
// readers must compare with After rather than with < or >.
type Clock interface {
	Millis() uint32
}

// TickClock is a Clock advanced by a 1 ms periodic interrupt
type TickClock struct {
	ms uint32
}

// Tick is the body of the 1 ms interrupt
func (c *TickClock) Tick() {
	atomic.AddUint32(&c.ms, 1)
}

// Millis returns the current tick count. Safe to call from any context.
func (c *TickClock) Millis() uint32 {
	return atomic.LoadUint32(&c.ms)
}

// Set forces the tick count (for testing/hardware integration)
func (c *TickClock) Set(ms uint32) {
	atomic.StoreUint32(&c.ms, ms)
}

// Elapsed returns the milliseconds from since to now. Unsigned subtraction
// stays correct across a counter wrap for any interval below 2^32 ms.
func Elapsed(now, since uint32) uint32 {
	return now - since
}

// Delayer blocks the caller for at least d. Targets implement it by spinning
// on a hardware timer; pulse timing depends on it not yielding early.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer delays with time.Sleep
type SleepDelayer struct{}

// Delay implements Delayer
func (SleepDelayer) Delay(d time.Duration) {
	time.Sleep(d)
}

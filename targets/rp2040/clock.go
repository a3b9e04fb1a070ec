//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"time"
	"unsafe"
)

// Raw (non-latching) timer words; timerBase comes from timer_<chip>.go
const (
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit 1 MHz hardware timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// hwClock is a core.Clock derived from the microsecond timer. The timer
// itself never wraps in practice; the millisecond view wraps like any Clock.
type hwClock struct{}

func (hwClock) Millis() uint32 {
	return uint32(GetHardwareUptime() / 1000)
}

// spinDelayer is a core.Delayer that busy-waits on the microsecond timer.
// It never yields, so it is safe inside interrupt handlers.
type spinDelayer struct{}

func (spinDelayer) Delay(d time.Duration) {
	// Round up: a delay may run long but never short
	us := uint64((d + time.Microsecond - 1) / time.Microsecond)
	start := GetHardwareUptime()
	for GetHardwareUptime()-start < us {
	}
}

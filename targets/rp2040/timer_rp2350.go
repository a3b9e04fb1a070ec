//go:build rp2350

package main

// RP2350 TIMER0. The register layout matches the RP2040 timer, only the
// base address moved.
const timerBase = 0x400B0000

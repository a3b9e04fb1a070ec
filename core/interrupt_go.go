//go:build !tinygo

package core

import "sync"

// State stands in for the saved interrupt state on regular Go
type State uintptr

// On regular Go the "interrupt" is another goroutine (tests, host
// simulation), so masked sections are a plain mutex. They must not nest.
var interruptMu sync.Mutex

// disableInterrupts enters a masked section
func disableInterrupts() State {
	interruptMu.Lock()
	return 0
}

// restoreInterrupts leaves a masked section
func restoreInterrupts(state State) {
	interruptMu.Unlock()
}

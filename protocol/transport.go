package protocol

import (
	"errors"

	"tinygo.org/x/drivers"
)

// MaxSendFailures is the number of consecutive failed sends after which the
// host is considered gone and stale to-host bytes are discarded.
const MaxSendFailures = 10

var (
	// ErrNotReady means the port accepted nothing; try again next poll
	ErrNotReady = errors.New("endpoint not ready")
)

// Readier is implemented by ports that can report whether the IN endpoint is
// free. Ports without it are assumed always ready.
type Readier interface {
	Ready() bool
}

// TransportStats counts transport activity for diagnostics
type TransportStats struct {
	RxBytes      uint32
	TxBytes      uint32
	RxErrors     uint32
	SendErrors   uint32
	StaleFlushes uint32
}

// Transport shuttles bytes between a serial port and the two byte queues.
// It must be polled once per main loop iteration.
type Transport struct {
	port     drivers.UART
	maxBurst int
	scratch  [1]byte

	consecutiveFailures uint32
	hostGone            bool
	stats               TransportStats

	resetCallback func() // Called when the host comes back after a flush
}

// NewTransport creates a Transport over port
func NewTransport(port drivers.UART) *Transport {
	return &Transport{
		port:     port,
		maxBurst: MaxBurst,
	}
}

// SetMaxBurst limits how many bytes are sent per poll
func (t *Transport) SetMaxBurst(n int) {
	if n < 1 {
		n = 1
	}
	t.maxBurst = n
}

// SetResetCallback sets a callback to be called when the host reconnects
// after stale data was flushed
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// ReceiveByte returns the next byte from the host, if one is available
func (t *Transport) ReceiveByte() (byte, bool) {
	if t.port.Buffered() == 0 {
		return 0, false
	}
	n, err := t.port.Read(t.scratch[:])
	if err != nil {
		t.stats.RxErrors++
		return 0, false
	}
	if n != 1 {
		return 0, false
	}
	t.stats.RxBytes++
	return t.scratch[0], true
}

// SendByte writes one byte to the host. It returns ErrNotReady if the port
// took nothing, or the port's error.
func (t *Transport) SendByte(b byte) error {
	t.scratch[0] = b
	n, err := t.port.Write(t.scratch[:])
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotReady
	}
	t.stats.TxBytes++
	return nil
}

// Poll moves at most one byte from the host into toBus (only if toBus has
// room) and up to the burst limit of bytes from toHost to the host. A byte is
// removed from toHost only after it was sent without error.
func (t *Transport) Poll(toBus, toHost *ByteQueue) {
	if !toBus.IsFull() {
		if b, ok := t.ReceiveByte(); ok {
			if t.hostGone {
				t.hostGone = false
				t.consecutiveFailures = 0
				if t.resetCallback != nil {
					t.resetCallback()
				}
			}
			toBus.Insert(b)
		}
	}

	pending := toHost.Count()
	if pending == 0 || !t.ready() {
		return
	}
	if pending > t.maxBurst {
		pending = t.maxBurst
	}
	for ; pending > 0; pending-- {
		b, _ := toHost.Peek()
		if err := t.SendByte(b); err != nil {
			t.sendFailed(toHost)
			return
		}
		toHost.Remove()
		t.consecutiveFailures = 0
	}
}

// sendFailed tracks consecutive failures; after too many the host is treated
// as disconnected and stale bytes are dropped
func (t *Transport) sendFailed(toHost *ByteQueue) {
	t.stats.SendErrors++
	t.consecutiveFailures++
	if t.consecutiveFailures > MaxSendFailures {
		t.consecutiveFailures = 0
		t.hostGone = true
		t.stats.StaleFlushes++
		toHost.Reset()
	}
}

func (t *Transport) ready() bool {
	if r, ok := t.port.(Readier); ok {
		return r.Ready()
	}
	return true
}

// HostGone reports whether the transport gave up on the host
func (t *Transport) HostGone() bool {
	return t.hostGone
}

// Stats returns a copy of the transport counters
func (t *Transport) Stats() TransportStats {
	return t.stats
}

package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// KeyEvent is a keypad press reported by the bridge
type KeyEvent struct {
	Key  byte
	Col  uint8
	Row  uint8
	Time time.Time
}

// HostTransport speaks the keypad protocol from the host side: it sends
// command bytes, waits for acknowledgements and collects key presses.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	// Acks and key presses, split by the read loop
	ackChan chan struct{}
	keyChan chan KeyEvent

	// Bytes that were neither an ack nor a key
	unknown uint32

	writeMutex sync.Mutex
	statsMutex sync.Mutex

	// Stop channel for graceful shutdown
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

var (
	ErrUnknownKey = errors.New("not a keypad key")
	ErrStopped    = errors.New("transport stopped")
)

// NewHostTransport creates a new host-side transport and starts reading
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		ackChan:  make(chan struct{}, 4),
		keyChan:  make(chan KeyEvent, QueueCapacity),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// SendKey asks the bridge to press key on the VMC bus and waits for the ack
func (t *HostTransport) SendKey(key byte, timeout time.Duration) error {
	if !KeypadLayout.Contains(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := t.writeByte(key); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	if err := t.waitForAck(timeout); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return nil
}

// SendService pulses the service line. The bridge does not acknowledge it.
func (t *HostTransport) SendService() error {
	if err := t.writeByte(Service); err != nil {
		return fmt.Errorf("failed to write service: %w", err)
	}
	return nil
}

// Keys delivers key presses read from the bridge
func (t *HostTransport) Keys() <-chan KeyEvent {
	return t.keyChan
}

// Unknown returns how many unrecognised bytes the bridge sent
func (t *HostTransport) Unknown() uint32 {
	t.statsMutex.Lock()
	defer t.statsMutex.Unlock()
	return t.unknown
}

func (t *HostTransport) writeByte(b byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write([]byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("incomplete write: %d/1 bytes", n)
	}
	return nil
}

// waitForAck waits for an ack with timeout
func (t *HostTransport) waitForAck(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.ackChan:
		return nil
	case <-timer.C:
		return fmt.Errorf("ack timeout after %v", timeout)
	case <-t.stopChan:
		return ErrStopped
	}
}

// readLoop continuously reads from the serial port and splits the stream
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)
	defer close(t.keyChan)

	buffer := make([]byte, 64)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		for _, b := range buffer[:n] {
			t.dispatch(b)
		}
		if err != nil {
			// tarm/serial reports a read timeout as io.EOF; only Close ends the loop
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// dispatch routes one byte from the bridge
func (t *HostTransport) dispatch(b byte) {
	if b == Ack {
		select {
		case t.ackChan <- struct{}{}:
		default:
		}
		return
	}

	col, row, ok := KeypadLayout.Locate(b)
	if !ok {
		t.statsMutex.Lock()
		t.unknown++
		t.statsMutex.Unlock()
		return
	}

	ev := KeyEvent{Key: b, Col: col, Row: row, Time: time.Now()}
	select {
	case t.keyChan <- ev:
	default:
		// Nobody is reading; drop oldest
		select {
		case <-t.keyChan:
		default:
		}
		t.keyChan <- ev
	}
}

// Reset discards pending acks, e.g. after a timed out command
func (t *HostTransport) Reset() {
	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
}

// Close stops the transport and closes the serial port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

package protocol

// ByteQueue is a fixed-capacity circular byte buffer.
//
// It has exactly one producer and one consumer. Insert on a full queue is
// rejected and leaves the queue untouched; callers decide whether to drop.
type ByteQueue struct {
	buf   []byte
	read  int
	count int
}

// NewByteQueue creates a ByteQueue holding up to capacity bytes
func NewByteQueue(capacity int) *ByteQueue {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return &ByteQueue{buf: make([]byte, capacity)}
}

// Capacity returns the maximum number of bytes the queue can hold
func (q *ByteQueue) Capacity() int {
	return len(q.buf)
}

// Count returns the number of queued bytes
func (q *ByteQueue) Count() int {
	return q.count
}

// IsEmpty returns true if the queue holds no bytes
func (q *ByteQueue) IsEmpty() bool {
	return q.count == 0
}

// IsFull returns true if another Insert would fail
func (q *ByteQueue) IsFull() bool {
	return q.count == len(q.buf)
}

// Insert appends b to the tail. It returns false without mutating the queue
// if the queue is full.
func (q *ByteQueue) Insert(b byte) bool {
	if q.IsFull() {
		return false
	}
	write := q.read + q.count
	if write >= len(q.buf) {
		write -= len(q.buf)
	}
	q.buf[write] = b
	q.count++
	return true
}

// Remove takes the byte at the head. ok is false if the queue is empty.
func (q *ByteQueue) Remove() (b byte, ok bool) {
	if q.count == 0 {
		return 0, false
	}
	b = q.buf[q.read]
	q.read++
	if q.read == len(q.buf) {
		q.read = 0
	}
	q.count--
	return b, true
}

// Peek returns the byte at the head without removing it
func (q *ByteQueue) Peek() (b byte, ok bool) {
	if q.count == 0 {
		return 0, false
	}
	return q.buf[q.read], true
}

// Write inserts as many bytes of data as fit and returns how many were taken
func (q *ByteQueue) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if !q.Insert(b) {
			break
		}
		written++
	}
	return written
}

// Read removes up to len(data) bytes into data
func (q *ByteQueue) Read(data []byte) int {
	read := 0
	for i := range data {
		b, ok := q.Remove()
		if !ok {
			break
		}
		data[i] = b
		read++
	}
	return read
}

// Reset clears the queue
func (q *ByteQueue) Reset() {
	q.read = 0
	q.count = 0
}

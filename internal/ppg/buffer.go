package ppg

// Buffer is a fixed-capacity FIFO of filtered PPG samples.
// When full, Push overwrites the oldest sample.
// Not safe for concurrent use.
type Buffer struct {
	data  []float64
	head  int // next write position
	count int
}

// NewBuffer returns an empty Buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample if the buffer is full.
// It reports whether a sample was evicted.
func (b *Buffer) Push(v float64) bool {
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
	if b.count == len(b.data) {
		return true
	}
	b.count++
	return false
}

// Len returns the number of samples held.
func (b *Buffer) Len() int { return b.count }

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// CopyTo copies the held samples, oldest first, into dst and returns the
// number copied.
func (b *Buffer) CopyTo(dst []float64) int {
	start := (b.head - b.count + len(b.data)) % len(b.data)
	n := min(len(dst), b.count)
	for i := 0; i < n; i++ {
		dst[i] = b.data[(start+i)%len(b.data)]
	}
	return n
}

// Advance discards the n oldest samples.
func (b *Buffer) Advance(n int) {
	b.count -= min(n, b.count)
}

// Reset discards every sample.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
}

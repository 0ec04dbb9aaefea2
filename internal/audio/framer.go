package audio

// Framer cuts an arbitrary stream of samples into fixed-size blocks.
// It is used by byte-oriented sources (pipes, datagrams, websocket frames)
// whose read sizes do not line up with the block duration.
type Framer struct {
	size    int
	pending []float32
}

// NewFramer creates a framer producing blocks of size samples
func NewFramer(size int) *Framer {
	return &Framer{
		size:    size,
		pending: make([]float32, 0, size),
	}
}

// Write appends samples and calls emit for every completed block.
// Each emitted block is a fresh slice owned by the receiver.
func (f *Framer) Write(samples []float32, emit func(Block)) {
	for len(samples) > 0 {
		room := f.size - len(f.pending)
		n := min(room, len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]

		if len(f.pending) == f.size {
			emit(Block(f.pending).Clone())
			f.pending = f.pending[:0]
		}
	}
}

// Pending returns the number of buffered samples not yet emitted
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Reset discards any partial block
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}

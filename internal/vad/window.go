package vad

import "github.com/skypro1111/voxsql/internal/audio"

// Window holds the most recent samples, capped at a fixed length.
// It is owned by the consumer loop and is not safe for concurrent use.
type Window struct {
	max     int
	samples []float32
}

// NewWindow creates a window holding at most maxSamples samples
func NewWindow(maxSamples int) *Window {
	if maxSamples < 1 {
		maxSamples = 1
	}
	return &Window{
		max:     maxSamples,
		samples: make([]float32, 0, maxSamples*2),
	}
}

// Push appends a block and drops the oldest samples beyond the cap
func (w *Window) Push(block audio.Block) {
	w.samples = append(w.samples, block...)
	if over := len(w.samples) - w.max; over > 0 {
		// Shift in place so the backing array does not grow without bound
		n := copy(w.samples, w.samples[over:])
		w.samples = w.samples[:n]
	}
}

// Samples returns the current window contents.
// The slice is only valid until the next Push.
func (w *Window) Samples() []float32 {
	return w.samples
}

// Len returns the number of samples in the window
func (w *Window) Len() int {
	return len(w.samples)
}

// Cap returns the maximum number of samples the window holds
func (w *Window) Cap() int {
	return w.max
}

// Reset empties the window
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

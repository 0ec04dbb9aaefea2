package vad

// Interval is a run of speech inside a window, in sample offsets
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the interval length in samples
func (i Interval) Len() int {
	return i.End - i.Start
}

// Detector finds speech in a window of samples. A non-empty result means
// the window contains speech. Implementations must not carry speech
// decisions from one call to the next.
type Detector interface {
	Detect(window []float32, threshold float32) ([]Interval, error)
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(window []float32, threshold float32) ([]Interval, error)

// Detect calls f
func (f DetectorFunc) Detect(window []float32, threshold float32) ([]Interval, error) {
	return f(window, threshold)
}

package transcription

import (
	"errors"
	"strings"
)

// ErrLowConfidence is returned when no segment passes the filter
var ErrLowConfidence = errors.New("no segment passed the confidence filter")

// Filter keeps segments whose scores are within bounds
type Filter struct {
	MinAvgLogprob   float64
	MaxNoSpeechProb float64
}

// DefaultFilter returns the bounds used for voice queries
func DefaultFilter() Filter {
	return Filter{
		MinAvgLogprob:   -0.6,
		MaxNoSpeechProb: 0.6,
	}
}

// Accept reports whether a segment is confident enough to keep
func (f Filter) Accept(s Segment) bool {
	return s.AvgLogprob >= f.MinAvgLogprob && s.NoSpeechProb <= f.MaxNoSpeechProb
}

// Apply joins the trimmed text of accepted segments with single spaces.
// It returns ErrLowConfidence when nothing is accepted.
func (f Filter) Apply(segments []Segment) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if !f.Accept(s) {
			continue
		}
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", ErrLowConfidence
	}
	return strings.Join(parts, " "), nil
}

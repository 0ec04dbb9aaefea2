package transcription

import "context"

// Segment is one piece of model output with its confidence scores
type Segment struct {
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Options are the decoding parameters passed with every utterance
type Options struct {
	BeamSize          int
	Temperature       float64
	NoSpeechThreshold float64
	Language          string
}

// DefaultOptions returns greedy-free beam search at temperature 0
func DefaultOptions() Options {
	return Options{
		BeamSize:          5,
		Temperature:       0,
		NoSpeechThreshold: 0.6,
	}
}

// Transcriber turns a mono utterance into segments.
// Implementations do not condition on previous utterances.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)
}

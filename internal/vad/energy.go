package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// EnergyConfig configures the energy detector
type EnergyConfig struct {
	FrameSize      int     // Samples per analysis frame (512 = 32ms at 16kHz)
	ReferenceLevel float64 // Frame RMS that maps to probability 1.0
	MinSpeech      int     // Intervals shorter than this many samples are dropped
	MinSilence     int     // Gaps shorter than this many samples are merged
}

// DefaultEnergyConfig returns settings for 16kHz input
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{
		FrameSize:      512,
		ReferenceLevel: 0.1,
		MinSpeech:      4000, // 250ms
		MinSilence:     1600, // 100ms
	}
}

// EnergyDetector is a pure-Go detector based on frame RMS energy
type EnergyDetector struct {
	cfg EnergyConfig

	// Statistics
	totalCalls      uint64
	speechCalls     uint64
	lastProbability float32
	lastProcessed   time.Time
	lastLatency     time.Duration

	mu sync.RWMutex
}

// DetectorStats represents energy detector statistics
type DetectorStats struct {
	TotalCalls       uint64        `json:"total_calls"`
	SpeechCalls      uint64        `json:"speech_calls"`
	SpeechPercentage float64       `json:"speech_percentage"`
	LastProbability  float32       `json:"last_probability"`
	LastProcessed    time.Time     `json:"last_processed"`
	LastLatency      time.Duration `json:"last_latency"`
}

// NewEnergyDetector creates a new energy detector
func NewEnergyDetector(cfg EnergyConfig) (*EnergyDetector, error) {
	if cfg.FrameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", cfg.FrameSize)
	}
	if cfg.ReferenceLevel <= 0 || cfg.ReferenceLevel > 1 {
		return nil, fmt.Errorf("reference level must be in (0, 1], got %f", cfg.ReferenceLevel)
	}
	if cfg.MinSpeech < 0 || cfg.MinSilence < 0 {
		return nil, fmt.Errorf("min speech and min silence must not be negative")
	}

	return &EnergyDetector{cfg: cfg}, nil
}

// Detect returns the speech intervals found in window
func (d *EnergyDetector) Detect(window []float32, threshold float32) ([]Interval, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", threshold)
	}
	start := time.Now()

	var (
		intervals []Interval
		current   *Interval
		peak      float32
	)

	for off := 0; off < len(window); off += d.cfg.FrameSize {
		end := off + d.cfg.FrameSize
		if end > len(window) {
			end = len(window)
		}

		prob := d.probability(window[off:end])
		if prob > peak {
			peak = prob
		}

		if prob >= threshold {
			if current == nil {
				current = &Interval{Start: off, End: end}
			} else {
				current.End = end
			}
			continue
		}

		if current != nil {
			intervals = append(intervals, *current)
			current = nil
		}
	}
	if current != nil {
		intervals = append(intervals, *current)
	}

	intervals = d.filter(merge(intervals, d.cfg.MinSilence))

	d.mu.Lock()
	d.totalCalls++
	if len(intervals) > 0 {
		d.speechCalls++
	}
	d.lastProbability = peak
	d.lastProcessed = time.Now()
	d.lastLatency = time.Since(start)
	d.mu.Unlock()

	return intervals, nil
}

// probability maps frame RMS linearly onto [0, 1]
func (d *EnergyDetector) probability(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}

	var energy float64
	for _, s := range frame {
		energy += float64(s) * float64(s)
	}
	level := math.Sqrt(energy/float64(len(frame))) / d.cfg.ReferenceLevel
	if level > 1 {
		level = 1
	}
	return float32(level)
}

func (d *EnergyDetector) filter(intervals []Interval) []Interval {
	out := intervals[:0]
	for _, iv := range intervals {
		if iv.Len() >= d.cfg.MinSpeech {
			out = append(out, iv)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// merge joins intervals separated by fewer than minGap samples
func merge(intervals []Interval, minGap int) []Interval {
	if len(intervals) < 2 {
		return intervals
	}

	out := []Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &out[len(out)-1]
		if iv.Start-last.End < minGap {
			last.End = iv.End
			continue
		}
		out = append(out, iv)
	}
	return out
}

// GetStats returns current detector statistics
func (d *EnergyDetector) GetStats() DetectorStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	percentage := float64(0)
	if d.totalCalls > 0 {
		percentage = float64(d.speechCalls) / float64(d.totalCalls) * 100
	}

	return DetectorStats{
		TotalCalls:       d.totalCalls,
		SpeechCalls:      d.speechCalls,
		SpeechPercentage: percentage,
		LastProbability:  d.lastProbability,
		LastProcessed:    d.lastProcessed,
		LastLatency:      d.lastLatency,
	}
}

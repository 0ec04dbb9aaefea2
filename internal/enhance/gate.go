package enhance

import (
	"fmt"
	"math"

	"github.com/skypro1111/voxsql/internal/audio"
)

// NoiseGateConfig tunes the noise gate
type NoiseGateConfig struct {
	// HighPass is the DC-blocker pole (0.995 keeps content above ~13 Hz at 16 kHz)
	HighPass float64
	// OpenRatio is how far above the noise floor a block must be to pass unattenuated
	OpenRatio float64
	// Attenuation is the gain applied to blocks judged to be noise
	Attenuation float64
	// FloorRise is the per-block relative rise of the floor estimate
	FloorRise float64
	// GainSmoothing is the per-sample step toward the target gain
	GainSmoothing float64
}

// DefaultNoiseGateConfig returns settings suited to 16 kHz speech
func DefaultNoiseGateConfig() NoiseGateConfig {
	return NoiseGateConfig{
		HighPass:      0.995,
		OpenRatio:     2.0,
		Attenuation:   0.1,
		FloorRise:     0.02,
		GainSmoothing: 0.005,
	}
}

// NoiseGate is a lightweight denoiser: a DC-blocking high-pass filter followed
// by an adaptive gate that attenuates blocks close to the tracked noise floor.
// Filter history, floor estimate and gain carry across blocks.
type NoiseGate struct {
	cfg NoiseGateConfig

	prevIn  float64
	prevOut float64
	floor   float64
	gain    float64
	primed  bool
}

// NewNoiseGate creates a noise gate session
func NewNoiseGate(cfg NoiseGateConfig) (*NoiseGate, error) {
	if cfg.HighPass < 0 || cfg.HighPass >= 1 {
		return nil, fmt.Errorf("high_pass must be in [0, 1), got %f", cfg.HighPass)
	}
	if cfg.OpenRatio < 1 {
		return nil, fmt.Errorf("open_ratio must be at least 1, got %f", cfg.OpenRatio)
	}
	if cfg.Attenuation < 0 || cfg.Attenuation > 1 {
		return nil, fmt.Errorf("attenuation must be in [0, 1], got %f", cfg.Attenuation)
	}
	if cfg.GainSmoothing <= 0 || cfg.GainSmoothing > 1 {
		return nil, fmt.Errorf("gain_smoothing must be in (0, 1], got %f", cfg.GainSmoothing)
	}

	return &NoiseGate{cfg: cfg, gain: 1}, nil
}

// Enhance filters one block
func (g *NoiseGate) Enhance(block audio.Block) (audio.Block, error) {
	out := make(audio.Block, len(block))
	if len(block) == 0 {
		return out, nil
	}

	// DC blocker: y[n] = x[n] - x[n-1] + R*y[n-1]
	var energy float64
	for i, s := range block {
		x := float64(s)
		y := x - g.prevIn + g.cfg.HighPass*g.prevOut
		g.prevIn = x
		g.prevOut = y
		out[i] = float32(y)
		energy += y * y
	}
	rms := math.Sqrt(energy / float64(len(block)))

	// Track the noise floor: follow drops immediately, rise slowly
	switch {
	case !g.primed:
		g.floor = rms
		g.primed = true
	case rms < g.floor:
		g.floor = rms
	default:
		g.floor *= 1 + g.cfg.FloorRise
	}

	target := 1.0
	if rms < g.floor*g.cfg.OpenRatio {
		target = g.cfg.Attenuation
	}

	for i := range out {
		g.gain += (target - g.gain) * g.cfg.GainSmoothing
		out[i] = float32(float64(out[i]) * g.gain)
	}

	return out, nil
}

// Floor returns the current noise floor estimate (RMS)
func (g *NoiseGate) Floor() float64 {
	return g.floor
}

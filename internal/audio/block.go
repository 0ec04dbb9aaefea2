package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Block is an ordered run of mono samples in the range [-1, 1].
// A block is treated as immutable once it has been handed to the queue.
type Block []float32

// Format describes the fixed shape of the blocks produced by a source
type Format struct {
	SampleRate    int           // Samples per second (16000 Hz by default)
	BlockDuration time.Duration // Duration of one block (30ms by default)
}

// BlockSize returns the number of samples per block
func (f Format) BlockSize() int {
	return f.Samples(f.BlockDuration)
}

// Samples converts a duration to a sample count at this format's rate
func (f Format) Samples(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// Validate checks that the format produces non-empty blocks
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.BlockSize() <= 0 {
		return fmt.Errorf("block duration %v yields no samples at %d Hz", f.BlockDuration, f.SampleRate)
	}
	return nil
}

// Clone returns an independent copy of the block
func (b Block) Clone() Block {
	out := make(Block, len(b))
	copy(out, b)
	return out
}

// Peak returns the maximum absolute sample value (the "mic level")
func (b Block) Peak() float64 {
	var peak float64
	for _, s := range b {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}

// RMS returns the root-mean-square energy of the block
func (b Block) RMS() float64 {
	if len(b) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b)))
}

// Duration returns the playback duration of n samples at the given rate
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}

// FromPCM16 converts little-endian 16-bit PCM bytes to float samples.
// A trailing odd byte is ignored.
func FromPCM16(data []byte) Block {
	out := make(Block, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// ToPCM16 converts float samples to 16-bit integers, clipping at full scale
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(math.Round(v))
	}
	return out
}

// FromInt16 converts 16-bit integer samples to float samples
func FromInt16(samples []int16) Block {
	out := make(Block, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / 32768
	}
	return out
}

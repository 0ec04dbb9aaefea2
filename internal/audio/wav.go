package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeader is the canonical 44-byte header of a mono PCM-16 WAV file
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// WAVInfo describes a decoded WAV stream
type WAVInfo struct {
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	Duration      float64 `json:"duration_seconds"`
	NumSamples    int     `json:"num_samples"`
}

// EncodeWAV encodes float samples as a mono 16-bit PCM WAV file
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm := ToPCM16(samples)
	dataSize := uint32(len(pcm) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV reads a mono 16-bit PCM WAV stream. Chunks other than "fmt "
// and "data" (LIST, fact, ...) are skipped.
func DecodeWAV(r io.Reader) (Block, *WAVInfo, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var info *WAVInfo
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, nil, fmt.Errorf("invalid WAV file: missing data chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			if f := binary.LittleEndian.Uint16(body[0:2]); f != 1 {
				return nil, nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", f)
			}
			info = &WAVInfo{
				Channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if info.BitsPerSample != 16 {
				return nil, nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", info.BitsPerSample)
			}
			if info.Channels != 1 {
				return nil, nil, fmt.Errorf("unsupported channel count: %d (only mono is supported)", info.Channels)
			}

		case "data":
			if info == nil {
				return nil, nil, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			data := make([]byte, size)
			n, err := io.ReadFull(r, data)
			if err != nil && err != io.ErrUnexpectedEOF {
				return nil, nil, fmt.Errorf("failed to read audio samples: %w", err)
			}
			samples := FromPCM16(data[:n])
			info.NumSamples = len(samples)
			info.Duration = float64(len(samples)) / float64(info.SampleRate)
			return samples, info, nil

		default:
			// Chunks are word aligned
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, nil, fmt.Errorf("failed to skip %q chunk: %w", id, err)
			}
		}
	}
}

package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/skypro1111/voxsql/internal/audio"
)

// FileConfig configures WAV replay
type FileConfig struct {
	Path     string
	Realtime bool          // sleep one block duration per block
	Tail     time.Duration // silence appended after the file so a final utterance can end
}

// File replays a mono 16-bit WAV file
type File struct {
	config FileConfig
	format audio.Format
	logger *slog.Logger
}

// NewFile creates a WAV replay source
func NewFile(config FileConfig, format audio.Format, logger *slog.Logger) (*File, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}
	return &File{config: config, format: format, logger: logger}, nil
}

// Name implements Source
func (s *File) Name() string { return "file" }

// Run decodes the file and delivers it block by block. The last partial
// block is padded with silence.
func (s *File) Run(ctx context.Context, cb Callback) error {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	samples, info, err := audio.DecodeWAV(f)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.config.Path, err)
	}

	if info.SampleRate != s.format.SampleRate {
		return fmt.Errorf("sample rate mismatch: file is %d Hz, pipeline expects %d Hz",
			info.SampleRate, s.format.SampleRate)
	}

	size := s.format.BlockSize()
	tail := s.format.Samples(s.config.Tail)
	total := len(samples) + tail
	if rem := total % size; rem != 0 {
		total += size - rem
	}

	padded := make(audio.Block, total)
	copy(padded, samples)

	s.logger.Info("Replaying audio file",
		slog.String("path", s.config.Path),
		slog.Float64("duration", info.Duration),
		slog.Int("blocks", total/size),
		slog.Bool("realtime", s.config.Realtime),
	)

	var ticker *time.Ticker
	if s.config.Realtime {
		ticker = time.NewTicker(s.format.BlockDuration)
		defer ticker.Stop()
	}

	for off := 0; off < total; off += size {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		cb(padded[off : off+size].Clone())
	}

	return nil
}

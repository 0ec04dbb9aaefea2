package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/skypro1111/voxsql/internal/audio"
)

const readChunkSize = 4096

// Reader reads raw mono little-endian PCM16 at the pipeline sample rate
type Reader struct {
	r      io.Reader
	format audio.Format
	logger *slog.Logger
}

// NewReader creates a source over r
func NewReader(r io.Reader, format audio.Format, logger *slog.Logger) (*Reader, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}
	return &Reader{r: r, format: format, logger: logger}, nil
}

// Name implements Source
func (s *Reader) Name() string { return "reader" }

// Run reads until EOF. A partial trailing block is dropped.
func (s *Reader) Run(ctx context.Context, cb Callback) error {
	framer := audio.NewFramer(s.format.BlockSize())
	decoder := &pcmDecoder{}
	buf := make([]byte, readChunkSize)

	var blocks uint64
	emit := func(b audio.Block) {
		blocks++
		cb(b)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := s.r.Read(buf)
		if n > 0 {
			framer.Write(decoder.decode(buf[:n]), emit)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Reader source exhausted",
					slog.Uint64("blocks", blocks),
					slog.Int("dropped_samples", framer.Pending()),
				)
				return nil
			}
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}
}

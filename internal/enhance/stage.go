package enhance

import (
	"errors"
	"fmt"

	"github.com/skypro1111/voxsql/internal/audio"
)

// ErrLengthMismatch is returned when a session changes the block length
var ErrLengthMismatch = errors.New("enhanced block length differs from input")

// Session is a stateful denoiser bound to one capture stream.
// Blocks must be passed in capture order.
type Session interface {
	Enhance(block audio.Block) (audio.Block, error)
}

// Stage wraps a denoiser session for the processing loop
type Stage struct {
	session Session
	blocks  uint64
}

// NewStage creates an enhancement stage over session
func NewStage(session Session) *Stage {
	return &Stage{session: session}
}

// Enhance denoises one block. Any error is fatal for the pipeline:
// voice activity detection depends on this output, so the stage is never
// skipped.
func (s *Stage) Enhance(block audio.Block) (audio.Block, error) {
	out, err := s.session.Enhance(block)
	if err != nil {
		return nil, fmt.Errorf("denoiser failed on block %d: %w", s.blocks, err)
	}
	if len(out) != len(block) {
		return nil, fmt.Errorf("block %d: got %d samples for %d: %w", s.blocks, len(out), len(block), ErrLengthMismatch)
	}
	s.blocks++
	return out, nil
}

// Blocks returns the number of blocks enhanced so far
func (s *Stage) Blocks() uint64 {
	return s.blocks
}

// Identity is a session that returns a copy of its input.
// It is meant for clean capture chains where denoising is done upstream.
type Identity struct{}

// Enhance returns a copy of block
func (Identity) Enhance(block audio.Block) (audio.Block, error) {
	return block.Clone(), nil
}

package source

import (
	"context"

	"github.com/skypro1111/voxsql/internal/audio"
)

// Callback receives one block. It runs on the source goroutine and must
// return quickly.
type Callback func(audio.Block)

// Source produces audio blocks until the input ends or ctx is cancelled
type Source interface {
	// Name identifies the adapter in logs and metrics
	Name() string
	// Run delivers blocks to cb. It returns nil when the input is exhausted
	// or ctx is cancelled.
	Run(ctx context.Context, cb Callback) error
}

// pcmDecoder turns a byte stream into samples, carrying an odd trailing
// byte over to the next write
type pcmDecoder struct {
	carry []byte
}

func (d *pcmDecoder) decode(data []byte) audio.Block {
	if len(d.carry) > 0 {
		data = append(d.carry, data...)
		d.carry = nil
	}
	if len(data)%2 != 0 {
		d.carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	return audio.FromPCM16(data)
}

// Package source provides the audio capture adapters. Each adapter delivers
// fixed-size blocks to a Callback from its own goroutine; the callback must
// not block.
//
// Adapters:
//   - Reader: raw little-endian PCM16 from any io.Reader (stdin fed by arecord or sox)
//   - File: WAV replay, optionally paced at the block rate
//   - UDP: datagrams in the internal/protocol framing
//   - WebSocket: binary PCM16 messages on an HTTP endpoint
package source

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame constants
const (
	// Frame types
	FrameTypeHello = 0x01
	FrameTypeAudio = 0x02

	// Sample encodings
	EncodingPCM16LE = 0x01

	// Frame structure sizes
	HeaderSize             = 8  // 1 + 2 + 4 + 1 bytes
	HelloPayloadSize       = 36 // 32 + 4 bytes
	AudioPayloadHeaderSize = 4  // Sequence number (4 bytes)
	DeviceNameSize         = 32

	// MaxFrameSize is the largest frame the 16-bit length field can describe
	MaxFrameSize = 0xFFFF
)

// Header represents the 8-byte frame header
// Layout: [FrameType:1][FrameLen:2][StreamID:4][Encoding:1]
type Header struct {
	FrameType uint8  // 0x01=Hello, 0x02=Audio
	FrameLen  uint16 // Total frame size (header + payload)
	StreamID  uint32 // Sender-chosen stream identifier
	Encoding  uint8  // 0x01=PCM16LE
}

// HelloPayload announces a capture device
// Layout: [DeviceName:32][SampleRate:4]
type HelloPayload struct {
	DeviceName [DeviceNameSize]byte // NUL-padded
	SampleRate uint32
}

// AudioPayload represents the audio frame payload
// Layout: [Sequence:4][PCM:N]
type AudioPayload struct {
	Sequence uint32
	PCM      []byte // little-endian 16-bit samples
}

// Frame is a fully parsed frame
type Frame struct {
	Header *Header
	Hello  *HelloPayload // Only set for hello frames
	Audio  *AudioPayload // Only set for audio frames
}

// ParseHeader parses the 8-byte frame header
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	return &Header{
		FrameType: data[0],
		FrameLen:  binary.BigEndian.Uint16(data[1:3]),
		StreamID:  binary.BigEndian.Uint32(data[3:7]),
		Encoding:  data[7],
	}, nil
}

// ParseHelloPayload parses the 36-byte hello payload
func ParseHelloPayload(data []byte) (*HelloPayload, error) {
	if len(data) < HelloPayloadSize {
		return nil, fmt.Errorf("hello payload too short: expected %d bytes, got %d",
			HelloPayloadSize, len(data))
	}

	payload := &HelloPayload{}
	copy(payload.DeviceName[:], data[:DeviceNameSize])
	payload.SampleRate = binary.BigEndian.Uint32(data[DeviceNameSize:HelloPayloadSize])

	return payload, nil
}

// ParseAudioPayload parses the audio payload (4-byte sequence + samples)
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("audio payload too short: expected at least %d bytes, got %d",
			AudioPayloadHeaderSize, len(data))
	}

	if (len(data)-AudioPayloadHeaderSize)%2 != 0 {
		return nil, fmt.Errorf("audio payload has odd sample byte count %d", len(data)-AudioPayloadHeaderSize)
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	// Copy samples, the receive buffer is reused
	if len(data) > AudioPayloadHeaderSize {
		payload.PCM = make([]byte, len(data)-AudioPayloadHeaderSize)
		copy(payload.PCM, data[AudioPayloadHeaderSize:])
	}

	return payload, nil
}

// ParseFrame parses a complete frame (header + payload)
func ParseFrame(data []byte) (*Frame, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if int(header.FrameLen) != len(data) {
		return nil, fmt.Errorf("frame length mismatch: header says %d bytes, got %d bytes",
			header.FrameLen, len(data))
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	frame := &Frame{Header: header}
	payload := data[HeaderSize:]

	switch header.FrameType {
	case FrameTypeHello:
		hello, err := ParseHelloPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hello payload: %w", err)
		}
		frame.Hello = hello

	case FrameTypeAudio:
		audio, err := ParseAudioPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audio payload: %w", err)
		}
		frame.Audio = audio

	default:
		return nil, fmt.Errorf("unknown frame type: 0x%02x", header.FrameType)
	}

	return frame, nil
}

// ValidateHeader validates the header fields
func ValidateHeader(header *Header) error {
	if !IsValidFrameType(header.FrameType) {
		return fmt.Errorf("invalid frame type: 0x%02x", header.FrameType)
	}

	if header.Encoding != EncodingPCM16LE {
		return fmt.Errorf("unsupported encoding: 0x%02x", header.Encoding)
	}

	if header.FrameLen < HeaderSize {
		return fmt.Errorf("frame length too small: %d (minimum %d)", header.FrameLen, HeaderSize)
	}

	payloadSize := int(header.FrameLen) - HeaderSize
	switch header.FrameType {
	case FrameTypeHello:
		if payloadSize != HelloPayloadSize {
			return fmt.Errorf("hello frame payload size mismatch: expected %d, got %d",
				HelloPayloadSize, payloadSize)
		}
	case FrameTypeAudio:
		if payloadSize < AudioPayloadHeaderSize {
			return fmt.Errorf("audio frame payload too small: expected at least %d, got %d",
				AudioPayloadHeaderSize, payloadSize)
		}
	}

	return nil
}

// IsValidFrameType checks if the frame type is known
func IsValidFrameType(ftype uint8) bool {
	return ftype == FrameTypeHello || ftype == FrameTypeAudio
}

// EncodeHello builds a hello frame. Device names longer than 32 bytes are truncated.
func EncodeHello(streamID uint32, device string, sampleRate uint32) []byte {
	buf := make([]byte, HeaderSize+HelloPayloadSize)
	putHeader(buf, FrameTypeHello, streamID)
	copy(buf[HeaderSize:HeaderSize+DeviceNameSize], device)
	binary.BigEndian.PutUint32(buf[HeaderSize+DeviceNameSize:], sampleRate)
	return buf
}

// EncodeAudio builds an audio frame around little-endian PCM16 bytes
func EncodeAudio(streamID, sequence uint32, pcm []byte) ([]byte, error) {
	size := HeaderSize + AudioPayloadHeaderSize + len(pcm)
	if size > MaxFrameSize {
		return nil, fmt.Errorf("audio frame too large: %d bytes (maximum %d)", size, MaxFrameSize)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd PCM16 byte count %d", len(pcm))
	}

	buf := make([]byte, size)
	putHeader(buf, FrameTypeAudio, streamID)
	binary.BigEndian.PutUint32(buf[HeaderSize:], sequence)
	copy(buf[HeaderSize+AudioPayloadHeaderSize:], pcm)
	return buf, nil
}

func putHeader(buf []byte, ftype uint8, streamID uint32) {
	buf[0] = ftype
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(buf)))
	binary.BigEndian.PutUint32(buf[3:7], streamID)
	buf[7] = EncodingPCM16LE
}

// ExtractString extracts a NUL-terminated string from a fixed-size byte array
func ExtractString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// GetDeviceName extracts the device name as a string
func (h *HelloPayload) GetDeviceName() string {
	return ExtractString(h.DeviceName[:])
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	var frameType string

	switch h.FrameType {
	case FrameTypeHello:
		frameType = "Hello"
	case FrameTypeAudio:
		frameType = "Audio"
	default:
		frameType = fmt.Sprintf("Unknown(0x%02x)", h.FrameType)
	}

	return fmt.Sprintf("Header{Type:%s, Len:%d, StreamID:%d, Encoding:0x%02x}",
		frameType, h.FrameLen, h.StreamID, h.Encoding)
}

// String returns a human-readable representation of the hello payload
func (h *HelloPayload) String() string {
	return fmt.Sprintf("HelloPayload{DeviceName:%q, SampleRate:%d}", h.GetDeviceName(), h.SampleRate)
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, PCMLen:%d}", a.Sequence, len(a.PCM))
}

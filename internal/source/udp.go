package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/skypro1111/voxsql/internal/audio"
	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/protocol"
)

// UDPConfig configures the datagram listener
type UDPConfig struct {
	BindAddress string
	Port        int
	BufferSize  int
}

// UDP receives framed PCM16 datagrams. Only one stream is followed at a
// time: the first stream to say hello (or send audio) owns the pipeline
// until it says hello again from a new stream ID.
type UDP struct {
	config  UDPConfig
	format  audio.Format
	logger  *slog.Logger
	metrics *metrics.Metrics

	conn *net.UDPConn

	// Frame processing
	frames chan []byte

	// Statistics
	framesReceived  uint64
	framesProcessed uint64
	framesDropped   uint64
	parseErrors     uint64
	lostFrames      uint64
	activeStream    uint32
	activeDevice    string
	mu              sync.RWMutex
}

// UDPStats represents listener statistics
type UDPStats struct {
	FramesReceived  uint64 `json:"frames_received"`
	FramesProcessed uint64 `json:"frames_processed"`
	FramesDropped   uint64 `json:"frames_dropped"`
	ParseErrors     uint64 `json:"parse_errors"`
	LostFrames      uint64 `json:"lost_frames"`
	ActiveStream    uint32 `json:"active_stream"`
	ActiveDevice    string `json:"active_device,omitempty"`
}

// NewUDP creates a UDP source
func NewUDP(config UDPConfig, format audio.Format, logger *slog.Logger, m *metrics.Metrics) (*UDP, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = protocol.MaxFrameSize
	}

	return &UDP{
		config:  config,
		format:  format,
		logger:  logger,
		metrics: m,
		frames:  make(chan []byte, 1000),
	}, nil
}

// Name implements Source
func (s *UDP) Name() string { return "udp" }

// Listen binds the socket. Run calls it when it has not been called yet.
func (s *UDP) Listen() error {
	if s.conn != nil {
		return nil
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	if err := conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.conn = conn
	return nil
}

// LocalAddr returns the bound address, nil before Listen
func (s *UDP) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run receives frames until ctx is cancelled
func (s *UDP) Run(ctx context.Context, cb Callback) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.logger.Info("UDP source started",
		slog.String("address", s.conn.LocalAddr().String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.process(cb)
	}()

	s.receiveLoop(ctx)

	// Closing the channel lets the processor drain what was queued
	close(s.frames)
	wg.Wait()

	if err := s.conn.Close(); err != nil {
		s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
	}

	stats := s.GetStats()
	s.logger.Info("UDP source stopped",
		slog.Uint64("frames_received", stats.FramesReceived),
		slog.Uint64("frames_processed", stats.FramesProcessed),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("lost_frames", stats.LostFrames),
	)

	return nil
}

// receiveLoop reads datagrams and hands them to the processor
func (s *UDP) receiveLoop(ctx context.Context) {
	buffer := make([]byte, s.config.BufferSize)

	for {
		if ctx.Err() != nil {
			return
		}

		// Periodic deadline so cancellation is noticed
		if err := s.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			return
		}

		n, remote, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to read UDP datagram", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.framesReceived++
		s.mu.Unlock()
		s.metrics.RecordFrameReceived(s.Name())

		// The read buffer is reused
		data := make([]byte, n)
		copy(data, buffer[:n])

		select {
		case s.frames <- data:
		default:
			s.mu.Lock()
			s.framesDropped++
			s.mu.Unlock()
			s.logger.Warn("Frame processing queue full, dropping frame",
				slog.String("remote_addr", remote.String()),
				slog.Int("frame_size", n),
			)
		}
	}
}

// process parses frames in arrival order and feeds the framer
func (s *UDP) process(cb Callback) {
	framer := audio.NewFramer(s.format.BlockSize())

	var (
		haveStream bool
		lastSeq    uint32
		haveSeq    bool
	)

	for data := range s.frames {
		frame, err := protocol.ParseFrame(data)
		if err != nil {
			s.mu.Lock()
			s.parseErrors++
			s.mu.Unlock()
			s.metrics.RecordParseError(s.Name())
			s.logger.Debug("Failed to parse frame",
				slog.Int("frame_size", len(data)),
				slog.String("error", err.Error()),
			)
			continue
		}

		id := frame.Header.StreamID

		switch frame.Header.FrameType {
		case protocol.FrameTypeHello:
			if int(frame.Hello.SampleRate) != s.format.SampleRate {
				s.logger.Warn("Ignoring stream with mismatched sample rate",
					slog.Uint64("stream_id", uint64(id)),
					slog.Int("sample_rate", int(frame.Hello.SampleRate)),
					slog.Int("expected", s.format.SampleRate),
				)
				continue
			}

			s.mu.Lock()
			changed := !haveStream || s.activeStream != id
			s.activeStream = id
			s.activeDevice = frame.Hello.GetDeviceName()
			s.mu.Unlock()

			if changed {
				haveStream = true
				haveSeq = false
				framer.Reset()
			}

			s.logger.Info("Audio stream announced",
				slog.Uint64("stream_id", uint64(id)),
				slog.String("device", frame.Hello.GetDeviceName()),
			)

		case protocol.FrameTypeAudio:
			if !haveStream {
				haveStream = true
				s.mu.Lock()
				s.activeStream = id
				s.mu.Unlock()
			}

			s.mu.RLock()
			active := s.activeStream
			s.mu.RUnlock()
			if id != active {
				s.logger.Debug("Ignoring audio from inactive stream",
					slog.Uint64("stream_id", uint64(id)),
					slog.Uint64("active_stream", uint64(active)),
				)
				continue
			}

			seq := frame.Audio.Sequence
			if haveSeq {
				if seq <= lastSeq {
					s.logger.Debug("Dropping late frame",
						slog.Uint64("sequence", uint64(seq)),
						slog.Uint64("last_sequence", uint64(lastSeq)),
					)
					continue
				}
				if gap := seq - lastSeq - 1; gap > 0 {
					s.mu.Lock()
					s.lostFrames += uint64(gap)
					s.mu.Unlock()
				}
			}
			lastSeq = seq
			haveSeq = true

			framer.Write(audio.FromPCM16(frame.Audio.PCM), cb)

			s.mu.Lock()
			s.framesProcessed++
			s.mu.Unlock()
		}
	}
}

// GetStats returns current listener statistics
func (s *UDP) GetStats() UDPStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return UDPStats{
		FramesReceived:  s.framesReceived,
		FramesProcessed: s.framesProcessed,
		FramesDropped:   s.framesDropped,
		ParseErrors:     s.parseErrors,
		LostFrames:      s.lostFrames,
		ActiveStream:    s.activeStream,
		ActiveDevice:    s.activeDevice,
	}
}

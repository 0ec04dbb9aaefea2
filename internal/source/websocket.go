package source

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/voxsql/internal/audio"
	"github.com/skypro1111/voxsql/internal/metrics"
)

const (
	wsMaxMessageBytes = 1 << 20
	wsWriteTimeout    = 2 * time.Second
)

// WebSocket accepts binary PCM16LE messages from one client at a time.
// It is an http.Handler and is mounted on the API server; Run only binds
// the callback and waits for ctx.
type WebSocket struct {
	format  audio.Format
	logger  *slog.Logger
	metrics *metrics.Metrics

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	cb    Callback
	ctx   context.Context
	ready chan struct{}

	busy     atomic.Bool
	messages atomic.Uint64
	clients  atomic.Uint64
}

// NewWebSocket creates a websocket source
func NewWebSocket(format audio.Format, logger *slog.Logger, m *metrics.Metrics) *WebSocket {
	return &WebSocket{
		format:  format,
		logger:  logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize: 4096,
		},
		ready: make(chan struct{}),
	}
}

// Name implements Source
func (s *WebSocket) Name() string { return "websocket" }

// Run accepts clients until ctx is cancelled
func (s *WebSocket) Run(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	s.cb = cb
	s.ctx = ctx
	close(s.ready)
	s.mu.Unlock()

	s.logger.Info("WebSocket source ready")

	<-ctx.Done()

	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()

	s.logger.Info("WebSocket source stopped",
		slog.Uint64("clients", s.clients.Load()),
		slog.Uint64("messages", s.messages.Load()),
	)
	return nil
}

// Ready is closed once Run has bound a callback
func (s *WebSocket) Ready() <-chan struct{} {
	return s.ready
}

// ServeHTTP upgrades the connection and streams its audio into the pipeline
func (s *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cb, ctx := s.cb, s.ctx
	s.mu.RUnlock()

	if cb == nil {
		http.Error(w, "audio source not running", http.StatusServiceUnavailable)
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		http.Error(w, "another client is already streaming", http.StatusConflict)
		return
	}
	defer s.busy.Store(false)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessageBytes)
	s.clients.Add(1)

	s.logger.Info("Audio client connected", slog.String("remote_addr", r.RemoteAddr))

	// Unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteTimeout))
		_ = conn.Close()
	})
	defer stop()

	framer := audio.NewFramer(s.format.BlockSize())
	decoder := &pcmDecoder{}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				s.logger.Info("Audio client disconnected", slog.String("remote_addr", r.RemoteAddr))
			} else {
				s.logger.Warn("Audio client read failed",
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		s.metrics.RecordFrameReceived(s.Name())

		if messageType != websocket.BinaryMessage {
			s.metrics.RecordParseError(s.Name())
			s.logger.Debug("Ignoring non-binary message", slog.Int("type", messageType))
			continue
		}

		s.messages.Add(1)
		framer.Write(decoder.decode(data), cb)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/voxsql/internal/audio"
	"github.com/skypro1111/voxsql/internal/dispatch"
	"github.com/skypro1111/voxsql/internal/enhance"
	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/segment"
	"github.com/skypro1111/voxsql/internal/transcription"
	"github.com/skypro1111/voxsql/internal/vad"
)

// Config holds the pipeline parameters
type Config struct {
	Format        audio.Format
	QueueSize     int
	WindowSamples int
	Threshold     float32
	Segmentation  segment.Config
	Options       transcription.Options
	Filter        transcription.Filter
	ShowLevel     bool // forward block peaks to a LevelReporter
}

// Dispatcher receives accepted transcripts
type Dispatcher interface {
	Dispatch(ctx context.Context, id, transcript string) dispatch.Outcome
}

// Components are the collaborators the pipeline drives
type Components struct {
	Denoiser    enhance.Session
	Detector    vad.Detector
	Transcriber transcription.Transcriber
	Dispatcher  Dispatcher
	Reporter    dispatch.Reporter
}

// Pipeline is the segmentation and dispatch loop for one capture stream
type Pipeline struct {
	config Config

	queue       *audio.Queue
	stage       *enhance.Stage
	window      *vad.Window
	detector    vad.Detector
	machine     *segment.Machine
	transcriber transcription.Transcriber
	dispatcher  Dispatcher
	reporter    dispatch.Reporter
	levels      dispatch.LevelReporter
	floor       interface{ Floor() float64 }

	logger  *slog.Logger
	metrics *metrics.Metrics

	// Statistics, written by the consumer only
	stats Stats
	mu    sync.RWMutex
}

// Stats is a snapshot of pipeline activity
type Stats struct {
	State               string           `json:"state"`
	StartTime           time.Time        `json:"start_time"`
	BlocksProcessed     uint64           `json:"blocks_processed"`
	SpeechBlocks        uint64           `json:"speech_blocks"`
	VADErrors           uint64           `json:"vad_errors"`
	BufferedSamples     int              `json:"buffered_samples"`
	UtterancesFlushed   uint64           `json:"utterances_flushed"`
	UtterancesDiscarded uint64           `json:"utterances_discarded"`
	LowConfidence       uint64           `json:"low_confidence"`
	TranscriptionErrors uint64           `json:"transcription_errors"`
	Dispatched          uint64           `json:"dispatched"`
	Panics              uint64           `json:"panics"`
	NoiseFloor          float64          `json:"noise_floor,omitempty"`
	LastTranscript      string           `json:"last_transcript,omitempty"`
	LastUtteranceAt     time.Time        `json:"last_utterance_at,omitempty"`
	Queue               audio.QueueStats `json:"queue"`
}

// New creates a pipeline. Reporter may be nil.
func New(config Config, c Components, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio format: %w", err)
	}

	if config.WindowSamples <= 0 {
		return nil, fmt.Errorf("window samples must be positive, got %d", config.WindowSamples)
	}

	if c.Denoiser == nil || c.Detector == nil || c.Transcriber == nil || c.Dispatcher == nil {
		return nil, fmt.Errorf("denoiser, detector, transcriber and dispatcher are required")
	}

	machine, err := segment.NewMachine(config.Segmentation)
	if err != nil {
		return nil, fmt.Errorf("invalid segmentation config: %w", err)
	}

	reporter := c.Reporter
	if reporter == nil {
		reporter = dispatch.NopReporter{}
	}

	p := &Pipeline{
		config:      config,
		queue:       audio.NewQueue(config.QueueSize),
		stage:       enhance.NewStage(c.Denoiser),
		window:      vad.NewWindow(config.WindowSamples),
		detector:    c.Detector,
		machine:     machine,
		transcriber: c.Transcriber,
		dispatcher:  c.Dispatcher,
		reporter:    reporter,
		logger:      logger,
		metrics:     m,
		stats: Stats{
			State:     segment.StateIdle.String(),
			StartTime: time.Now(),
		},
	}

	if lr, ok := reporter.(dispatch.LevelReporter); ok && config.ShowLevel {
		p.levels = lr
	}
	if f, ok := c.Denoiser.(interface{ Floor() float64 }); ok {
		p.floor = f
	}

	return p, nil
}

// Callback returns the producer-side handler for a source. It copies the
// block, never blocks, and drops the block when the queue is full.
// Level display happens on the consumer side.
func (p *Pipeline) Callback() func(audio.Block) {
	return func(block audio.Block) {
		b := block.Clone()

		queued := p.queue.Enqueue(b)
		p.metrics.RecordBlockCaptured(queued, b.Peak())
	}
}

// Run consumes blocks until ctx is cancelled or the queue is closed and
// drained. It returns an error only when the denoiser fails.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Pipeline started",
		slog.Int("sample_rate", p.config.Format.SampleRate),
		slog.Int("block_size", p.config.Format.BlockSize()),
		slog.Int("queue_size", p.queue.Cap()),
		slog.Int("window_samples", p.config.WindowSamples),
	)

	for {
		block, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, audio.ErrQueueClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Info("Pipeline stopping",
					slog.String("reason", err.Error()),
					slog.Uint64("blocks_processed", p.Stats().BlocksProcessed),
				)
				p.reset()
				return nil
			}
			return err
		}

		if err := p.Process(ctx, block); err != nil {
			p.logger.Error("Pipeline stopped on fatal error", slog.String("error", err.Error()))
			p.reset()
			return err
		}
	}
}

// reset drops an unfinished utterance and empties the VAD window
func (p *Pipeline) reset() {
	if n := p.machine.Buffered(); n > 0 {
		p.metrics.RecordUtteranceDiscarded(string(segment.ReasonShutdown))
		p.logger.Info("Unfinished utterance dropped",
			slog.Int("samples", n),
		)
		p.update(func(s *Stats) { s.UtterancesDiscarded++ })
	}

	p.machine.Reset()
	p.window.Reset()
	p.update(func(s *Stats) {
		s.State = p.machine.State().String()
		s.BufferedSamples = 0
	})
}

// Close stops accepting blocks. Run drains what is queued and returns.
func (p *Pipeline) Close() {
	p.queue.Close()
}

// Process runs one raw block through the chain. Flushes run to completion
// even when ctx is cancelled.
func (p *Pipeline) Process(ctx context.Context, raw audio.Block) error {
	enhanced, err := p.stage.Enhance(raw)
	if err != nil {
		return fmt.Errorf("enhancement failed: %w", err)
	}

	if p.levels != nil {
		p.levels.Level(raw.Peak())
	}

	p.window.Push(enhanced)

	start := time.Now()
	intervals, err := p.detect()
	if err != nil {
		p.metrics.RecordVADError()
		p.logger.Warn("VAD failed, skipping block",
			slog.Uint64("block", p.stage.Blocks()),
			slog.String("error", err.Error()),
		)
		p.update(func(s *Stats) {
			s.BlocksProcessed++
			s.VADErrors++
		})
		p.metrics.RecordBlockProcessed(p.queue.Len())
		return nil
	}

	speech := len(intervals) > 0
	p.metrics.RecordVADWindow(speech, time.Since(start).Seconds())

	decision := p.machine.Step(raw, speech)

	p.update(func(s *Stats) {
		s.BlocksProcessed++
		if speech {
			s.SpeechBlocks++
		}
		s.State = p.machine.State().String()
		s.BufferedSamples = p.machine.Buffered()
		if p.floor != nil {
			s.NoiseFloor = p.floor.Floor()
		}
	})
	p.metrics.RecordBlockProcessed(p.queue.Len())

	switch decision.Action {
	case segment.ActionFlush:
		p.flush(context.WithoutCancel(ctx), decision)
	case segment.ActionDiscard:
		p.metrics.RecordUtteranceDiscarded(string(decision.Reason))
		p.update(func(s *Stats) { s.UtterancesDiscarded++ })
		p.logger.Debug("Utterance discarded",
			slog.String("reason", string(decision.Reason)),
			slog.Int("samples", len(decision.Utterance)),
		)
	}

	return nil
}

// detect runs the detector, turning a panic into an error
func (p *Pipeline) detect() (intervals []vad.Interval, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector panic: %v", r)
		}
	}()
	return p.detector.Detect(p.window.Samples(), p.config.Threshold)
}

// flush transcribes a finished utterance and dispatches the transcript.
// A panicking collaborator abandons the utterance, not the loop.
func (p *Pipeline) flush(ctx context.Context, d segment.Decision) {
	id := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			p.update(func(s *Stats) { s.Panics++ })
			p.logger.Error("Utterance handling panicked",
				slog.String("utterance_id", id),
				slog.Any("panic", r),
			)
			p.reporter.Error(fmt.Errorf("utterance %s: %v", id, r))
		}
	}()

	duration := audio.Duration(len(d.Utterance), p.config.Format.SampleRate)

	p.metrics.RecordUtteranceFlushed(string(d.Reason), duration.Seconds())
	p.update(func(s *Stats) {
		s.UtterancesFlushed++
		s.LastUtteranceAt = time.Now()
	})

	p.logger.Info("Utterance complete",
		slog.String("utterance_id", id),
		slog.String("reason", string(d.Reason)),
		slog.Float64("duration", duration.Seconds()),
		slog.Int("samples", len(d.Utterance)),
	)

	start := time.Now()
	segments, err := p.transcriber.Transcribe(ctx, d.Utterance, p.config.Options)
	elapsed := time.Since(start)
	if err != nil {
		p.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		p.update(func(s *Stats) { s.TranscriptionErrors++ })
		p.logger.Error("Transcription failed",
			slog.String("utterance_id", id),
			slog.String("error", err.Error()),
			slog.Float64("duration", elapsed.Seconds()),
		)
		p.reporter.Error(err)
		return
	}
	p.metrics.RecordTranscriptionSuccess(elapsed.Seconds())

	text, err := p.config.Filter.Apply(segments)
	if err != nil {
		p.metrics.RecordLowConfidence()
		p.update(func(s *Stats) { s.LowConfidence++ })
		p.logger.Info("Transcript discarded",
			slog.String("utterance_id", id),
			slog.Int("segments", len(segments)),
			slog.String("reason", err.Error()),
		)
		p.reporter.Discarded("low-confidence audio")
		return
	}

	p.logger.Info("Transcript accepted",
		slog.String("utterance_id", id),
		slog.String("text", text),
		slog.Int("segments", len(segments)),
		slog.Float64("transcription_time", elapsed.Seconds()),
	)

	p.update(func(s *Stats) { s.LastTranscript = text })

	outcome := p.dispatcher.Dispatch(ctx, id, text)
	p.update(func(s *Stats) { s.Dispatched++ })

	p.logger.Info("Dispatch finished",
		slog.String("utterance_id", id),
		slog.String("status", string(outcome.Status)),
		slog.Int("rows", outcome.Rows),
		slog.Duration("elapsed", outcome.Duration),
	)
}

func (p *Pipeline) update(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

// Stats returns a snapshot of pipeline activity
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	s := p.stats
	p.mu.RUnlock()

	s.Queue = p.queue.Stats()
	return s
}

// Queue returns the ingestion queue
func (p *Pipeline) Queue() *audio.Queue {
	return p.queue
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/skypro1111/voxsql/internal/audio"
	"github.com/skypro1111/voxsql/internal/config"
	"github.com/skypro1111/voxsql/internal/dispatch"
	"github.com/skypro1111/voxsql/internal/display"
	"github.com/skypro1111/voxsql/internal/enhance"
	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/nlsql"
	"github.com/skypro1111/voxsql/internal/pipeline"
	"github.com/skypro1111/voxsql/internal/query"
	"github.com/skypro1111/voxsql/internal/segment"
	"github.com/skypro1111/voxsql/internal/source"
	"github.com/skypro1111/voxsql/internal/transcription"
	"github.com/skypro1111/voxsql/internal/vad"
)

func audioFormat(cfg *config.Config) audio.Format {
	return audio.Format{
		SampleRate:    cfg.Audio.SampleRate,
		BlockDuration: cfg.Audio.GetBlockDuration(),
	}
}

func newReporter(cfg *config.Config) dispatch.Reporter {
	if !cfg.Display.Enabled {
		return dispatch.NopReporter{}
	}
	return display.NewTerminal(os.Stdout)
}

// newGate wires the NL->SQL client and the read-only executor
func newGate(cfg *config.Config, reporter dispatch.Reporter, logger *slog.Logger, m *metrics.Metrics) (*dispatch.Dispatcher, error) {
	translator, err := nlsql.NewClient(nlsql.Config{
		Endpoint: cfg.NLSQL.Endpoint,
		Role:     cfg.NLSQL.Role,
		Timeout:  cfg.NLSQL.GetTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NL->SQL client: %w", err)
	}

	guard, err := query.NewGuard(query.GuardMode(cfg.Database.GuardMode))
	if err != nil {
		return nil, fmt.Errorf("failed to create query guard: %w", err)
	}

	executor, err := query.NewSQLExecutor(query.Config{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		MaxRows: cfg.Database.MaxRows,
	}, guard)
	if err != nil {
		return nil, fmt.Errorf("failed to create query executor: %w", err)
	}

	history := dispatch.NewHistory(cfg.HTTP.HistorySize)
	return dispatch.NewDispatcher(translator, executor, reporter, history, logger, m), nil
}

func newDenoiser(cfg *config.Config) (enhance.Session, error) {
	if cfg.Enhance.Type == "none" {
		return enhance.Identity{}, nil
	}

	gateCfg := enhance.DefaultNoiseGateConfig()
	gateCfg.HighPass = cfg.Enhance.HighPass
	gateCfg.OpenRatio = cfg.Enhance.OpenRatio
	gateCfg.Attenuation = cfg.Enhance.Attenuation
	return enhance.NewNoiseGate(gateCfg)
}

func newDetector(cfg *config.Config, format audio.Format) (*vad.EnergyDetector, error) {
	return vad.NewEnergyDetector(vad.EnergyConfig{
		FrameSize:      cfg.VAD.FrameSize,
		ReferenceLevel: cfg.VAD.ReferenceLevel,
		MinSpeech:      format.Samples(cfg.VAD.GetMinSpeechDuration()),
		MinSilence:     format.Samples(cfg.VAD.GetMinSilenceDuration()),
	})
}

func newTranscriber(cfg *config.Config) (*transcription.Client, error) {
	return transcription.NewClient(transcription.Config{
		Endpoint:   cfg.Transcription.Endpoint,
		APIKey:     cfg.Transcription.APIKey,
		Model:      cfg.Transcription.Model,
		SampleRate: cfg.Audio.SampleRate,
		Timeout:    cfg.Transcription.GetTimeoutDuration(),
		MaxRetries: cfg.Transcription.MaxRetries,
	})
}

func pipelineConfig(cfg *config.Config, format audio.Format) pipeline.Config {
	return pipeline.Config{
		Format:        format,
		QueueSize:     cfg.Audio.QueueSize,
		WindowSamples: format.Samples(cfg.VAD.GetWindowDuration()),
		Threshold:     cfg.VAD.Threshold,
		Segmentation: segment.Config{
			SilenceSamples:   format.Samples(cfg.Segmentation.GetSilenceEndDuration()),
			MinSpeechSamples: format.Samples(cfg.Segmentation.GetMinSpeechDuration()),
			MaxSamples:       format.Samples(cfg.Segmentation.GetMaxSpeechDuration()),
		},
		Options: transcription.Options{
			BeamSize:          cfg.Transcription.BeamSize,
			Temperature:       cfg.Transcription.Temperature,
			NoSpeechThreshold: cfg.Transcription.NoSpeechThreshold,
			Language:          cfg.Transcription.Language,
		},
		Filter: transcription.Filter{
			MinAvgLogprob:   cfg.Transcription.MinAvgLogprob,
			MaxNoSpeechProb: cfg.Transcription.MaxNoSpeechProb,
		},
		ShowLevel: cfg.Display.Enabled && cfg.Display.MicLevel,
	}
}

// newSource builds the configured adapter. The returned closer releases an
// opened input file and may be nil.
func newSource(cfg *config.Config, format audio.Format, logger *slog.Logger, m *metrics.Metrics) (source.Source, io.Closer, error) {
	switch cfg.Source.Type {
	case "reader":
		var r io.Reader = os.Stdin
		var closer io.Closer
		if cfg.Source.Path != "-" {
			f, err := os.Open(cfg.Source.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open audio input: %w", err)
			}
			r, closer = f, f
		}
		src, err := source.NewReader(r, format, logger)
		return src, closer, err

	case "file":
		src, err := source.NewFile(source.FileConfig{
			Path:     cfg.Source.Path,
			Realtime: cfg.Source.Realtime,
			Tail:     cfg.Segmentation.GetSilenceEndDuration() + cfg.VAD.GetWindowDuration(),
		}, format, logger)
		return src, nil, err

	case "udp":
		src, err := source.NewUDP(source.UDPConfig{
			BindAddress: cfg.Source.BindAddress,
			Port:        cfg.Source.UDPPort,
			BufferSize:  cfg.Source.BufferSize,
		}, format, logger, m)
		return src, nil, err

	case "websocket":
		return source.NewWebSocket(format, logger, m), nil, nil
	}

	return nil, nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
}

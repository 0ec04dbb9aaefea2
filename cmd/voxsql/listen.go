package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/skypro1111/voxsql/internal/metrics"
	"github.com/skypro1111/voxsql/internal/pipeline"
	"github.com/skypro1111/voxsql/internal/server"
	"github.com/skypro1111/voxsql/internal/source"
)

// runListen runs the capture pipeline until the source ends or a signal arrives
func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("source", cfg.Source.Type),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("block_duration", cfg.Audio.BlockDuration),
		slog.Int("queue_size", cfg.Audio.QueueSize),
		slog.String("enhance", cfg.Enhance.Type),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.Float64("silence_end", cfg.Segmentation.SilenceEnd),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("nlsql_endpoint", cfg.NLSQL.Endpoint),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("guard_mode", cfg.Database.GuardMode),
		slog.String("log_level", cfg.Logging.Level),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(reg)

	format := audioFormat(cfg)
	reporter := newReporter(cfg)

	gate, err := newGate(cfg, reporter, logger, appMetrics)
	if err != nil {
		return err
	}

	denoiser, err := newDenoiser(cfg)
	if err != nil {
		return fmt.Errorf("failed to create denoiser: %w", err)
	}

	detector, err := newDetector(cfg, format)
	if err != nil {
		return fmt.Errorf("failed to create VAD: %w", err)
	}

	transcriber, err := newTranscriber(cfg)
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	p, err := pipeline.New(pipelineConfig(cfg, format), pipeline.Components{
		Denoiser:    denoiser,
		Detector:    detector,
		Transcriber: transcriber,
		Dispatcher:  gate,
		Reporter:    reporter,
	}, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, closer, err := newSource(cfg, format, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.Source.Type, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		deps := server.Deps{
			Pipeline:      p,
			Gate:          gate,
			Transcription: transcriber,
			VAD:           detector,
			Gatherer:      reg,
		}
		if ws, ok := src.(http.Handler); ok {
			deps.Audio = ws
		}
		if udp, ok := src.(*source.UDP); ok {
			deps.UDP = udp
		}

		httpServer, err = server.NewHTTPServer(cfg, deps, logger, appMetrics)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		if err := httpServer.Start(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The source runs until its input ends or a signal arrives; either way
	// the queue is closed so the pipeline drains and returns.
	go func() {
		if err := src.Run(ctx, source.Callback(p.Callback())); err != nil {
			logger.Error("Audio source failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
		}
		p.Close()
	}()
	go func() {
		<-ctx.Done()
		p.Close()
	}()

	logger.Info("Service started successfully, listening...",
		slog.String("source", src.Name()),
	)

	runErr := p.Run(context.Background())

	logger.Info("Starting graceful shutdown...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stats := p.Stats()
	logger.Info("Final pipeline statistics",
		slog.Uint64("blocks_processed", stats.BlocksProcessed),
		slog.Uint64("blocks_dropped", stats.Queue.Dropped),
		slog.Uint64("utterances_flushed", stats.UtterancesFlushed),
		slog.Uint64("utterances_discarded", stats.UtterancesDiscarded),
		slog.Uint64("low_confidence", stats.LowConfidence),
		slog.Uint64("dispatched", stats.Dispatched),
	)

	if runErr != nil {
		return fmt.Errorf("pipeline stopped: %w", runErr)
	}

	logger.Info("Service stopped")
	return nil
}

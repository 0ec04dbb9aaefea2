package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skypro1111/voxsql/internal/config"
)

const (
	serviceName    = "voxsql"
	serviceVersion = "1.0.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "voxsql",
	Short: "Turn spoken questions into read-only SQL queries",
	Long: `voxsql listens to an audio source, cuts speech into utterances, transcribes
them, asks a NL->SQL service for a statement and runs it against a database
behind a read-only guard.`,
	SilenceUsage: true,
	RunE:         runListen,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the voice pipeline (default)",
	Args:  cobra.NoArgs,
	RunE:  runListen,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Send a typed question through NL->SQL and the query gate",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a statement through the read-only query gate",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults are used when empty)")
	rootCmd.AddCommand(listenCmd, askCmd, queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, or returns validated defaults
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("default configuration is invalid: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// stdout carries the query sections, so logs default to stderr
	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Source        SourceConfig        `yaml:"source"`
	Enhance       EnhanceConfig       `yaml:"enhance"`
	VAD           VADConfig           `yaml:"vad"`
	Segmentation  SegmentationConfig  `yaml:"segmentation"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	NLSQL         NLSQLConfig         `yaml:"nlsql"`
	Database      DatabaseConfig      `yaml:"database"`
	HTTP          HTTPConfig          `yaml:"http"`
	Display       DisplayConfig       `yaml:"display"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture format parameters
type AudioConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	BlockDuration float64 `yaml:"block_duration"` // seconds
	QueueSize     int     `yaml:"queue_size"`     // blocks
}

// SourceConfig selects and configures the audio source
type SourceConfig struct {
	Type        string `yaml:"type"` // reader, file, udp or websocket
	Path        string `yaml:"path"` // reader: file or "-" for stdin; file: WAV path
	Realtime    bool   `yaml:"realtime"`
	BindAddress string `yaml:"bind_address"`
	UDPPort     int    `yaml:"udp_port"`
	BufferSize  int    `yaml:"buffer_size"`
}

// EnhanceConfig configures the denoiser
type EnhanceConfig struct {
	Type        string  `yaml:"type"` // noisegate or none
	HighPass    float64 `yaml:"high_pass"`
	OpenRatio   float64 `yaml:"open_ratio"`
	Attenuation float64 `yaml:"attenuation"`
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold          float32 `yaml:"threshold"`
	WindowDuration     float64 `yaml:"window_duration"` // seconds
	FrameSize          int     `yaml:"frame_size"`      // samples
	ReferenceLevel     float64 `yaml:"reference_level"`
	MinSpeechDuration  float64 `yaml:"min_speech_duration"`  // seconds
	MinSilenceDuration float64 `yaml:"min_silence_duration"` // seconds
}

// SegmentationConfig contains utterance boundary parameters
type SegmentationConfig struct {
	SilenceEnd float64 `yaml:"silence_end"` // seconds
	MinSpeech  float64 `yaml:"min_speech"`  // seconds
	MaxSpeech  float64 `yaml:"max_speech"`  // seconds
}

// TranscriptionConfig contains transcription API configuration
type TranscriptionConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Language          string  `yaml:"language"`
	Timeout           int     `yaml:"timeout"` // seconds
	MaxRetries        int     `yaml:"max_retries"`
	BeamSize          int     `yaml:"beam_size"`
	Temperature       float64 `yaml:"temperature"`
	NoSpeechThreshold float64 `yaml:"no_speech_threshold"`
	MinAvgLogprob     float64 `yaml:"min_avg_logprob"`
	MaxNoSpeechProb   float64 `yaml:"max_no_speech_prob"`
}

// NLSQLConfig contains NL->SQL service configuration
type NLSQLConfig struct {
	Endpoint string `yaml:"endpoint"`
	Role     string `yaml:"role"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// DatabaseConfig contains query gate configuration
type DatabaseConfig struct {
	Driver    string `yaml:"driver"` // sqlite or pgx
	DSN       string `yaml:"dsn"`
	MaxRows   int    `yaml:"max_rows"`
	GuardMode string `yaml:"guard_mode"` // substring or keyword
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port        int    `yaml:"port"`
	Address     string `yaml:"address"`
	Enabled     bool   `yaml:"enabled"`
	HistorySize int    `yaml:"history_size"`
}

// DisplayConfig controls terminal output
type DisplayConfig struct {
	Enabled  bool `yaml:"enabled"`
	MicLevel bool `yaml:"mic_level"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when a key is not set
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:    16000,
			BlockDuration: 0.03,
			QueueSize:     30,
		},
		Source: SourceConfig{
			Type:        "reader",
			Path:        "-",
			BindAddress: "0.0.0.0",
			UDPPort:     4444,
			BufferSize:  65536,
		},
		Enhance: EnhanceConfig{
			Type:        "noisegate",
			HighPass:    0.995,
			OpenRatio:   2.0,
			Attenuation: 0.1,
		},
		VAD: VADConfig{
			Threshold:          0.2,
			WindowDuration:     0.4,
			FrameSize:          512,
			ReferenceLevel:     0.1,
			MinSpeechDuration:  0.25,
			MinSilenceDuration: 0.1,
		},
		Segmentation: SegmentationConfig{
			SilenceEnd: 0.6,
			MinSpeech:  0.5,
			MaxSpeech:  30,
		},
		Transcription: TranscriptionConfig{
			Endpoint:          "http://127.0.0.1:8000/v1/audio/transcriptions",
			Model:             "whisper-1",
			Timeout:           60,
			MaxRetries:        2,
			BeamSize:          5,
			Temperature:       0,
			NoSpeechThreshold: 0.6,
			MinAvgLogprob:     -0.6,
			MaxNoSpeechProb:   0.6,
		},
		NLSQL: NLSQLConfig{
			Endpoint: "http://127.0.0.1:9000/generate_sql",
			Role:     "admin",
			Timeout:  10,
		},
		Database: DatabaseConfig{
			Driver:    "sqlite",
			DSN:       "database.sqlite",
			MaxRows:   100,
			GuardMode: "substring",
		},
		HTTP: HTTPConfig{
			Port:        8080,
			Address:     "127.0.0.1",
			Enabled:     true,
			HistorySize: 50,
		},
		Display: DisplayConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	if err := c.Enhance.Validate(); err != nil {
		return fmt.Errorf("enhance config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Segmentation.Validate(); err != nil {
		return fmt.Errorf("segmentation config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.NLSQL.Validate(); err != nil {
		return fmt.Errorf("nlsql config: %w", err)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if c.Source.Type == "websocket" && !c.HTTP.Enabled {
		return fmt.Errorf("source type websocket requires http.enabled")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.BlockDuration <= 0 || a.BlockDuration > 1 {
		return fmt.Errorf("block_duration must be in (0, 1] seconds, got %f", a.BlockDuration)
	}

	if a.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", a.QueueSize)
	}

	return nil
}

// Validate validates source configuration
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case "reader":
		if s.Path == "" {
			return fmt.Errorf("path cannot be empty for reader source (use \"-\" for stdin)")
		}
	case "file":
		if s.Path == "" {
			return fmt.Errorf("path cannot be empty for file source")
		}
	case "udp":
		if s.UDPPort < 1 || s.UDPPort > 65535 {
			return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
		}
		if s.BindAddress == "" {
			return fmt.Errorf("bind_address cannot be empty")
		}
		if s.BufferSize < 1024 {
			return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
		}
	case "websocket":
	default:
		return fmt.Errorf("type must be one of [reader, file, udp, websocket], got '%s'", s.Type)
	}

	return nil
}

// Validate validates enhancement configuration
func (e *EnhanceConfig) Validate() error {
	switch e.Type {
	case "none":
		return nil
	case "noisegate":
	default:
		return fmt.Errorf("type must be 'noisegate' or 'none', got '%s'", e.Type)
	}

	if e.HighPass < 0 || e.HighPass >= 1 {
		return fmt.Errorf("high_pass must be in [0, 1), got %f", e.HighPass)
	}

	if e.OpenRatio < 1 {
		return fmt.Errorf("open_ratio must be at least 1, got %f", e.OpenRatio)
	}

	if e.Attenuation < 0 || e.Attenuation > 1 {
		return fmt.Errorf("attenuation must be between 0 and 1, got %f", e.Attenuation)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.WindowDuration <= 0 {
		return fmt.Errorf("window_duration must be positive, got %f", v.WindowDuration)
	}

	if v.FrameSize < 64 || v.FrameSize > 4096 {
		return fmt.Errorf("frame_size must be between 64 and 4096 samples, got %d", v.FrameSize)
	}

	if v.ReferenceLevel <= 0 || v.ReferenceLevel > 1 {
		return fmt.Errorf("reference_level must be in (0, 1], got %f", v.ReferenceLevel)
	}

	if v.MinSpeechDuration < 0 {
		return fmt.Errorf("min_speech_duration cannot be negative, got %f", v.MinSpeechDuration)
	}

	if v.MinSilenceDuration < 0 {
		return fmt.Errorf("min_silence_duration cannot be negative, got %f", v.MinSilenceDuration)
	}

	if v.MinSpeechDuration > v.WindowDuration {
		return fmt.Errorf("min_speech_duration (%f) cannot exceed window_duration (%f)",
			v.MinSpeechDuration, v.WindowDuration)
	}

	return nil
}

// Validate validates segmentation configuration
func (s *SegmentationConfig) Validate() error {
	if s.SilenceEnd <= 0 {
		return fmt.Errorf("silence_end must be positive, got %f", s.SilenceEnd)
	}

	if s.MinSpeech < 0 {
		return fmt.Errorf("min_speech cannot be negative, got %f", s.MinSpeech)
	}

	if s.MaxSpeech <= s.MinSpeech {
		return fmt.Errorf("max_speech (%f) must be greater than min_speech (%f)", s.MaxSpeech, s.MinSpeech)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.BeamSize < 1 {
		return fmt.Errorf("beam_size must be at least 1, got %d", t.BeamSize)
	}

	if t.Temperature < 0 || t.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", t.Temperature)
	}

	if t.NoSpeechThreshold < 0 || t.NoSpeechThreshold > 1 {
		return fmt.Errorf("no_speech_threshold must be between 0 and 1, got %f", t.NoSpeechThreshold)
	}

	if t.MinAvgLogprob > 0 {
		return fmt.Errorf("min_avg_logprob must not be positive, got %f", t.MinAvgLogprob)
	}

	if t.MaxNoSpeechProb < 0 || t.MaxNoSpeechProb > 1 {
		return fmt.Errorf("max_no_speech_prob must be between 0 and 1, got %f", t.MaxNoSpeechProb)
	}

	return nil
}

// Validate validates NL->SQL configuration
func (n *NLSQLConfig) Validate() error {
	if n.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if n.Role == "" {
		return fmt.Errorf("role cannot be empty")
	}

	if n.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", n.Timeout)
	}

	return nil
}

// Validate validates database configuration
func (d *DatabaseConfig) Validate() error {
	validDrivers := map[string]bool{"sqlite": true, "pgx": true}
	if !validDrivers[d.Driver] {
		return fmt.Errorf("driver must be 'sqlite' or 'pgx', got '%s'", d.Driver)
	}

	if d.DSN == "" {
		return fmt.Errorf("dsn cannot be empty")
	}

	if d.MaxRows < 1 {
		return fmt.Errorf("max_rows must be at least 1, got %d", d.MaxRows)
	}

	validModes := map[string]bool{"substring": true, "keyword": true}
	if !validModes[d.GuardMode] {
		return fmt.Errorf("guard_mode must be 'substring' or 'keyword', got '%s'", d.GuardMode)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	if h.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1, got %d", h.HistorySize)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output is stdout, stderr or a file path
	return nil
}

// seconds converts fractional seconds to a duration, rounded to the nanosecond
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// GetBlockDuration returns the block duration as a time.Duration
func (a *AudioConfig) GetBlockDuration() time.Duration {
	return seconds(a.BlockDuration)
}

// GetWindowDuration returns the VAD window as a time.Duration
func (v *VADConfig) GetWindowDuration() time.Duration {
	return seconds(v.WindowDuration)
}

// GetMinSpeechDuration returns the minimum VAD speech interval as a time.Duration
func (v *VADConfig) GetMinSpeechDuration() time.Duration {
	return seconds(v.MinSpeechDuration)
}

// GetMinSilenceDuration returns the minimum VAD gap as a time.Duration
func (v *VADConfig) GetMinSilenceDuration() time.Duration {
	return seconds(v.MinSilenceDuration)
}

// GetSilenceEndDuration returns the silence timeout as a time.Duration
func (s *SegmentationConfig) GetSilenceEndDuration() time.Duration {
	return seconds(s.SilenceEnd)
}

// GetMinSpeechDuration returns the minimum utterance length as a time.Duration
func (s *SegmentationConfig) GetMinSpeechDuration() time.Duration {
	return seconds(s.MinSpeech)
}

// GetMaxSpeechDuration returns the maximum utterance length as a time.Duration
func (s *SegmentationConfig) GetMaxSpeechDuration() time.Duration {
	return seconds(s.MaxSpeech)
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTimeoutDuration returns the NL->SQL timeout as a time.Duration
func (n *NLSQLConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(n.Timeout) * time.Second
}

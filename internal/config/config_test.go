package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*Config)
		errorMsg string
	}{
		{
			name:     "sample rate too low",
			modify:   func(c *Config) { c.Audio.SampleRate = 4000 },
			errorMsg: "sample_rate must be between",
		},
		{
			name:     "zero queue",
			modify:   func(c *Config) { c.Audio.QueueSize = 0 },
			errorMsg: "queue_size",
		},
		{
			name:     "unknown source",
			modify:   func(c *Config) { c.Source.Type = "alsa" },
			errorMsg: "type must be one of",
		},
		{
			name: "invalid udp port",
			modify: func(c *Config) {
				c.Source.Type = "udp"
				c.Source.UDPPort = 70000
			},
			errorMsg: "udp_port must be between 1 and 65535",
		},
		{
			name: "file source without path",
			modify: func(c *Config) {
				c.Source.Type = "file"
				c.Source.Path = ""
			},
			errorMsg: "path cannot be empty",
		},
		{
			name: "websocket without http",
			modify: func(c *Config) {
				c.Source.Type = "websocket"
				c.HTTP.Enabled = false
			},
			errorMsg: "requires http.enabled",
		},
		{
			name:     "invalid attenuation",
			modify:   func(c *Config) { c.Enhance.Attenuation = 1.5 },
			errorMsg: "attenuation",
		},
		{
			name:     "invalid VAD threshold",
			modify:   func(c *Config) { c.VAD.Threshold = 1.5 },
			errorMsg: "threshold must be between 0 and 1",
		},
		{
			name:     "min speech longer than window",
			modify:   func(c *Config) { c.VAD.MinSpeechDuration = 1 },
			errorMsg: "cannot exceed window_duration",
		},
		{
			name: "max speech below min speech",
			modify: func(c *Config) {
				c.Segmentation.MinSpeech = 5
				c.Segmentation.MaxSpeech = 1
			},
			errorMsg: "max_speech",
		},
		{
			name:     "positive logprob bound",
			modify:   func(c *Config) { c.Transcription.MinAvgLogprob = 0.5 },
			errorMsg: "min_avg_logprob",
		},
		{
			name:     "empty role",
			modify:   func(c *Config) { c.NLSQL.Role = "" },
			errorMsg: "role cannot be empty",
		},
		{
			name:     "unknown driver",
			modify:   func(c *Config) { c.Database.Driver = "mysql" },
			errorMsg: "driver must be",
		},
		{
			name:     "unknown guard mode",
			modify:   func(c *Config) { c.Database.GuardMode = "regex" },
			errorMsg: "guard_mode",
		},
		{
			name:     "invalid http port",
			modify:   func(c *Config) { c.HTTP.Port = 0 },
			errorMsg: "http port must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)

			err := config.Validate()
			if err == nil {
				t.Fatalf("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		check       func(*testing.T, *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
audio:
  sample_rate: 16000
  block_duration: 0.02
source:
  type: udp
  udp_port: 5555
database:
  driver: pgx
  dsn: "postgres://reader@localhost/shop"
  guard_mode: keyword
nlsql:
  role: sales
logging:
  level: debug
  format: json
`,
			check: func(t *testing.T, c *Config) {
				if c.Audio.BlockDuration != 0.02 {
					t.Errorf("Expected block duration 0.02, got %f", c.Audio.BlockDuration)
				}
				if c.Source.UDPPort != 5555 || c.Source.BindAddress != "0.0.0.0" {
					t.Errorf("Unexpected source config: %+v", c.Source)
				}
				if c.Database.Driver != "pgx" || c.Database.MaxRows != 100 {
					t.Errorf("Unexpected database config: %+v", c.Database)
				}
				if c.NLSQL.Role != "sales" || c.NLSQL.Timeout != 10 {
					t.Errorf("Unexpected nlsql config: %+v", c.NLSQL)
				}
				if c.Segmentation.SilenceEnd != 0.6 {
					t.Errorf("Expected default silence end, got %f", c.Segmentation.SilenceEnd)
				}
			},
		},
		{
			name:       "empty file keeps defaults",
			configYAML: "",
			check: func(t *testing.T, c *Config) {
				if c.Audio.SampleRate != 16000 || c.Audio.QueueSize != 30 {
					t.Errorf("Unexpected audio defaults: %+v", c.Audio)
				}
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
audio:
  sample_rate: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "invalid value",
			configYAML: `
logging:
  level: trace
`,
			expectError: true,
			errorMsg:    "logging config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if tt.check != nil {
				tt.check(t, config)
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatalf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	c := Default()

	if got := c.Audio.GetBlockDuration(); got != 30*time.Millisecond {
		t.Errorf("Expected 30ms, got %v", got)
	}
	if got := c.VAD.GetWindowDuration(); got != 400*time.Millisecond {
		t.Errorf("Expected 400ms, got %v", got)
	}
	if got := c.VAD.GetMinSpeechDuration(); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
	if got := c.VAD.GetMinSilenceDuration(); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", got)
	}
	if got := c.Segmentation.GetSilenceEndDuration(); got != 600*time.Millisecond {
		t.Errorf("Expected 600ms, got %v", got)
	}
	if got := c.Segmentation.GetMinSpeechDuration(); got != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", got)
	}
	if got := c.Segmentation.GetMaxSpeechDuration(); got != 30*time.Second {
		t.Errorf("Expected 30s, got %v", got)
	}
	if got := c.NLSQL.GetTimeoutDuration(); got != 10*time.Second {
		t.Errorf("Expected 10s, got %v", got)
	}
	if got := c.Transcription.GetTimeoutDuration(); got != 60*time.Second {
		t.Errorf("Expected 60s, got %v", got)
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
		valid  bool
	}{
		{
			name:   "valid json to stdout",
			config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
			valid:  true,
		},
		{
			name:   "valid text to file",
			config: LoggingConfig{Level: "debug", Format: "text", Output: "/var/log/voxsql.log"},
			valid:  true,
		},
		{
			name:   "invalid log level",
			config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"},
			valid:  false,
		},
		{
			name:   "invalid format",
			config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config but got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected invalid config but got no error")
			}
		})
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	config, err := Load("../../configs/voxsql.yaml")
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}

	if !reflect.DeepEqual(config, Default()) {
		t.Errorf("Expected example config to match defaults:\n got %+v\nwant %+v", config, Default())
	}
}

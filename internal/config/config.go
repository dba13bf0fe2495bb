package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values
const (
	EnvTranscriptionURL = "VOICE_TRANSCRIPTION_URL"
	EnvCaptureDevice    = "VOICE_CAPTURE_DEVICE"
	EnvLogLevel         = "VOICE_LOG_LEVEL"
)

// Config represents the complete application configuration
type Config struct {
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	HTTP          HTTPConfig          `yaml:"http"`
	Console       ConsoleConfig       `yaml:"console"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	Device            string `yaml:"device"` // empty selects the default input
	SampleRate        int    `yaml:"sample_rate"`
	MaxRecordSeconds  int    `yaml:"max_record_seconds"`
	Channels          int    `yaml:"channels"`
	FramesPerBuffer   int    `yaml:"frames_per_buffer"` // 0 lets the driver choose
	KeepRecordingsDir string `yaml:"keep_recordings_dir"`
}

// TranscriptionConfig contains transcription endpoint configuration
type TranscriptionConfig struct {
	URL         string `yaml:"url"`
	Timeout     int    `yaml:"timeout"` // seconds
	LogRequests bool   `yaml:"log_requests"`
	UserAgent   string `yaml:"user_agent"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// ConsoleConfig controls the interactive terminal display
type ConsoleConfig struct {
	Enabled           bool   `yaml:"enabled"`
	ClearOnStart      bool   `yaml:"clear_on_start"`
	AppendWithNewline bool   `yaml:"append_with_newline"`
	CopyToClipboard   bool   `yaml:"copy_to_clipboard"`
	StartLabel        string `yaml:"start_label"`
	StopLabel         string `yaml:"stop_label"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"` // stdout, stderr or a file path
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:       16000,
			MaxRecordSeconds: 15,
			Channels:         1,
		},
		Transcription: TranscriptionConfig{
			URL:       "http://127.0.0.1:8000/transcribe",
			Timeout:   300,
			UserAgent: "voice-transcriber/1.0",
		},
		HTTP: HTTPConfig{
			Port:    8090,
			Address: "127.0.0.1",
		},
		Console: ConsoleConfig{
			Enabled:           true,
			ClearOnStart:      true,
			AppendWithNewline: true,
			StartLabel:        "Record",
			StopLabel:         "Stop",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the configuration file on top of Default, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config.ApplyEnv(os.LookupEnv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment using lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvTranscriptionURL); ok && v != "" {
		c.Transcription.URL = v
	}
	if v, ok := lookup(EnvCaptureDevice); ok {
		c.Capture.Device = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Console.Validate(); err != nil {
		return fmt.Errorf("console config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %d", c.SampleRate)
	}

	if c.MaxRecordSeconds < 1 || c.MaxRecordSeconds > 3600 {
		return fmt.Errorf("max_record_seconds must be between 1 and 3600, got %d", c.MaxRecordSeconds)
	}

	if c.Channels < 1 || c.Channels > 32 {
		return fmt.Errorf("channels must be between 1 and 32, got %d", c.Channels)
	}

	if c.FramesPerBuffer < 0 {
		return fmt.Errorf("frames_per_buffer cannot be negative, got %d", c.FramesPerBuffer)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}

	if !strings.HasPrefix(t.URL, "http://") && !strings.HasPrefix(t.URL, "https://") {
		return fmt.Errorf("url must start with http:// or https://, got '%s'", t.URL)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
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

	return nil
}

// Validate validates console configuration
func (c *ConsoleConfig) Validate() error {
	if c.Enabled && (c.StartLabel == "" || c.StopLabel == "") {
		return fmt.Errorf("start_label and stop_label cannot be empty when the console is enabled")
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

	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits cannot be negative")
	}

	return nil
}

// IsFile reports whether logs go to a file rather than a standard stream
func (l *LoggingConfig) IsFile() bool {
	return l.Output != "" && l.Output != "stdout" && l.Output != "stderr"
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetMaxRecordDuration returns the recording limit as a time.Duration
func (c *CaptureConfig) GetMaxRecordDuration() time.Duration {
	return time.Duration(c.MaxRecordSeconds) * time.Second
}

// Sanitized returns a copy safe to expose over the API, with URL credentials and query removed
func (c *Config) Sanitized() Config {
	out := *c
	out.Transcription.URL = redactURL(c.Transcription.URL)
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

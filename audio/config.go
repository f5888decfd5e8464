package audio

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/parameter"
)

// Output names accepted by Config.Output
const (
	OutputSpeaker = "speaker"
	OutputPipe    = "pipe"
	OutputNull    = "null"
)

// Config holds audio service settings
type Config struct {
	Enabled         bool
	MasterVolume    float64 // 0.0-1.0
	SampleRate      int
	Output          string
	LoadConcurrency int
	EventBuffer     int
	AssetRoot       string
	LogLevel        string
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MasterVolume:    0.8,
		SampleRate:      parameter.AudioSampleRate,
		Output:          OutputSpeaker,
		LoadConcurrency: parameter.BankLoadConcurrency,
		EventBuffer:     parameter.EventBufferSize,
		AssetRoot:       "assets",
		LogLevel:        "warn",
	}
}

// LoadConfig applies BEATPAD_* environment variables over the defaults
// Malformed values are ignored
func LoadConfig() *Config {
	cfg := DefaultConfig()

	if enabled := os.Getenv("BEATPAD_AUDIO_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = val
		}
	}

	// Master volume is 0-100 in the environment
	if volume := os.Getenv("BEATPAD_MASTER_VOLUME"); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			cfg.MasterVolume = clamp01(float64(val) / 100.0)
		}
	}

	if sampleRate := os.Getenv("BEATPAD_SAMPLE_RATE"); sampleRate != "" {
		if val, err := strconv.Atoi(sampleRate); err == nil && val > 0 {
			cfg.SampleRate = val
		}
	}

	if output := strings.ToLower(os.Getenv("BEATPAD_OUTPUT")); output != "" {
		switch output {
		case OutputSpeaker, OutputPipe, OutputNull:
			cfg.Output = output
		}
	}

	if n := os.Getenv("BEATPAD_LOAD_CONCURRENCY"); n != "" {
		if val, err := strconv.Atoi(n); err == nil && val > 0 {
			cfg.LoadConcurrency = val
		}
	}

	if root := os.Getenv("BEATPAD_ASSET_ROOT"); root != "" {
		cfg.AssetRoot = root
	}

	if level := os.Getenv("BEATPAD_LOG_LEVEL"); level != "" {
		if _, ok := parseLogLevel(level); ok {
			cfg.LogLevel = strings.ToLower(level)
		}
	}

	return cfg
}

// Loggers builds a pion logger factory writing to w at the configured level
// Per-scope PION_LOG_<LEVEL>=scope,... variables still apply on top
func (c *Config) Loggers(w io.Writer) *logging.DefaultLoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = w
	if level, ok := parseLogLevel(c.LogLevel); ok {
		if level == logging.LogLevelDisabled || level > f.DefaultLogLevel {
			f.DefaultLogLevel = level
		}
	}
	return f
}

func parseLogLevel(s string) (logging.LogLevel, bool) {
	switch strings.ToLower(s) {
	case "disable", "off":
		return logging.LogLevelDisabled, true
	case "error":
		return logging.LogLevelError, true
	case "warn", "warning":
		return logging.LogLevelWarn, true
	case "info":
		return logging.LogLevelInfo, true
	case "debug":
		return logging.LogLevelDebug, true
	case "trace":
		return logging.LogLevelTrace, true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

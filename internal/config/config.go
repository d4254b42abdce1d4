// Package config handles configuration loading and validation for voltbridge.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/voltbridge/internal/dispatch"
	"github.com/roach88/voltbridge/internal/input"
	"github.com/roach88/voltbridge/internal/lifecycle"
)

// Config is the complete bridge configuration.
type Config struct {
	Session SessionConfig `toml:"session" yaml:"session" json:"session"`
	Audio   AudioConfig   `toml:"audio" yaml:"audio" json:"audio"`
	Journal JournalConfig `toml:"journal" yaml:"journal" json:"journal"`
	Log     LogConfig     `toml:"log" yaml:"log" json:"log"`
}

// SessionConfig configures the lifecycle side effects.
type SessionConfig struct {
	// UpdateAction is the broadcast action the update receiver listens for.
	UpdateAction string `toml:"update_action" yaml:"update_action" json:"update_action"`
}

// AudioConfig configures the volume key side channel.
type AudioConfig struct {
	MusicStream   int `toml:"music_stream" yaml:"music_stream" json:"music_stream"`
	VolumeUpKey   int `toml:"volume_up_key" yaml:"volume_up_key" json:"volume_up_key"`
	VolumeDownKey int `toml:"volume_down_key" yaml:"volume_down_key" json:"volume_down_key"`
}

// JournalConfig configures the session journal. An empty path disables it.
type JournalConfig struct {
	Path string `toml:"path" yaml:"path" json:"path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the host's standard settings.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			UpdateAction: lifecycle.DefaultUpdateAction,
		},
		Audio: AudioConfig{
			MusicStream:   dispatch.DefaultMusicStream,
			VolumeUpKey:   input.KeyCodeVolumeUp,
			VolumeDownKey: input.KeyCodeVolumeDown,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Environment variables read by ApplyEnvOverrides.
const (
	EnvJournalPath  = "VOLTBRIDGE_JOURNAL_PATH"
	EnvLogLevel     = "VOLTBRIDGE_LOG_LEVEL"
	EnvLogFormat    = "VOLTBRIDGE_LOG_FORMAT"
	EnvUpdateAction = "VOLTBRIDGE_UPDATE_ACTION"
	EnvMusicStream  = "VOLTBRIDGE_MUSIC_STREAM"
)

// ApplyEnvOverrides replaces settings with VOLTBRIDGE_* environment
// variables that are set.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvJournalPath); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvUpdateAction); v != "" {
		c.Session.UpdateAction = v
	}
	if v := os.Getenv(EnvMusicStream); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMusicStream, err)
		}
		c.Audio.MusicStream = n
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Session.UpdateAction) == "" {
		errs = append(errs, ValidationError{Field: "session.update_action", Message: "must not be empty"})
	}
	if c.Audio.MusicStream < 0 {
		errs = append(errs, ValidationError{
			Field:   "audio.music_stream",
			Message: fmt.Sprintf("must be >= 0, got %d", c.Audio.MusicStream),
		})
	}
	if c.Audio.VolumeUpKey <= 0 {
		errs = append(errs, ValidationError{Field: "audio.volume_up_key", Message: "must be a positive key code"})
	}
	if c.Audio.VolumeDownKey <= 0 {
		errs = append(errs, ValidationError{Field: "audio.volume_down_key", Message: "must be a positive key code"})
	}
	if c.Audio.VolumeUpKey == c.Audio.VolumeDownKey {
		errs = append(errs, ValidationError{
			Field:   "audio.volume_down_key",
			Message: fmt.Sprintf("must differ from volume_up_key (%d)", c.Audio.VolumeUpKey),
		})
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("must be text or json, got %q", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Package config provides the configuration structure for the voice-engine.
package config

import (
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	VoiceReceivedSubject   string `toml:"voice_received_subject"`
	UserTextSubject        string `toml:"user_text_subject"`
	UserActionSubject      string `toml:"user_action_subject"`
	AssistantReplySubject  string `toml:"assistant_reply_subject"`
	VoiceObjectStoreBucket string `toml:"voice_object_store_bucket"`
	ProfileKVBucket        string `toml:"profile_kv_bucket"`
}

// AudioConfig bounds what the ingestor accepts.
type AudioConfig struct {
	MaxSizeMB          int64 `toml:"max_size_mb"`
	MaxDurationSeconds int   `toml:"max_duration_seconds"`
	SampleRate         int   `toml:"sample_rate"`
}

// SchedulerConfig controls the transcription queue and worker pool.
type SchedulerConfig struct {
	QueueCapacity     int `toml:"queue_capacity"`
	Workers           int `toml:"workers"`
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`
	MaxRetries        int `toml:"max_retries"`
	RetryBackoffMS    int `toml:"retry_backoff_ms"`
}

// DialogueConfig controls per-user session behavior.
type DialogueConfig struct {
	SessionTimeoutMinutes int `toml:"session_timeout_minutes"`
	MaxEdits              int `toml:"max_edits"`
}

// SpeechConfig points at the standalone speech inference server.
type SpeechConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Language       string `toml:"language"`
	Model          string `toml:"model"`
}

// GenerationConfig points at the content generation API.
type GenerationConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKeyEnv      string `toml:"api_key_env"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxPromptChars int    `toml:"max_prompt_chars"`
}

// HTTPConfig holds the status server settings.
type HTTPConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Audio      AudioConfig      `toml:"audio"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Dialogue   DialogueConfig   `toml:"dialogue"`
	Speech     SpeechConfig     `toml:"speech"`
	Generation GenerationConfig `toml:"generation"`
	HTTP       HTTPConfig       `toml:"http"`
	Paths      PathsConfig      `toml:"paths"`
}

// Defaults for every tunable the service recognizes. A zero value in the
// loaded TOML falls back to these.
const (
	DefaultMaxSizeMB             = 20
	DefaultMaxDurationSeconds    = 300
	DefaultSampleRate            = 16000
	DefaultQueueCapacity         = 16
	DefaultWorkers               = 1
	DefaultJobTimeoutSeconds     = 120
	DefaultMaxRetries            = 3
	DefaultRetryBackoffMS        = 2000
	DefaultSessionTimeoutMinutes = 10
	DefaultMaxEdits              = 3
	DefaultSpeechTimeoutSeconds  = 120
	DefaultLanguage              = "fa"
	DefaultMaxPromptChars        = 2000
	DefaultGenTimeoutSeconds     = 60
	DefaultListenAddr            = ":8085"
)

// Load loads the configuration for the voice-engine and applies defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every unset tunable with its documented default.
func (c *Config) ApplyDefaults() {
	if c.Audio.MaxSizeMB <= 0 {
		c.Audio.MaxSizeMB = DefaultMaxSizeMB
	}

	if c.Audio.MaxDurationSeconds <= 0 {
		c.Audio.MaxDurationSeconds = DefaultMaxDurationSeconds
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}

	if c.Scheduler.QueueCapacity <= 0 {
		c.Scheduler.QueueCapacity = DefaultQueueCapacity
	}

	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = DefaultWorkers
	}

	if c.Scheduler.JobTimeoutSeconds <= 0 {
		c.Scheduler.JobTimeoutSeconds = DefaultJobTimeoutSeconds
	}

	if c.Scheduler.MaxRetries < 0 {
		c.Scheduler.MaxRetries = DefaultMaxRetries
	}

	if c.Scheduler.RetryBackoffMS <= 0 {
		c.Scheduler.RetryBackoffMS = DefaultRetryBackoffMS
	}

	if c.Dialogue.SessionTimeoutMinutes <= 0 {
		c.Dialogue.SessionTimeoutMinutes = DefaultSessionTimeoutMinutes
	}

	if c.Dialogue.MaxEdits <= 0 {
		c.Dialogue.MaxEdits = DefaultMaxEdits
	}

	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = DefaultSpeechTimeoutSeconds
	}

	if c.Speech.Language == "" {
		c.Speech.Language = DefaultLanguage
	}

	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = DefaultGenTimeoutSeconds
	}

	if c.Generation.MaxPromptChars <= 0 {
		c.Generation.MaxPromptChars = DefaultMaxPromptChars
	}

	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = DefaultListenAddr
	}
}

// MaxSizeBytes returns the audio size limit in bytes.
func (c *AudioConfig) MaxSizeBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// MaxDuration returns the audio duration limit.
func (c *AudioConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}

// JobTimeout returns the per-job execution deadline.
func (c *SchedulerConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base backoff between retry attempts.
func (c *SchedulerConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// SessionTimeout returns the dialogue inactivity timeout.
func (c *DialogueConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

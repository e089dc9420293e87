// SPDX-License-Identifier: MIT

// Package config loads application configuration with precedence
// ENV > file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"
)

// AppConfig holds the full application configuration.
type AppConfig struct {
	// HTTP
	ListenAddr     string `yaml:"listenAddr"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	MetricsAddr    string `yaml:"metricsAddr"`

	// Logging
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	Version    string `yaml:"-"`

	// Remote realtime speech service
	APIKey          string `yaml:"-"` // OPENAI_API_KEY only, never from file
	RealtimeAPIBase string `yaml:"realtimeApiBase"`
	RealtimeWSBase  string `yaml:"realtimeWsBase"`
	Model           string `yaml:"model"`
	Voice           string `yaml:"voice"`
	AudioFormat     string `yaml:"audioFormat"`

	// Scripted-phase timing
	SettleDelay       time.Duration `yaml:"settleDelay"`
	UtteranceGap      time.Duration `yaml:"utteranceGap"`
	AudioStartTimeout time.Duration `yaml:"audioStartTimeout"`

	// Conversation hand-off
	ConversationTemperature float64 `yaml:"conversationTemperature"`
	TranscriptionModel      string  `yaml:"transcriptionModel"`

	// Call registry
	RegistryTTL time.Duration `yaml:"registryTTL"`
	RedisAddr   string        `yaml:"redisAddr"`

	// Sessions
	MaxSessions int `yaml:"maxSessions"`

	// Webhook protection
	WebhookRateLimit  int           `yaml:"webhookRateLimit"`
	WebhookRateWindow time.Duration `yaml:"webhookRateWindow"`

	// Prompts
	PromptsFile  string `yaml:"promptsFile"`
	PromptsWatch bool   `yaml:"promptsWatch"`
}

// ServerConfig holds HTTP server runtime configuration.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// Defaults returns the built-in configuration defaults. The timing values are
// the canonical scripted-phase constants; they are configuration, not
// inference.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:     ":8080",
		MetricsEnabled: false,
		MetricsAddr:    ":9090",

		LogLevel:   "info",
		LogService: "voice-agent",

		RealtimeAPIBase: "https://api.openai.com",
		RealtimeWSBase:  "wss://api.openai.com",
		Model:           "gpt-4o-realtime-preview",
		Voice:           "marin",
		AudioFormat:     "g711_ulaw",

		SettleDelay:       800 * time.Millisecond,
		UtteranceGap:      250 * time.Millisecond,
		AudioStartTimeout: 1200 * time.Millisecond,

		ConversationTemperature: 0.6,
		TranscriptionModel:      "whisper-1",

		RegistryTTL: time.Hour,

		MaxSessions: 32,

		WebhookRateLimit:  120,
		WebhookRateWindow: time.Minute,

		PromptsWatch: false,
	}
}

// Validate checks the configuration for fatal misconfiguration.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.Voice == "" {
		return fmt.Errorf("voice must not be empty")
	}
	if c.AudioFormat == "" {
		return fmt.Errorf("audio format must not be empty")
	}
	if c.SettleDelay < 0 || c.UtteranceGap < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.AudioStartTimeout <= 0 {
		return fmt.Errorf("audio start timeout must be positive")
	}
	if c.ConversationTemperature < 0 || c.ConversationTemperature > 2 {
		return fmt.Errorf("conversation temperature %v out of range [0,2]", c.ConversationTemperature)
	}
	if c.RegistryTTL <= 0 {
		return fmt.Errorf("registry TTL must be positive")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}
	return nil
}

// ParseServerConfig reads HTTP server settings from the environment.
func ParseServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      ParseString("VOICEAGENT_LISTEN", ":8080"),
		ReadTimeout:     ParseDuration("VOICEAGENT_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    ParseDuration("VOICEAGENT_WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:     ParseDuration("VOICEAGENT_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:  ParseInt("VOICEAGENT_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout: ParseDuration("VOICEAGENT_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

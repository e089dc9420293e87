// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with precedence ENV > file > defaults.
type Loader struct {
	filePath string
	version  string
}

// NewLoader creates a loader. filePath may be empty; the file layer is then
// skipped entirely.
func NewLoader(filePath, version string) *Loader {
	return &Loader{filePath: filePath, version: version}
}

// Load builds the effective configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.filePath != "" {
		if err := mergeFile(&cfg, l.filePath); err != nil {
			return AppConfig{}, fmt.Errorf("config file %s: %w", l.filePath, err)
		}
	}

	mergeEnv(&cfg)
	return cfg, nil
}

// mergeFile overlays values from a YAML file onto cfg. Zero values in the
// file leave the current value untouched.
func mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file AppConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if file.ListenAddr != "" {
		cfg.ListenAddr = file.ListenAddr
	}
	if file.MetricsEnabled {
		cfg.MetricsEnabled = true
	}
	if file.MetricsAddr != "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogService != "" {
		cfg.LogService = file.LogService
	}
	if file.RealtimeAPIBase != "" {
		cfg.RealtimeAPIBase = file.RealtimeAPIBase
	}
	if file.RealtimeWSBase != "" {
		cfg.RealtimeWSBase = file.RealtimeWSBase
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.Voice != "" {
		cfg.Voice = file.Voice
	}
	if file.AudioFormat != "" {
		cfg.AudioFormat = file.AudioFormat
	}
	if file.SettleDelay != 0 {
		cfg.SettleDelay = file.SettleDelay
	}
	if file.UtteranceGap != 0 {
		cfg.UtteranceGap = file.UtteranceGap
	}
	if file.AudioStartTimeout != 0 {
		cfg.AudioStartTimeout = file.AudioStartTimeout
	}
	if file.ConversationTemperature != 0 {
		cfg.ConversationTemperature = file.ConversationTemperature
	}
	if file.TranscriptionModel != "" {
		cfg.TranscriptionModel = file.TranscriptionModel
	}
	if file.RegistryTTL != 0 {
		cfg.RegistryTTL = file.RegistryTTL
	}
	if file.RedisAddr != "" {
		cfg.RedisAddr = file.RedisAddr
	}
	if file.MaxSessions != 0 {
		cfg.MaxSessions = file.MaxSessions
	}
	if file.WebhookRateLimit != 0 {
		cfg.WebhookRateLimit = file.WebhookRateLimit
	}
	if file.WebhookRateWindow != 0 {
		cfg.WebhookRateWindow = file.WebhookRateWindow
	}
	if file.PromptsFile != "" {
		cfg.PromptsFile = file.PromptsFile
	}
	if file.PromptsWatch {
		cfg.PromptsWatch = true
	}
	return nil
}

// mergeEnv overlays environment variables onto cfg. ENV has the highest
// precedence, so the current (default or file) value serves as the fallback.
func mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = ParseString("VOICEAGENT_LISTEN", cfg.ListenAddr)
	cfg.MetricsEnabled = ParseBool("VOICEAGENT_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = ParseString("VOICEAGENT_METRICS_ADDR", cfg.MetricsAddr)

	cfg.LogLevel = ParseString("VOICEAGENT_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("VOICEAGENT_LOG_SERVICE", cfg.LogService)

	cfg.APIKey = ParseString("OPENAI_API_KEY", cfg.APIKey)
	cfg.RealtimeAPIBase = ParseString("VOICEAGENT_REALTIME_API_BASE", cfg.RealtimeAPIBase)
	cfg.RealtimeWSBase = ParseString("VOICEAGENT_REALTIME_WS_BASE", cfg.RealtimeWSBase)
	cfg.Model = ParseString("VOICEAGENT_MODEL", cfg.Model)
	cfg.Voice = ParseString("VOICEAGENT_VOICE", cfg.Voice)
	cfg.AudioFormat = ParseString("VOICEAGENT_AUDIO_FORMAT", cfg.AudioFormat)

	cfg.SettleDelay = ParseDuration("VOICEAGENT_SETTLE_DELAY", cfg.SettleDelay)
	cfg.UtteranceGap = ParseDuration("VOICEAGENT_UTTERANCE_GAP", cfg.UtteranceGap)
	cfg.AudioStartTimeout = ParseDuration("VOICEAGENT_AUDIO_START_TIMEOUT", cfg.AudioStartTimeout)

	cfg.ConversationTemperature = ParseFloat("VOICEAGENT_CONVERSATION_TEMPERATURE", cfg.ConversationTemperature)
	cfg.TranscriptionModel = ParseString("VOICEAGENT_TRANSCRIPTION_MODEL", cfg.TranscriptionModel)

	cfg.RegistryTTL = ParseDuration("VOICEAGENT_REGISTRY_TTL", cfg.RegistryTTL)
	cfg.RedisAddr = ParseString("VOICEAGENT_REDIS_ADDR", cfg.RedisAddr)

	cfg.MaxSessions = ParseInt("VOICEAGENT_MAX_SESSIONS", cfg.MaxSessions)

	cfg.WebhookRateLimit = ParseInt("VOICEAGENT_WEBHOOK_RATE_LIMIT", cfg.WebhookRateLimit)
	cfg.WebhookRateWindow = ParseDuration("VOICEAGENT_WEBHOOK_RATE_WINDOW", cfg.WebhookRateWindow)

	cfg.PromptsFile = ParseString("VOICEAGENT_PROMPTS_FILE", cfg.PromptsFile)
	cfg.PromptsWatch = ParseBool("VOICEAGENT_PROMPTS_WATCH", cfg.PromptsWatch)
}

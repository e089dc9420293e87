// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gpt-4o-realtime-preview", cfg.Model)
	assert.Equal(t, "marin", cfg.Voice)
	assert.Equal(t, "g711_ulaw", cfg.AudioFormat)
	assert.Equal(t, 800*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.UtteranceGap)
	assert.Equal(t, 1200*time.Millisecond, cfg.AudioStartTimeout)
	assert.Equal(t, 0.6, cfg.ConversationTemperature)
	assert.Equal(t, "whisper-1", cfg.TranscriptionModel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "missing api key",
			mutate:  func(c *AppConfig) { c.APIKey = "" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "missing model",
			mutate:  func(c *AppConfig) { c.Model = "" },
			wantErr: "model",
		},
		{
			name:    "negative settle delay",
			mutate:  func(c *AppConfig) { c.SettleDelay = -time.Second },
			wantErr: "delays",
		},
		{
			name:    "zero watchdog timeout",
			mutate:  func(c *AppConfig) { c.AudioStartTimeout = 0 },
			wantErr: "audio start timeout",
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *AppConfig) { c.ConversationTemperature = 3.5 },
			wantErr: "temperature",
		},
		{
			name:    "zero max sessions",
			mutate:  func(c *AppConfig) { c.MaxSessions = 0 },
			wantErr: "max sessions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.APIKey = "sk-test"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listenAddr: \":9999\"\nvoice: cedar\nsettleDelay: 500ms\n",
	), 0o600))

	t.Setenv("VOICEAGENT_VOICE", "marin")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := NewLoader(path, "v0.0.0-test").Load()
	require.NoError(t, err)

	// File overrides defaults.
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	// ENV overrides file.
	assert.Equal(t, "marin", cfg.Voice)
	assert.Equal(t, "sk-test", cfg.APIKey)
	// Defaults survive where neither layer sets a value.
	assert.Equal(t, 1200*time.Millisecond, cfg.AudioStartTimeout)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader("/nonexistent/config.yaml", "v0").Load()
	assert.Error(t, err)
}

func TestLoaderNoFile(t *testing.T) {
	t.Setenv("VOICEAGENT_LISTEN", ":7070")
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "v1.2.3", cfg.Version)
}

func TestEnvParsers(t *testing.T) {
	t.Setenv("VA_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("VA_TEST_INT", 7))
	t.Setenv("VA_TEST_INT", "nope")
	assert.Equal(t, 7, ParseInt("VA_TEST_INT", 7))

	t.Setenv("VA_TEST_BOOL", "yes")
	assert.True(t, ParseBool("VA_TEST_BOOL", false))
	t.Setenv("VA_TEST_BOOL", "0")
	assert.False(t, ParseBool("VA_TEST_BOOL", true))

	t.Setenv("VA_TEST_DUR", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, ParseDuration("VA_TEST_DUR", time.Second))
	t.Setenv("VA_TEST_DUR", "bogus")
	assert.Equal(t, time.Second, ParseDuration("VA_TEST_DUR", time.Second))

	t.Setenv("VA_TEST_FLOAT", "0.8")
	assert.Equal(t, 0.8, ParseFloat("VA_TEST_FLOAT", 0.1))

	assert.Equal(t, "fallback", ParseString("VA_TEST_UNSET", "fallback"))
}

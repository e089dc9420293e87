// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aivify/latvian-voice-agent/internal/health"
	"github.com/Aivify/latvian-voice-agent/internal/orchestrator"
	"github.com/Aivify/latvian-voice-agent/internal/prompts"
	"github.com/Aivify/latvian-voice-agent/internal/registry"
)

func TestWebhookRateLimited(t *testing.T) {
	reg := registry.NewMemory(time.Minute)
	t.Cleanup(func() { _ = reg.Close() })

	orch := orchestrator.New(orchestrator.Config{
		Model:       "gpt-4o-realtime-preview",
		Voice:       "marin",
		AudioFormat: "g711_ulaw",
		MaxSessions: 4,
	}, reg, nil, nil, prompts.NewStore(), orchestrator.NewTracker())

	s := New(Config{WebhookRateLimit: 2, WebhookRateWindow: time.Minute}, orch, health.NewManager("test"))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/openai", strings.NewReader(`{"type":"other"}`))
		req.RemoteAddr = "203.0.113.5:1234"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, http.StatusOK, post().Code)

	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Probes are outside the limited route group.
	probe := httptest.NewRecorder()
	s.Router().ServeHTTP(probe, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, probe.Code)
}

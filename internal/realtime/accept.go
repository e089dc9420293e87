// SPDX-License-Identifier: MIT

package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Aivify/latvian-voice-agent/internal/log"
)

// AcceptError is returned when the remote service rejects call acceptance.
// It is terminal for the call: no streaming session is opened and the accept
// is never retried (retrying a successful accept could re-provision the
// remote call).
type AcceptError struct {
	Status int
	Body   string
}

func (e *AcceptError) Error() string {
	return fmt.Sprintf("accept rejected with status %d: %s", e.Status, e.Body)
}

// Acceptor issues the one-shot accept request that binds session parameters
// to a call identifier.
type Acceptor struct {
	client  *http.Client
	apiBase string
	apiKey  string
}

// NewAcceptor creates an Acceptor against the given API base URL
// (e.g. "https://api.openai.com").
func NewAcceptor(apiBase, apiKey string) *Acceptor {
	return &Acceptor{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: apiBase,
		apiKey:  apiKey,
	}
}

// Accept performs the accept request for callID. A non-2xx response yields a
// *AcceptError.
func (a *Acceptor) Accept(ctx context.Context, callID string, cfg SessionConfig) error {
	logger := log.WithComponentFromContext(ctx, "acceptor")

	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal accept body: %w", err)
	}

	acceptURL := fmt.Sprintf("%s/v1/realtime/calls/%s/accept", a.apiBase, url.PathEscape(callID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, acceptURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build accept request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Error().
			Str("event", "call.accept_failed").
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("remote service rejected call acceptance")
		return &AcceptError{Status: resp.StatusCode, Body: string(respBody)}
	}

	logger.Info().
		Str("event", "call.accepted").
		Msg("call accepted by remote service")
	return nil
}

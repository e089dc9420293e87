// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Aivify/latvian-voice-agent/internal/log"
	"github.com/Aivify/latvian-voice-agent/internal/metrics"
	"github.com/Aivify/latvian-voice-agent/internal/orchestrator"
	"github.com/Aivify/latvian-voice-agent/internal/registry"
)

const eventCallIncoming = "realtime.call.incoming"

// webhookEvent is the delivery envelope. The call identifier has appeared
// under several names across platform revisions; all are accepted.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		CallID string `json:"call_id"`
		ID     string `json:"id"`
		Call   struct {
			ID string `json:"id"`
		} `json:"call"`
	} `json:"data"`
}

func (e *webhookEvent) callID() string {
	if e.Data.CallID != "" {
		return e.Data.CallID
	}
	if e.Data.ID != "" {
		return e.Data.ID
	}
	return e.Data.Call.ID
}

// handleWebhook processes one webhook delivery. Well-formed deliveries are
// always answered 200: the sender retries non-2xx responses and a retry can
// never help once the event reached the orchestrator.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "webhook")

	var ev webhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ev); err != nil {
		metrics.IncCallIncoming("invalid")
		logger.Warn().Err(err).
			Str("event", "webhook.invalid_payload").
			Msg("unparseable webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_payload"})
		return
	}

	if ev.Type != eventCallIncoming {
		metrics.IncCallIncoming("ignored")
		logger.Debug().
			Str("event", "webhook.ignored_type").
			Str("type", ev.Type).
			Msg("ignoring webhook event type")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// A delivery without a call id can never succeed; acknowledging it keeps
	// the platform from redelivering it forever.
	callID := ev.callID()
	if callID == "" {
		metrics.IncCallIncoming("invalid")
		logger.Warn().
			Str("event", "webhook.missing_call_id").
			Msg("incoming call event without call id, ignoring")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	decision, err := s.orch.HandleIncomingCall(r.Context(), callID)
	switch {
	case errors.Is(err, orchestrator.ErrCapacity):
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	case err != nil:
		// The accept failed terminally; a webhook retry must not re-trigger
		// it, so the delivery is still acknowledged.
		logger.Error().Err(err).
			Str(log.FieldCallID, callID).
			Str("event", "webhook.call_failed").
			Msg("incoming call could not be accepted")
		writeJSON(w, http.StatusOK, map[string]string{"status": "failed"})
	case decision != registry.Proceed:
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aivify/latvian-voice-agent/internal/log"
	"github.com/Aivify/latvian-voice-agent/internal/metrics"
	"github.com/Aivify/latvian-voice-agent/internal/prompts"
	"github.com/Aivify/latvian-voice-agent/internal/realtime"
	"github.com/Aivify/latvian-voice-agent/internal/registry"
)

// ErrCapacity is returned when no session slot is available for a new call.
var ErrCapacity = errors.New("session capacity reached")

// AcceptFunc issues the accept request binding session parameters to a call.
type AcceptFunc func(ctx context.Context, callID string, cfg realtime.SessionConfig) error

// DialFunc opens the streaming channel for an accepted call.
type DialFunc func(ctx context.Context, callID string, cfg realtime.SessionConfig) (realtime.Channel, error)

// Config holds the session parameters the orchestrator binds to every call.
type Config struct {
	Model        string
	Voice        string
	AudioFormat  string
	MaxSessions  int
	Timing       Timing
	Conversation Conversation
}

// Orchestrator owns the call lifecycle from webhook notification to session
// teardown: gate, accept, dial, sequence, finish.
type Orchestrator struct {
	cfg      Config
	registry registry.Registry
	accept   AcceptFunc
	dial     DialFunc
	prompts  *prompts.Store
	tracker  *Tracker
}

// New wires an orchestrator. accept and dial are injectable so tests can run
// without a remote service.
func New(cfg Config, reg registry.Registry, accept AcceptFunc, dial DialFunc, store *prompts.Store, tracker *Tracker) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		accept:   accept,
		dial:     dial,
		prompts:  store,
		tracker:  tracker,
	}
}

// Tracker exposes the session tracker for shutdown and health wiring.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// HandleIncomingCall processes one call notification. It is safe to call
// concurrently with duplicate deliveries of the same call id; at most one
// accept and one session result. The returned decision reports what the gate
// saw; a nil error with a non-Proceed decision is a benign duplicate.
func (o *Orchestrator) HandleIncomingCall(ctx context.Context, callID string) (registry.Decision, error) {
	ctx = log.ContextWithCallID(ctx, callID)
	logger := log.WithComponentFromContext(ctx, "orchestrator")

	if o.tracker.Count() >= o.cfg.MaxSessions {
		metrics.IncCallIncoming("capacity")
		logger.Warn().
			Str("event", "call.rejected_capacity").
			Int("active", o.tracker.Count()).
			Msg("rejecting call, session capacity reached")
		return registry.Proceed, ErrCapacity
	}

	decision, err := o.registry.TryBeginAccept(ctx, callID)
	if err != nil {
		metrics.IncCallIncoming("registry_error")
		return decision, fmt.Errorf("registry gate: %w", err)
	}
	if decision != registry.Proceed {
		metrics.IncCallIncoming(decision.String())
		logger.Info().
			Str("event", "call.duplicate_delivery").
			Str("decision", decision.String()).
			Msg("duplicate call notification, no action")
		return decision, nil
	}
	metrics.IncCallIncoming("proceed")

	sessCfg := realtime.SessionConfig{
		Model:             o.cfg.Model,
		Voice:             o.cfg.Voice,
		InputAudioFormat:  o.cfg.AudioFormat,
		OutputAudioFormat: o.cfg.AudioFormat,
		Instructions:      o.prompts.Current().StrictInstructions,
	}

	start := time.Now()
	err = o.accept(ctx, callID, sessCfg)
	metrics.ObserveAcceptDuration(time.Since(start))
	metrics.IncCallAccept(err == nil)
	if err != nil {
		if markErr := o.registry.MarkAcceptFailed(ctx, callID); markErr != nil {
			logger.Error().Err(markErr).
				Str("event", "call.mark_failed_error").
				Msg("could not record accept failure")
		}
		return decision, fmt.Errorf("accept call: %w", err)
	}

	if err := o.registry.MarkAccepted(ctx, callID); err != nil {
		logger.Error().Err(err).
			Str("event", "call.mark_accepted_error").
			Msg("could not record acceptance, continuing with session")
	}

	// The webhook request context dies when the handler returns; the session
	// keeps only its log values.
	go o.runSession(context.WithoutCancel(ctx), callID, sessCfg)
	return decision, nil
}

func (o *Orchestrator) runSession(ctx context.Context, callID string, cfg realtime.SessionConfig) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unregister := o.tracker.Register(callID, cancel)
	defer unregister()

	logger := log.WithComponentFromContext(ctx, "session")
	metrics.SessionStarted()
	start := time.Now()
	defer func() {
		metrics.SessionEnded(time.Since(start))
		if err := o.registry.Finish(context.WithoutCancel(ctx), callID); err != nil {
			logger.Warn().Err(err).
				Str("event", "session.finish_error").
				Msg("could not mark call finished")
		}
	}()

	ch, err := o.dial(sessionCtx, callID, cfg)
	if err != nil {
		metrics.IncChannelFailure("dial")
		logger.Error().Err(err).
			Str("event", "session.dial_failed").
			Msg("could not open streaming channel")
		return
	}
	defer func() { _ = ch.Close() }()

	seq := NewSequencer(ctx, ch, cfg, o.prompts.Current(), o.cfg.Timing, o.cfg.Conversation)
	if err := seq.Run(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).
			Str("event", "session.ended_abnormally").
			Str(log.FieldPhase, seq.Phase().String()).
			Dur("duration", time.Since(start)).
			Msg("session ended abnormally")
		return
	}

	logger.Info().
		Str("event", "session.ended").
		Dur("duration", time.Since(start)).
		Msg("session ended")
}

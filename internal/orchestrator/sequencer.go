// SPDX-License-Identifier: MIT

// Package orchestrator drives accepted calls through the scripted opening
// phases and hands them off to free conversation. One sequencer goroutine
// owns each call session; all phase state is goroutine-local.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aivify/latvian-voice-agent/internal/log"
	"github.com/Aivify/latvian-voice-agent/internal/metrics"
	"github.com/Aivify/latvian-voice-agent/internal/prompts"
	"github.com/Aivify/latvian-voice-agent/internal/realtime"
)

// Phase is the position of a call in the scripted opening. Phases only ever
// advance; there is no way back from Conversation.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseNotice
	PhaseIntro
	PhaseConversation
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseNotice:
		return "notice"
	case PhaseIntro:
		return "intro"
	case PhaseConversation:
		return "conversation"
	default:
		return "unknown"
	}
}

// Timing holds the scripted-phase delays.
type Timing struct {
	// SettleDelay is the pause after the silencing session update before the
	// first utterance, giving the media path time to stabilize.
	SettleDelay time.Duration
	// UtteranceGap is the pause between consecutive scripted utterances.
	UtteranceGap time.Duration
	// AudioStartTimeout bounds the wait from requesting an utterance to
	// hearing its audio begin.
	AudioStartTimeout time.Duration
}

// Conversation holds the hand-off parameters installed when the scripted
// phases are done.
type Conversation struct {
	Temperature        float64
	TranscriptionModel string
}

// Sequencer runs the phase state machine for one call over one channel.
type Sequencer struct {
	channel      realtime.Channel
	session      realtime.SessionConfig
	prompts      prompts.Prompts
	timing       Timing
	conversation Conversation
	logger       zerolog.Logger

	phase Phase
	dog   *watchdog

	// Utterance in flight. pendingID is empty while awaiting the service's
	// response allocation.
	pendingID      string
	awaitingCreate bool
	currentText    string

	// Response ids whose audio start was observed, kept to ignore stale
	// watchdog expirations.
	audioConfirmed map[string]bool
	// Phases that already consumed their single watchdog retry.
	retried map[Phase]bool
}

// NewSequencer builds a sequencer for one call session. The prompts snapshot
// is taken once; a hot-reload mid-call never changes a running script.
func NewSequencer(ctx context.Context, ch realtime.Channel, cfg realtime.SessionConfig, p prompts.Prompts, timing Timing, conv Conversation) *Sequencer {
	return &Sequencer{
		channel:        ch,
		session:        cfg,
		prompts:        p,
		timing:         timing,
		conversation:   conv,
		logger:         log.WithComponentFromContext(ctx, "sequencer"),
		phase:          PhaseInit,
		dog:            newWatchdog(),
		audioConfirmed: make(map[string]bool),
		retried:        make(map[Phase]bool),
	}
}

// Run drives the call until the channel closes or ctx is canceled. It blocks
// for the whole call lifetime and must run in its own goroutine.
func (s *Sequencer) Run(ctx context.Context) error {
	defer s.dog.Disarm()

	// The full media configuration is restated here so the silencing update
	// never strips what the accept request established.
	if err := s.channel.UpdateSession(realtime.SessionUpdate{
		Modalities:        []string{"audio", "text"},
		Instructions:      s.prompts.StrictInstructions,
		Voice:             s.session.Voice,
		InputAudioFormat:  s.session.InputAudioFormat,
		OutputAudioFormat: s.session.OutputAudioFormat,
		Temperature:       realtime.Temp(0),
	}); err != nil {
		return fmt.Errorf("install strict session: %w", err)
	}
	s.logger.Debug().
		Str("event", "sequencer.strict_installed").
		Msg("turn detection disabled, strict instructions installed")

	if err := sleepCtx(ctx, s.timing.SettleDelay); err != nil {
		return err
	}
	if err := s.beginUtterance(PhaseNotice); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case id := <-s.dog.Fired():
			if err := s.onWatchdogFired(ctx, id); err != nil {
				return err
			}

		case ev, ok := <-s.channel.Events():
			if !ok {
				return fmt.Errorf("event stream ended without close event")
			}
			done, err := s.onEvent(ctx, ev)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (s *Sequencer) onEvent(ctx context.Context, ev realtime.Event) (done bool, err error) {
	switch ev := ev.(type) {
	case realtime.ResponseCreated:
		if s.awaitingCreate {
			s.awaitingCreate = false
			s.pendingID = ev.ID
			s.dog.Arm(ev.ID, s.timing.AudioStartTimeout)
			s.logger.Debug().
				Str("event", "sequencer.utterance_allocated").
				Str(log.FieldResponseID, ev.ID).
				Str(log.FieldPhase, s.phase.String()).
				Msg("utterance response allocated")
		}
		return false, nil

	case realtime.AudioStarted:
		s.audioConfirmed[ev.ID] = true
		if ev.ID == s.pendingID {
			s.dog.Disarm()
			s.logger.Debug().
				Str("event", "sequencer.audio_started").
				Str(log.FieldResponseID, ev.ID).
				Bool("implicit", ev.Implicit).
				Msg("utterance audio started")
		}
		return false, nil

	case realtime.ResponseCompleted:
		if ev.ID != s.pendingID {
			return false, nil
		}
		s.dog.Disarm()
		s.pendingID = ""
		return false, s.advance(ctx)

	case realtime.ResponseFailed:
		if ev.ID == "" || ev.ID != s.pendingID {
			// Service-level notices and stale responses are logged, never
			// acted on.
			s.logger.Warn().
				Str("event", "sequencer.service_error").
				Str(log.FieldResponseID, ev.ID).
				Str("reason", ev.Reason).
				Msg("non-fatal service error")
			return false, nil
		}
		s.dog.Disarm()
		s.pendingID = ""
		s.logger.Warn().
			Str("event", "sequencer.utterance_failed").
			Str(log.FieldResponseID, ev.ID).
			Str(log.FieldPhase, s.phase.String()).
			Str("reason", ev.Reason).
			Msg("scripted utterance failed, skipping ahead")
		return false, s.advance(ctx)

	case realtime.ChannelClosed:
		s.logger.Info().
			Str("event", "sequencer.channel_closed").
			Int("code", ev.Code).
			Str("reason", ev.Reason).
			Str(log.FieldPhase, s.phase.String()).
			Msg("channel closed")
		if s.phase == PhaseConversation {
			return true, nil
		}
		metrics.IncChannelFailure("closed_mid_script")
		return true, fmt.Errorf("channel closed during scripted phase %s (code %d)", s.phase, ev.Code)

	case realtime.ChannelError:
		metrics.IncChannelFailure("transport")
		return true, fmt.Errorf("channel failed: %w", ev.Err)

	default:
		return false, nil
	}
}

// onWatchdogFired handles an expired audio-start window. Each scripted phase
// gets exactly one retry; a second expiration skips ahead.
func (s *Sequencer) onWatchdogFired(ctx context.Context, responseID string) error {
	if responseID != s.pendingID || s.audioConfirmed[responseID] {
		return nil
	}
	if s.phase == PhaseConversation {
		return nil
	}

	if !s.retried[s.phase] {
		s.retried[s.phase] = true
		metrics.IncUtteranceRetry(s.phase.String())
		s.logger.Warn().
			Str("event", "sequencer.watchdog_retry").
			Str(log.FieldResponseID, responseID).
			Str(log.FieldPhase, s.phase.String()).
			Msg("no audio within window, retrying utterance once")
		return s.speak(s.currentText)
	}

	s.logger.Error().
		Str("event", "sequencer.watchdog_exhausted").
		Str(log.FieldResponseID, responseID).
		Str(log.FieldPhase, s.phase.String()).
		Msg("no audio after retry, skipping utterance")
	s.pendingID = ""
	return s.advance(ctx)
}

// advance moves to the phase after the current one.
func (s *Sequencer) advance(ctx context.Context) error {
	switch s.phase {
	case PhaseNotice:
		if err := sleepCtx(ctx, s.timing.UtteranceGap); err != nil {
			return err
		}
		return s.beginUtterance(PhaseIntro)
	case PhaseIntro:
		return s.handOff()
	default:
		return nil
	}
}

// beginUtterance enters phase and requests its scripted text.
func (s *Sequencer) beginUtterance(phase Phase) error {
	s.enterPhase(phase)
	switch phase {
	case PhaseNotice:
		s.currentText = s.prompts.Notice
	case PhaseIntro:
		s.currentText = s.prompts.Intro
	}
	return s.speak(s.currentText)
}

func (s *Sequencer) speak(text string) error {
	s.pendingID = ""
	s.awaitingCreate = true
	if err := s.channel.Speak(text); err != nil {
		return fmt.Errorf("speak %s: %w", s.phase, err)
	}
	return nil
}

// handOff installs the conversational session configuration. After this the
// service takes over turn-taking; the sequencer only drains events until the
// channel closes.
func (s *Sequencer) handOff() error {
	s.enterPhase(PhaseConversation)
	s.pendingID = ""
	s.awaitingCreate = false
	s.dog.Disarm()

	err := s.channel.UpdateSession(realtime.SessionUpdate{
		TurnDetection:           &realtime.TurnDetection{Type: "server_vad"},
		InputAudioTranscription: &realtime.Transcription{Model: s.conversation.TranscriptionModel},
		Instructions:            s.prompts.PersonaInstructions,
		Temperature:             realtime.Temp(s.conversation.Temperature),
	})
	if err != nil {
		return fmt.Errorf("install conversation session: %w", err)
	}
	s.logger.Info().
		Str("event", "sequencer.handoff_complete").
		Msg("scripted phases done, conversation mode active")
	return nil
}

func (s *Sequencer) enterPhase(phase Phase) {
	old := s.phase
	s.phase = phase
	metrics.IncPhaseTransition(phase.String())
	s.logger.Info().
		Str("event", "sequencer.phase_transition").
		Str(log.FieldOldPhase, old.String()).
		Str(log.FieldNewPhase, phase.String()).
		Msg("phase transition")
}

// Phase returns the sequencer's current phase. Only safe from the goroutine
// running Run; exported for tests.
func (s *Sequencer) Phase() Phase {
	return s.phase
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

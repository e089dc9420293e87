// SPDX-License-Identifier: MIT

package realtime

import "fmt"

// Event is the normalized form of the channel's inbound messages, consumed
// by the phase sequencer as a closed set of variants.
type Event interface {
	event()
}

// ResponseCreated signals the service has allocated a response for a
// requested utterance.
type ResponseCreated struct {
	ID string
}

// AudioStarted signals audio playback began for a response. Implicit marks
// the variant inferred from the first audio data fragment when the explicit
// start event is absent or delayed; both conditions satisfy the same logical
// event and are treated identically downstream.
type AudioStarted struct {
	ID       string
	Implicit bool
}

// ResponseCompleted signals the response reached its terminal done state.
type ResponseCompleted struct {
	ID string
}

// ResponseFailed signals a single-utterance failure.
type ResponseFailed struct {
	ID     string
	Reason string
}

// ChannelClosed signals the transport closed. Terminal for the session.
type ChannelClosed struct {
	Code   int
	Reason string
}

// ChannelError signals a transport-level failure. Terminal for the session.
type ChannelError struct {
	Err error
}

func (ResponseCreated) event()   {}
func (AudioStarted) event()      {}
func (ResponseCompleted) event() {}
func (ResponseFailed) event()    {}
func (ChannelClosed) event()     {}
func (ChannelError) event()      {}

func (e ChannelError) Error() string {
	return fmt.Sprintf("channel error: %v", e.Err)
}

// Wire message types of the remote service.
const (
	wireSessionUpdate  = "session.update"
	wireResponseCreate = "response.create"

	wireResponseCreated = "response.created"
	wireAudioStarted    = "response.output_audio_buffer.started"
	wireAudioDelta      = "response.output_audio.delta"
	wireResponseDone    = "response.done"
	wireResponseFailed  = "response.failed"
	wireError           = "error"
)

type wireEvent struct {
	Type     string           `json:"type"`
	Response *wireResponse    `json:"response,omitempty"`
	Error    *wireErrorDetail `json:"error,omitempty"`
}

type wireResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type wireErrorDetail struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *wireErrorDetail) String() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// SPDX-License-Identifier: MIT

// Package realtime talks to the remote realtime speech service: the one-shot
// call accept endpoint and the persistent bidirectional channel bound to a
// call. Wire field names are a contract with the service and must not be
// renamed.
package realtime

// SessionConfig bundles the session-level parameters bound to a call at
// acceptance. The channel must be opened with the same codec and voice
// parameters; a mismatch is a caller error.
type SessionConfig struct {
	Model             string `json:"model"`
	Voice             string `json:"voice"`
	InputAudioFormat  string `json:"input_audio_format"`
	OutputAudioFormat string `json:"output_audio_format"`
	Instructions      string `json:"instructions"`
}

// TurnDetection selects the service's automatic turn-taking mode.
type TurnDetection struct {
	Type string `json:"type"`
}

// Transcription selects the live input transcription model.
type Transcription struct {
	Model string `json:"model"`
}

// SessionUpdate carries a session-wide configuration update. TurnDetection
// and InputAudioTranscription intentionally lack omitempty: an explicit JSON
// null is the wire encoding for "disabled" and must always be present.
type SessionUpdate struct {
	TurnDetection           *TurnDetection `json:"turn_detection"`
	InputAudioTranscription *Transcription `json:"input_audio_transcription"`
	Instructions            string         `json:"instructions,omitempty"`
	Temperature             *float64       `json:"temperature,omitempty"`
	Modalities              []string       `json:"modalities,omitempty"`
	InputAudioFormat        string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string         `json:"output_audio_format,omitempty"`
	Voice                   string         `json:"voice,omitempty"`
}

// Temp returns a pointer for SessionUpdate.Temperature; zero is a meaningful
// value (deterministic synthesis) and must survive marshalling.
func Temp(v float64) *float64 {
	return &v
}

// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldCallID     = "call_id"
	FieldResponseID = "response_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldPhase    = "phase"
	FieldOldPhase = "old_phase"
	FieldNewPhase = "new_phase"
)

// SPDX-License-Identifier: MIT

// Package registry tracks which call identifiers have been accepted and
// which already have an active orchestration session. It is the only state
// shared between concurrent webhook deliveries; all updates are
// check-and-set so a retried delivery can never trigger a second accept or
// a second session.
package registry

import "context"

// Decision is the outcome of TryBeginAccept.
type Decision int

const (
	// Proceed means the caller won the race and must accept the call.
	Proceed Decision = iota
	// AlreadyInFlight means another delivery is currently accepting this call.
	AlreadyInFlight
	// AlreadyAccepted means the call was accepted and a session exists or existed.
	AlreadyAccepted
	// AlreadyFailed means a previous accept attempt failed terminally.
	AlreadyFailed
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case AlreadyInFlight:
		return "already_in_flight"
	case AlreadyAccepted:
		return "already_accepted"
	case AlreadyFailed:
		return "already_failed"
	default:
		return "unknown"
	}
}

// Registry is the idempotency ledger for inbound calls. Entries expire after
// a TTL so the ledger does not grow without bound; an entry may also be
// marked finished once its call ends.
type Registry interface {
	// TryBeginAccept atomically claims the call for acceptance. Exactly one
	// concurrent caller per call ID observes Proceed.
	TryBeginAccept(ctx context.Context, callID string) (Decision, error)

	// MarkAccepted records that the accept request succeeded and an
	// orchestration session is being opened.
	MarkAccepted(ctx context.Context, callID string) error

	// MarkAcceptFailed records a terminal accept failure. The call is not
	// retried.
	MarkAcceptFailed(ctx context.Context, callID string) error

	// Finish records that the call's session has ended. The entry is kept
	// (until TTL) so late duplicate deliveries still no-op.
	Finish(ctx context.Context, callID string) error

	// Close releases registry resources.
	Close() error
}

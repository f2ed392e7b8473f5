// Package push contains the backend abstraction that turns a device token
// into a provider-specific delivery call, plus the dispatcher that routes
// notification intents to the right backend.
package push

import "fmt"

// Outcome is the normalized result every backend maps its provider-specific
// responses into. The set is closed; Dispatcher logic never inspects
// provider internals.
type Outcome struct {
	kind outcomeKind
	// code carries the raw provider code for OutcomeUnknown.
	code int
}

type outcomeKind int

const (
	kindDelivered outcomeKind = iota
	kindTokenBlocked
	kindPermanentFailure
	kindTransientFailure
	kindInitFailure
	kindUnknownBackend
	kindUnknown
)

var (
	// Delivered: the provider acknowledged the push.
	Delivered = Outcome{kind: kindDelivered}
	// TokenBlocked: the device is no longer registered; the sender should
	// stop addressing this token.
	TokenBlocked = Outcome{kind: kindTokenBlocked}
	// PermanentFailure: the request will not succeed on retry
	// (bad app id, malformed payload).
	PermanentFailure = Outcome{kind: kindPermanentFailure}
	// TransientFailure: provider-side or network error, safe to retry later.
	TransientFailure = Outcome{kind: kindTransientFailure}
	// InitFailure: the backend could not be constructed and is unavailable.
	InitFailure = Outcome{kind: kindInitFailure}
	// UnknownBackend: no configured backend matches the intent.
	UnknownBackend = Outcome{kind: kindUnknownBackend}
)

// Unknown wraps an unrecognized provider code. Treated conservatively as
// non-retryable.
func Unknown(code int) Outcome {
	return Outcome{kind: kindUnknown, code: code}
}

// Code returns the raw provider code carried by an Unknown outcome, zero
// otherwise.
func (o Outcome) Code() int { return o.code }

// Delivered reports whether the push was acknowledged.
func (o Outcome) Delivered() bool { return o.kind == kindDelivered }

// Retryable reports whether a later attempt for the same token may succeed.
func (o Outcome) Retryable() bool { return o.kind == kindTransientFailure }

// Blocked reports whether the token should no longer be addressed.
func (o Outcome) Blocked() bool { return o.kind == kindTokenBlocked }

func (o Outcome) String() string {
	switch o.kind {
	case kindDelivered:
		return "delivered"
	case kindTokenBlocked:
		return "token_blocked"
	case kindPermanentFailure:
		return "permanent_failure"
	case kindTransientFailure:
		return "transient_failure"
	case kindInitFailure:
		return "init_failure"
	case kindUnknownBackend:
		return "unknown_backend"
	default:
		return fmt.Sprintf("unknown_code_%d", o.code)
	}
}

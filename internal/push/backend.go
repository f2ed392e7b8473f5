package push

import "context"

// Backend is the interface all push providers must implement. A constructed
// Backend is safe for concurrent Send calls; construction fails when
// required credentials are absent or invalid, which is fatal at startup.
type Backend interface {
	// Send delivers a push notification for the given device token and
	// always returns an Outcome, never panics.
	Send(ctx context.Context, token string) Outcome
	Name() string
}

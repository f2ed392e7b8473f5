package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/logging"
	"github.com/gsanchietti/fpush/internal/metrics"
)

// Intent is a single notification request derived from an inbound protocol
// event: a device token plus the app domain that selects the backend.
type Intent struct {
	// Token is the opaque device token.
	Token string
	// AppID selects the backend; for the component protocol this is the
	// domain part of the addressed JID (e.g. "acrobits.push.example.org").
	AppID string
}

// Dispatcher routes notification intents to the configured backends. The
// backend map is built once at startup and read-only afterwards, so
// Dispatch is safe for concurrent use.
type Dispatcher struct {
	backends map[string]Backend
}

// NewDispatcher constructs every backend named in the settings. Any
// configured backend that cannot be constructed aborts startup: running
// with a partially initialized backend would silently drop notifications.
func NewDispatcher(cfg *config.Config) (*Dispatcher, error) {
	d := &Dispatcher{backends: make(map[string]Backend)}

	if cfg.Acrobits != nil {
		b, err := NewAcrobits(cfg.Acrobits)
		if err != nil {
			return nil, err
		}
		if err := d.register(cfg.Acrobits.JID, b); err != nil {
			return nil, err
		}
	}
	if cfg.Apns != nil {
		b, err := NewApns(cfg.Apns)
		if err != nil {
			return nil, err
		}
		if err := d.register(cfg.Apns.JID, b); err != nil {
			return nil, err
		}
	}
	if cfg.Gotify != nil {
		b, err := NewGotify(cfg.Gotify)
		if err != nil {
			return nil, err
		}
		if err := d.register(cfg.Gotify.JID, b); err != nil {
			return nil, err
		}
	}

	if len(d.backends) == 0 {
		return nil, fmt.Errorf("no push backend configured")
	}
	return d, nil
}

func (d *Dispatcher) register(jid string, b Backend) error {
	key := strings.ToLower(jid)
	if key == "" {
		return fmt.Errorf("%s: jid is not configured", b.Name())
	}
	if _, dup := d.backends[key]; dup {
		return fmt.Errorf("duplicate backend jid %q", jid)
	}
	d.backends[key] = b
	logging.Get().Info().Str("backend", b.Name()).Str("jid", key).Msg("registered push backend")
	return nil
}

// Backends returns the number of registered backends.
func (d *Dispatcher) Backends() int { return len(d.backends) }

// Dispatch looks up the backend for the intent and forwards the token.
// Every outcome is logged with enough context to act on; no outcome
// affects other in-flight notifications or connection health.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) Outcome {
	backend, ok := d.backends[strings.ToLower(intent.AppID)]
	if !ok {
		logging.Get().Warn().Str("app", intent.AppID).Str("token", intent.Token).Msg("no backend for app id")
		metrics.IncPush("none", UnknownBackend.String())
		return UnknownBackend
	}

	start := time.Now()
	outcome := backend.Send(ctx, intent.Token)
	metrics.ObservePushDuration(time.Since(start).Seconds())
	metrics.IncPush(backend.Name(), outcome.String())

	evt := logging.Get().Info()
	if !outcome.Delivered() {
		evt = logging.Get().Warn()
	}
	evt.Str("backend", backend.Name()).Str("token", intent.Token).Stringer("outcome", outcome).Msg("push dispatched")
	return outcome
}

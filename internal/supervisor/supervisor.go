// Package supervisor owns the component-connection lifecycle: connect, run
// the message loop until failure, back off for a fixed interval, retry
// forever.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/logging"
	"github.com/gsanchietti/fpush/internal/metrics"
	"github.com/gsanchietti/fpush/internal/push"
	"github.com/gsanchietti/fpush/internal/xmpp"
)

// State describes where the supervisor loop currently is. There is no
// terminal state: the loop runs until its context is cancelled.
type State int32

const (
	Idle State = iota
	Connecting
	Running
	Backoff
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Backoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Conn is the slice of the component connection the supervisor needs;
// *xmpp.Conn implements it, tests substitute fakes.
type Conn interface {
	Recv() (*xmpp.Message, error)
	Send(v interface{}) error
	Close() error
}

// Dialer establishes a component connection.
type Dialer func(ctx context.Context, opts xmpp.Options) (Conn, error)

// Supervisor is the outer retry loop around the component connection.
// Exactly one connection is live at a time; the message loop of a dead
// connection fully drains before the next connect attempt starts.
type Supervisor struct {
	cfg        *config.Config
	dispatcher *push.Dispatcher

	dial  Dialer
	sleep func(ctx context.Context, d time.Duration) bool

	state atomic.Int32
	wg    sync.WaitGroup
}

// New creates a supervisor using the real XMPP dialer.
func New(cfg *config.Config, dispatcher *push.Dispatcher) *Supervisor {
	return &Supervisor{
		cfg:        cfg,
		dispatcher: dispatcher,
		dial: func(ctx context.Context, opts xmpp.Options) (Conn, error) {
			return xmpp.Dial(ctx, opts)
		},
		sleep: sleepCtx,
	}
}

// State returns the current loop state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Run drives the connect/run/backoff loop until ctx is cancelled.
// Connection failures are never propagated: the loop sleeps exactly the
// configured reconnect interval and tries again.
func (s *Supervisor) Run(ctx context.Context) {
	opts := xmpp.Options{
		Addr:   s.cfg.Component.Addr(),
		Domain: s.cfg.Component.Domain,
		Secret: s.cfg.Component.Secret,
	}
	interval := s.cfg.Component.ReconnectInterval

	for {
		if ctx.Err() != nil {
			s.state.Store(int32(Idle))
			return
		}
		s.state.Store(int32(Connecting))
		logging.Get().Info().Str("server", opts.Addr).Msg("opening component connection")
		metrics.IncConnectAttempt()

		conn, err := s.dial(ctx, opts)
		if err != nil {
			metrics.IncConnectFailure()
			logging.Get().Error().Err(err).Dur("backoff", interval).Msg("component connection failed")
			s.state.Store(int32(Backoff))
			if !s.sleep(ctx, interval) {
				s.state.Store(int32(Idle))
				return
			}
			continue
		}

		metrics.SetLastConnected(time.Now())
		s.state.Store(int32(Running))
		s.messageLoop(ctx, conn)
		metrics.IncDisconnect()
		_ = conn.Close()
		s.wg.Wait() // drain in-flight dispatches before reconnecting

		s.state.Store(int32(Backoff))
		logging.Get().Info().Dur("backoff", interval).Msg("component connection lost, reconnecting")
		if !s.sleep(ctx, interval) {
			s.state.Store(int32(Idle))
			return
		}
	}
}

// messageLoop consumes stanzas until the connection dies, fanning each
// notification intent out to the dispatcher with bounded concurrency.
func (s *Supervisor) messageLoop(ctx context.Context, conn Conn) {
	limit := s.cfg.MaxConcurrentPushes
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	// Unblock Recv when the context is cancelled.
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-loopCtx.Done()
		_ = conn.Close()
	}()

	for {
		msg, err := conn.Recv()
		if err != nil {
			logging.Get().Warn().Err(err).Msg("component stream terminated")
			return
		}

		intent, ok := intentFrom(msg)
		if !ok {
			logging.Get().Debug().Str("from", msg.From).Str("to", msg.To).Msg("ignoring message without device token")
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		s.wg.Add(1)
		go func(msg *xmpp.Message, intent push.Intent) {
			defer s.wg.Done()
			defer func() { <-sem }()
			outcome := s.dispatcher.Dispatch(ctx, intent)
			s.maybeReply(conn, msg, outcome)
		}(msg, intent)
	}
}

// intentFrom extracts the notification intent from a message stanza: the
// localpart of the addressed JID is the device token, the domain selects
// the backend.
func intentFrom(m *xmpp.Message) (push.Intent, bool) {
	if m.Type == "error" {
		return push.Intent{}, false
	}
	token := m.Token()
	if token == "" {
		return push.Intent{}, false
	}
	return push.Intent{Token: token, AppID: m.AppDomain()}, true
}

// maybeReply bounces the triggering stanza with a protocol-level error when
// configured to. The exact reply behaviour is deliberately optional; by
// default the gateway stays silent.
func (s *Supervisor) maybeReply(conn Conn, msg *xmpp.Message, outcome push.Outcome) {
	if !s.cfg.SendErrorReplies {
		return
	}
	var condition string
	switch {
	case outcome.Blocked():
		condition = "gone"
	case outcome == push.UnknownBackend:
		condition = "item-not-found"
	default:
		return
	}
	if err := conn.Send(xmpp.ErrorReply(msg, condition)); err != nil {
		logging.Get().Warn().Err(err).Msg("failed to send error reply")
	}
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false when the
// sleep was interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

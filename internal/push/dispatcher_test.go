package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gsanchietti/fpush/internal/config"
)

type fakeBackend struct {
	name    string
	outcome Outcome
	calls   []string
}

func (f *fakeBackend) Send(ctx context.Context, token string) Outcome {
	f.calls = append(f.calls, token)
	return f.outcome
}

func (f *fakeBackend) Name() string { return f.name }

func TestDispatchRouting(t *testing.T) {
	acro := &fakeBackend{name: "acrobits", outcome: Delivered}
	goti := &fakeBackend{name: "gotify", outcome: TokenBlocked}

	d := &Dispatcher{backends: map[string]Backend{}}
	if err := d.register("acrobits.push.example.org", acro); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := d.register("gotify.push.example.org", goti); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if got := d.Dispatch(context.Background(), Intent{Token: "tok-1", AppID: "acrobits.push.example.org"}); got != Delivered {
		t.Errorf("expected delivered, got %v", got)
	}
	// lookup is case-insensitive, JIDs are
	if got := d.Dispatch(context.Background(), Intent{Token: "tok-2", AppID: "Gotify.Push.Example.Org"}); got != TokenBlocked {
		t.Errorf("expected token blocked, got %v", got)
	}
	if got := d.Dispatch(context.Background(), Intent{Token: "tok-3", AppID: "fcm.push.example.org"}); got != UnknownBackend {
		t.Errorf("expected unknown backend, got %v", got)
	}

	if len(acro.calls) != 1 || acro.calls[0] != "tok-1" {
		t.Errorf("acrobits backend saw %v", acro.calls)
	}
	if len(goti.calls) != 1 || goti.calls[0] != "tok-2" {
		t.Errorf("gotify backend saw %v", goti.calls)
	}
}

func TestRegisterRejectsDuplicatesAndEmptyJID(t *testing.T) {
	d := &Dispatcher{backends: map[string]Backend{}}
	if err := d.register("", &fakeBackend{name: "acrobits"}); err == nil {
		t.Error("expected error for empty jid")
	}
	if err := d.register("a.push.example.org", &fakeBackend{name: "acrobits"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := d.register("A.push.example.org", &fakeBackend{name: "gotify"}); err == nil {
		t.Error("expected error for duplicate jid")
	}
}

func TestNewDispatcherInitFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"acrobits without app id", func(c *config.Config) {
			c.Acrobits = &config.AcrobitsConfig{JID: "a.push.example.org"}
		}},
		{"apns without cert", func(c *config.Config) {
			c.Apns = &config.ApnsConfig{JID: "apns.push.example.org", Topic: "com.example.app"}
		}},
		{"gotify without token", func(c *config.Config) {
			c.Gotify = &config.GotifyConfig{JID: "g.push.example.org", URL: "https://gotify.example.org"}
		}},
		{"no backends at all", func(c *config.Config) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if _, err := NewDispatcher(cfg); err == nil {
				t.Error("expected dispatcher construction to fail")
			}
		})
	}
}

// End-to-end: intent routed to a live HTTP-token backend.
func TestDispatchEndToEnd(t *testing.T) {
	code := 200
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(acrobitsResponse{Code: code, Response: "ok"})
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Acrobits = &config.AcrobitsConfig{
		JID:      "acrobits.push.example.org",
		Endpoint: server.URL,
		AppID:    "com.example.app",
	}
	d, err := NewDispatcher(cfg)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	if d.Backends() != 1 {
		t.Fatalf("expected one backend, got %d", d.Backends())
	}

	intent := Intent{Token: "tok-1", AppID: "acrobits.push.example.org"}
	if got := d.Dispatch(context.Background(), intent); got != Delivered {
		t.Errorf("expected delivered for code 200, got %v", got)
	}

	code = 404
	if got := d.Dispatch(context.Background(), intent); got != TokenBlocked {
		t.Errorf("expected token blocked for code 404, got %v", got)
	}
}

package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/logging"
)

// Gotify delivers pushes to a self-hosted Gotify server. The device token
// is carried in the message payload so the receiving app can wake the
// right account.
type Gotify struct {
	client *http.Client
	url    string
	token  string
}

func NewGotify(cfg *config.GotifyConfig) (*Gotify, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gotify: url is not configured")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("gotify: token is not configured")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Gotify{
		client: &http.Client{Timeout: timeout},
		url:    fmt.Sprintf("%s/message", strings.TrimRight(cfg.URL, "/")),
		token:  cfg.Token,
	}, nil
}

func (g *Gotify) Name() string { return "gotify" }

func (g *Gotify) Send(ctx context.Context, token string) Outcome {
	payload := map[string]interface{}{
		"title":    "New Message",
		"message":  "You have a new message waiting",
		"priority": 5,
		"extras": map[string]interface{}{
			"fpush::device": map[string]string{"token": token},
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		logging.Get().Error().Err(err).Str("backend", g.Name()).Msg("failed to build push request")
		return PermanentFailure
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		logging.Get().Warn().Err(err).Str("backend", g.Name()).Str("token", token).Msg("push request failed")
		return TransientFailure
	}
	defer resp.Body.Close()

	logging.Get().Debug().Str("backend", g.Name()).Str("token", token).Int("status", resp.StatusCode).Msg("provider response")
	return mapGotifyStatus(resp.StatusCode)
}

func mapGotifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Delivered
	case status == 404:
		// application token no longer known to the server
		return TokenBlocked
	case status == 400 || status == 401 || status == 403:
		return PermanentFailure
	case status >= 500:
		return TransientFailure
	default:
		logging.Get().Error().Int("status", status).Msg("unhandled gotify status")
		return Unknown(status)
	}
}

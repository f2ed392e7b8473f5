package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/logging"
)

// DefaultAcrobitsEndpoint is the Acrobits singlepush API URL used when the
// settings file does not override it.
const DefaultAcrobitsEndpoint = "https://pnm.cloudsoftphone.com/pnm2/send"

const defaultAcrobitsMessage = "New Message"

// Acrobits delivers pushes through the Acrobits singlepush API
// (SMS/softphone notifications).
type Acrobits struct {
	client   *http.Client
	endpoint string
	appID    string
	message  string
}

type acrobitsRequest struct {
	Verb        string `json:"verb"`
	AppID       string `json:"AppId"`
	DeviceToken string `json:"DeviceToken"`
	Message     string `json:"Message"`
}

type acrobitsResponse struct {
	Code int `json:"code"`
	// Response is free-text diagnostics, logged but not interpreted.
	Response string `json:"response"`
}

// NewAcrobits constructs the backend. An empty app id is a configuration
// error: the provider would reject every request, so fail construction
// instead of failing per message.
func NewAcrobits(cfg *config.AcrobitsConfig) (*Acrobits, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("acrobits: app_id is not configured")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultAcrobitsEndpoint
	}
	message := cfg.Message
	if message == "" {
		message = defaultAcrobitsMessage
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Acrobits{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		appID:    cfg.AppID,
		message:  message,
	}, nil
}

func (a *Acrobits) Name() string { return "acrobits" }

// Send issues a single singlepush POST and maps the provider code to an
// Outcome. Network failures and unparseable responses are treated as
// transient: the call may have partially succeeded and is safe to retry.
func (a *Acrobits) Send(ctx context.Context, token string) Outcome {
	payload := acrobitsRequest{
		Verb:        "NotifyGenericTextMessage",
		AppID:       a.appID,
		DeviceToken: token,
		Message:     a.message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Get().Error().Err(err).Str("backend", a.Name()).Msg("failed to encode push request")
		return PermanentFailure
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		logging.Get().Error().Err(err).Str("backend", a.Name()).Msg("failed to build push request")
		return PermanentFailure
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		logging.Get().Warn().Err(err).Str("backend", a.Name()).Str("token", token).Msg("push request failed")
		return TransientFailure
	}
	defer resp.Body.Close()

	var ar acrobitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		logging.Get().Warn().Err(err).Str("backend", a.Name()).Str("token", token).Msg("failed to parse provider response")
		return TransientFailure
	}

	logging.Get().Debug().Str("backend", a.Name()).Str("token", token).Int("code", ar.Code).Str("response", ar.Response).Msg("provider response")
	return mapAcrobitsCode(ar.Code)
}

// mapAcrobitsCode is total over all provider codes.
func mapAcrobitsCode(code int) Outcome {
	switch code {
	case 200:
		return Delivered
	case 404:
		// device token no longer registered
		return TokenBlocked
	case 400:
		// invalid AppId or malformed payload
		return PermanentFailure
	case 500:
		return TransientFailure
	default:
		logging.Get().Error().Int("code", code).Msg("unhandled acrobits provider code")
		return Unknown(code)
	}
}

package push

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/logging"
)

// Apns delivers pushes through the certificate-authenticated Apple push
// gateway.
type Apns struct {
	client *apns2.Client
	topic  string
}

// NewApns loads and validates the client certificate. A missing or invalid
// certificate makes the whole backend unavailable, so construction fails
// rather than every Send.
func NewApns(cfg *config.ApnsConfig) (*Apns, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("apns: cert_file is not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("apns: topic is not configured")
	}

	var (
		cert tls.Certificate
		err  error
	)
	if strings.EqualFold(filepath.Ext(cfg.CertFile), ".p12") {
		cert, err = certificate.FromP12File(cfg.CertFile, cfg.CertPassword)
	} else {
		cert, err = certificate.FromPemFile(cfg.CertFile, cfg.CertPassword)
	}
	if err != nil {
		return nil, fmt.Errorf("apns: loading certificate %s: %w", cfg.CertFile, err)
	}

	client := apns2.NewClient(cert)
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}
	return &Apns{client: client, topic: cfg.Topic}, nil
}

func (a *Apns) Name() string { return "apns" }

func (a *Apns) Send(ctx context.Context, token string) Outcome {
	n := &apns2.Notification{
		DeviceToken: token,
		Topic:       a.topic,
		Payload:     []byte(`{"aps":{"alert":"New Message","sound":"default"}}`),
		Priority:    apns2.PriorityHigh,
	}

	res, err := a.client.PushWithContext(ctx, n)
	if err != nil {
		logging.Get().Warn().Err(err).Str("backend", a.Name()).Str("token", token).Msg("push request failed")
		return TransientFailure
	}

	logging.Get().Debug().Str("backend", a.Name()).Str("token", token).Int("status", res.StatusCode).Str("reason", res.Reason).Msg("provider response")
	return mapApnsResponse(res)
}

func mapApnsResponse(res *apns2.Response) Outcome {
	if res.Sent() {
		return Delivered
	}
	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return TokenBlocked
	}
	switch {
	case res.StatusCode == 400 || res.StatusCode == 403 || res.StatusCode == 413:
		return PermanentFailure
	case res.StatusCode == 429 || res.StatusCode >= 500:
		return TransientFailure
	default:
		logging.Get().Error().Int("status", res.StatusCode).Str("reason", res.Reason).Msg("unhandled apns status")
		return Unknown(res.StatusCode)
	}
}

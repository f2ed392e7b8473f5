package push

import (
	"path/filepath"
	"testing"

	"github.com/sideshow/apns2"

	"github.com/gsanchietti/fpush/internal/config"
)

func TestNewApnsInitFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ApnsConfig
	}{
		{"missing cert file", config.ApnsConfig{JID: "apns.push.example.org", Topic: "com.example.app"}},
		{"missing topic", config.ApnsConfig{JID: "apns.push.example.org", CertFile: "cert.pem"}},
		{"unreadable cert", config.ApnsConfig{
			JID:      "apns.push.example.org",
			Topic:    "com.example.app",
			CertFile: filepath.Join(t.TempDir(), "absent.pem"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewApns(&tt.cfg); err == nil {
				t.Error("expected init failure")
			}
		})
	}
}

func TestMapApnsResponse(t *testing.T) {
	tests := []struct {
		name string
		res  apns2.Response
		want Outcome
	}{
		{"sent", apns2.Response{StatusCode: 200}, Delivered},
		{"unregistered", apns2.Response{StatusCode: 410, Reason: apns2.ReasonUnregistered}, TokenBlocked},
		{"bad device token", apns2.Response{StatusCode: 400, Reason: apns2.ReasonBadDeviceToken}, TokenBlocked},
		{"bad topic", apns2.Response{StatusCode: 400, Reason: apns2.ReasonBadTopic}, PermanentFailure},
		{"rate limited", apns2.Response{StatusCode: 429, Reason: apns2.ReasonTooManyRequests}, TransientFailure},
		{"server error", apns2.Response{StatusCode: 500, Reason: apns2.ReasonInternalServerError}, TransientFailure},
		{"unexpected status", apns2.Response{StatusCode: 418}, Unknown(418)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapApnsResponse(&tt.res); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

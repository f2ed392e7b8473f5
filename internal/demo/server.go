// Package demo serves the canned /fetch_messages endpoint used for manual
// and integration testing. It has no data dependency on the push core.
package demo

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gsanchietti/fpush/internal/logging"
)

type fetchMessagesRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	LastID     string `json:"last_id"`
	LastSentID string `json:"last_sent_id"`
	Device     string `json:"device"`
}

type fetchMessagesResponse struct {
	Date         string       `json:"date"`
	ReceivedSmss []smsMessage `json:"received_smss"`
	SentSmss     []smsMessage `json:"sent_smss"`
}

type smsMessage struct {
	SmsID                   string `json:"sms_id"`
	SendingDate             string `json:"sending_date"`
	Sender                  string `json:"sender,omitempty"`
	Recipient               string `json:"recipient,omitempty"`
	SmsText                 string `json:"sms_text"`
	ContentType             string `json:"content_type"`
	DispositionNotification *bool  `json:"disposition_notification,omitempty"`
	Displayed               *bool  `json:"displayed,omitempty"`
	StreamID                string `json:"stream_id,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// Handler returns the demo API routes.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fetch_messages", fetchMessages)
	return mux
}

func fetchMessages(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		logging.Get().Warn().Str("content_type", ct).Msg("unsupported content type")
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req fetchMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.Get().Warn().Err(err).Msg("failed to parse request body")
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" {
		logging.Get().Warn().Msg("empty username or password")
		writeError(w, http.StatusUnauthorized, "Invalid credentials: username and password must not be empty")
		return
	}

	logging.Get().Info().Str("user", req.Username).Str("device", req.Device).Msg("fetching demo messages")

	resp := fetchMessagesResponse{
		Date:         time.Now().UTC().Format(time.RFC3339),
		ReceivedSmss: []smsMessage{},
		SentSmss:     []smsMessage{},
	}
	if req.LastID == "" {
		resp.ReceivedSmss = append(resp.ReceivedSmss, smsMessage{
			SmsID:                   "received-1001",
			SendingDate:             "2024-01-15T10:30:00Z",
			Sender:                  "+1234567890",
			SmsText:                 "Hello, this is a demo received message!",
			ContentType:             "text/plain",
			DispositionNotification: boolPtr(false),
			Displayed:               boolPtr(false),
			StreamID:                "stream-recv-1",
		})
	}
	if req.LastSentID == "" {
		resp.SentSmss = append(resp.SentSmss, smsMessage{
			SmsID:                   "sent-2001",
			SendingDate:             "2024-01-15T11:45:00Z",
			Recipient:               "+9876543210",
			SmsText:                 "This is a demo sent message!",
			ContentType:             "text/plain",
			DispositionNotification: boolPtr(true),
			StreamID:                "stream-sent-1",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ListenAndServe runs the demo server until the listener fails. Intended to
// run in its own goroutine; failures never affect the push pipeline.
func ListenAndServe(addr string) error {
	logging.Get().Info().Str("addr", addr).Msg("starting demo http server")
	server := &http.Server{
		Addr:         addr,
		Handler:      Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

package demo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func postFetch(t *testing.T, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/fetch_messages", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)
	return rec
}

func TestFetchMessagesHappyPath(t *testing.T) {
	rec := postFetch(t, "application/json",
		`{"username":"user","password":"pass","last_id":"","last_sent_id":"","device":"device1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp fetchMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.ReceivedSmss) != 1 || resp.ReceivedSmss[0].SmsID != "received-1001" {
		t.Errorf("unexpected received messages: %+v", resp.ReceivedSmss)
	}
	if len(resp.SentSmss) != 1 || resp.SentSmss[0].SmsID != "sent-2001" {
		t.Errorf("unexpected sent messages: %+v", resp.SentSmss)
	}
	if resp.Date == "" {
		t.Error("expected a timestamp in the response")
	}
}

func TestFetchMessagesWithCursors(t *testing.T) {
	rec := postFetch(t, "application/json",
		`{"username":"user","password":"pass","last_id":"123","last_sent_id":"456","device":"device1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp fetchMessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.ReceivedSmss) != 0 || len(resp.SentSmss) != 0 {
		t.Errorf("expected no new messages, got %+v", resp)
	}
}

func TestFetchMessagesRejectsWrongContentType(t *testing.T) {
	rec := postFetch(t, "text/plain",
		`{"username":"user","password":"pass","device":"device1"}`)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}
}

func TestFetchMessagesRejectsGarbageBody(t *testing.T) {
	rec := postFetch(t, "application/json", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFetchMessagesRejectsEmptyCredentials(t *testing.T) {
	rec := postFetch(t, "application/json",
		`{"username":"","password":"pass","device":"device1"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error field in the body")
	}
}

func TestCharsetSuffixIsAccepted(t *testing.T) {
	rec := postFetch(t, "application/json; charset=utf-8",
		`{"username":"user","password":"pass","device":"device1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

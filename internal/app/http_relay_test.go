package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notegate/internal/config"
)

func postRelayEvent(t *testing.T, server *HTTPServer, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/relay-event", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return response
}

func TestRelayEventDelivered(t *testing.T) {
	fs := &fakeStore{
		isWhitelistedFn: whitelisted(42),
		hasUnmutedNotesFn: func(context.Context, int64, int64) (bool, error) {
			return true, nil
		},
	}
	fm := &fakeMessenger{}
	server := NewHTTPServer(New(config.Config{}, fs, fm))

	rr := postRelayEvent(t, server, `{"user_id":42,"thread_id":9,"owner_id":7}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %v", response)
	}
	if len(fm.sent) != 1 {
		t.Errorf("expected one DM, got %d", len(fm.sent))
	}
}

func TestRelayEventSkipReasonsAreHTTP200(t *testing.T) {
	fs := &fakeStore{} // nobody whitelisted
	server := NewHTTPServer(New(config.Config{}, fs, &fakeMessenger{}))

	rr := postRelayEvent(t, server, `{"user_id":42,"thread_id":9,"owner_id":7}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("skips answer 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	if response["error"] != "user not whitelisted" {
		t.Errorf("expected whitelist skip reason, got %v", response)
	}
}

func TestRelayEventInternalErrorDoesNotLeakDetail(t *testing.T) {
	fs := &fakeStore{
		isWhitelistedFn: func(context.Context, int64) (bool, error) {
			return false, errors.New("pq: SSL connection has been closed unexpectedly")
		},
	}
	server := NewHTTPServer(New(config.Config{}, fs, &fakeMessenger{}))

	rr := postRelayEvent(t, server, `{"user_id":42,"thread_id":9,"owner_id":7}`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	if response["error"] != "internal error" {
		t.Errorf("expected generic error body, got %v", response)
	}
	if strings.Contains(rr.Body.String(), "SSL") {
		t.Error("internal detail leaked into the response body")
	}
}

func TestRelayEventMalformedPayloadIsInternalError(t *testing.T) {
	server := NewHTTPServer(New(config.Config{}, &fakeStore{}, &fakeMessenger{}))

	rr := postRelayEvent(t, server, `{"user_id":`, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestRelayEventTokenGuard(t *testing.T) {
	fs := &fakeStore{
		isWhitelistedFn: whitelisted(42),
		hasUnmutedNotesFn: func(context.Context, int64, int64) (bool, error) {
			return true, nil
		},
	}
	cfg := config.Config{RelayToken: "hunter2"}
	server := NewHTTPServer(New(cfg, fs, &fakeMessenger{}))

	rr := postRelayEvent(t, server, `{"user_id":42,"thread_id":9,"owner_id":7}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr = postRelayEvent(t, server, `{"user_id":42,"thread_id":9,"owner_id":7}`, map[string]string{
		"x-notegate-relay-token": "hunter2",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(New(config.Config{}, &fakeStore{}, &fakeMessenger{}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	response := decodeResponse(t, rr)
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", response)
	}
}

func TestReadyEndpointDegraded(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("dial tcp: connection refused")
		},
	}
	server := NewHTTPServer(New(config.Config{}, fs, &fakeMessenger{}))

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	server := NewHTTPServer(New(config.Config{}, &fakeStore{}, &fakeMessenger{}))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

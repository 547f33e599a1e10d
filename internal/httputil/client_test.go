package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStandardClient_Wraps(t *testing.T) {
	customClient := &http.Client{}
	if NewStandardClient(customClient).Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
	if NewStandardClient(nil).Client != http.DefaultClient {
		t.Error("expected nil to fall back to http.DefaultClient")
	}
}

func TestGetJSON_Server(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			NotFound(w, "no frames yet")
			return
		}
		WriteJSONOK(w, map[string]int{"tick": 7})
	}))
	defer srv.Close()

	client := NewStandardClient(srv.Client())

	var got map[string]int
	if err := GetJSON(client, srv.URL+"/frame", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got["tick"] != 7 {
		t.Errorf("tick = %d, want 7", got["tick"])
	}

	err := GetJSON(client, srv.URL+"/missing", &got)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Message != "no frames yet" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}

func TestGetJSON_Mock(t *testing.T) {
	transport := errors.New("connection refused")
	mock := NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"status":"ok"}`).
		AddResponse(http.StatusOK, `not json`).
		AddResponse(http.StatusBadGateway, ``).
		AddErrorResponse(transport)

	var got map[string]string
	if err := GetJSON(mock, "http://robot.local/health", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}

	if err := GetJSON(mock, "http://robot.local/health", &got); err == nil {
		t.Error("expected decode error")
	}

	err := GetJSON(mock, "http://robot.local/health", &got)
	if err == nil || err.Error() != "http status 502" {
		t.Errorf("unexpected error %v", err)
	}

	if err := GetJSON(mock, "http://robot.local/health", &got); !errors.Is(err, transport) {
		t.Errorf("expected transport error, got %v", err)
	}

	if n := mock.RequestCount(); n != 4 {
		t.Errorf("recorded %d requests, want 4", n)
	}
	if accept := mock.Requests[0].Header.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestMockHTTPClient_DrainedQueue(t *testing.T) {
	mock := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://robot.local/", nil)
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

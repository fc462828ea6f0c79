package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"score": 0.8}`)
	mock.AddResponse(http.StatusServiceUnavailable, "overloaded")

	resp, err := mock.Get("http://example.com/api")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"score": 0.8}` {
		t.Errorf("first response: got status %d body %q", resp.StatusCode, string(body))
	}

	resp2, _ := mock.Get("http://example.com/api")
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second response: got status %d, want %d", resp2.StatusCode, http.StatusServiceUnavailable)
	}

	if mock.RequestCount() != 2 {
		t.Errorf("got %d requests, want 2", mock.RequestCount())
	}
}

func TestMockHTTPClient_RecordsRequests(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "")

	req, _ := http.NewRequest(http.MethodPost, "http://example.com/score", strings.NewReader(`{"a": "b"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	got := mock.GetRequest(0)
	if got == nil {
		t.Fatal("expected request to be recorded")
	}
	if got.Method != http.MethodPost {
		t.Errorf("got method %s, want POST", got.Method)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q", got.Header.Get("Content-Type"))
	}

	if mock.GetRequest(1) != nil {
		t.Error("GetRequest past the recorded requests should return nil")
	}
	if mock.GetRequest(-1) != nil {
		t.Error("GetRequest with negative index should return nil")
	}
}

func TestMockHTTPClient_AddErrorResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	wantErr := errors.New("connection refused")
	mock.AddErrorResponse(wantErr)

	_, err := mock.Get("http://example.com/api")
	if err != wantErr {
		t.Errorf("got error %v, want %v", err, wantErr)
	}
}

func TestStandardClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"sigint": "x"}` {
			t.Errorf("got body %q", string(body))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"score": 0.5}`))
	}))
	defer server.Close()

	client := NewStandardClient(nil)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/score", strings.NewReader(`{"sigint": "x"}`))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"score": 0.5}` {
		t.Errorf("got body %q", string(body))
	}
}

func TestStandardClient_WrapsCustomClient(t *testing.T) {
	customClient := &http.Client{}
	client := NewStandardClient(customClient)
	if client.Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/shiftfetch/internal/core/domain"
)

func TestClient_DoSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shifts/search" {
			t.Errorf("expected path /shifts/search, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Custom") != "yes" {
			t.Errorf("expected custom header to be forwarded")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body["role"] != "cook" {
			t.Errorf("expected role cook, got %v", body["role"])
		}

		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1}})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL + "/", Timeout: 5 * time.Second})

	resp, err := c.Do(context.Background(), domain.RequestDescriptor{
		Method: "post",
		Path:   "shifts/search",
		Body:   map[string]string{"role": "cook"},
	}, http.Header{"X-Custom": []string{"yes"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Status)
	}

	var shifts []struct {
		ID int `json:"id"`
	}
	if err := resp.Decode(&shifts); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(shifts) != 1 || shifts[0].ID != 1 {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if h := c.GetHealth(); !h.Available || h.ErrorRate != 0 {
		t.Errorf("expected healthy client, got %+v", h)
	}
}

func TestClient_DoHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantPayload string
	}{
		{"json payload", http.StatusNotFound, `{"message":"shift not found"}`, `{"message":"shift not found"}`},
		{"text payload", http.StatusBadGateway, "bad gateway", `"bad gateway"`},
		{"empty payload", http.StatusServiceUnavailable, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(Config{BaseURL: server.URL})
			_, err := c.Do(context.Background(), domain.Get("/shifts/9"), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Status != tt.status || !err.IsHTTP() {
				t.Errorf("expected HTTP %d, got %v", tt.status, err)
			}
			if string(err.Payload) != tt.wantPayload {
				t.Errorf("expected payload %q, got %q", tt.wantPayload, err.Payload)
			}
		})
	}
}

func TestClient_DoParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	_, err := c.Do(context.Background(), domain.Get("/shifts"), nil)
	if err == nil || err.Code != domain.CodeParse {
		t.Fatalf("expected PARSE_ERROR, got %v", err)
	}
}

func TestClient_DoNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.Do(context.Background(), domain.Get("/shifts"), nil)
	if err == nil || err.Code != domain.CodeNetwork {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
	if !err.Cacheable() {
		t.Error("expected network errors to be cacheable")
	}
}

func TestClient_DoTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Do(context.Background(), domain.Get("/slow"), nil)
	if err == nil || err.Code != domain.CodeTimeout {
		t.Fatalf("expected TIMEOUT_ERROR, got %v", err)
	}
}

func TestClient_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultRefreshPath {
			t.Errorf("expected refresh path, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("refresh must not carry an authorization header")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refreshToken"] != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a2", "refreshToken": "r2"})
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})

	pair, err := c.Refresh(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.AccessToken != "a2" || pair.RefreshToken != "r2" {
		t.Errorf("unexpected pair %+v", pair)
	}

	_, err = c.Refresh(context.Background(), "expired")
	if !errors.Is(err, domain.ErrRefreshRejected) {
		t.Errorf("expected ErrRefreshRejected, got %v", err)
	}
}

func TestClient_RefreshIncompletePair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"only"}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL})
	if _, err := c.Refresh(context.Background(), "r1"); !errors.Is(err, domain.ErrRefreshRejected) {
		t.Errorf("expected ErrRefreshRejected, got %v", err)
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	// Trailing slash exercises base URL normalization.
	return New(srv.URL+"/", apiKey)
}

func TestTrack_SendsBearerAndBody(t *testing.T) {
	var gotAuth, gotType string
	var gotData json.RawMessage
	c := newTestClient(t, "bk_client_test_key_1234567890", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		gotType, gotData = body.Type, body.Data
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	})

	err := c.Track(context.Background(), "mail.opened", json.RawMessage(`{"folder":"inbox"}`))
	if err != nil {
		t.Fatalf("Track returned error: %v", err)
	}
	if gotAuth != "Bearer bk_client_test_key_1234567890" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotType != "mail.opened" {
		t.Errorf("tracked type = %q, want mail.opened", gotType)
	}
	if string(gotData) != `{"folder":"inbox"}` {
		t.Errorf("tracked data = %s", gotData)
	}
}

func TestTrack_NoAuthHeaderWithoutKey(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	})

	if err := c.Track(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Track returned error: %v", err)
	}
}

func TestDigest_DecodesResponse(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/digest" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Reason string `json:"reason"`
			User   string `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body.Reason != "logout" || body.User != "maya@example.com" {
			t.Errorf("request body = %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"delivered":    true,
			"record_count": 4,
			"dispatch_id":  "d-123",
		})
	})

	res, err := c.Digest(context.Background(), "logout", "maya@example.com")
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	if !res.Delivered || res.RecordCount != 4 || res.DispatchID != "d-123" {
		t.Errorf("result = %+v", res)
	}
}

func TestDigest_ErrorDetailSurfaced(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"detail": "No digest mail route configured"})
	})

	_, err := c.Digest(context.Background(), "", "")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", apiErr.Status)
	}
	if apiErr.Detail != "No digest mail route configured" {
		t.Errorf("Detail = %q", apiErr.Detail)
	}
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.Track(context.Background(), "ping", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Detail != "" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClear_OK(t *testing.T) {
	cleared := false
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/v1/events" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		cleared = true
		json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
	})

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if !cleared {
		t.Error("server never saw the clear request")
	}
}

func TestStatus_OK(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/healthz" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if err := c.Status(context.Background()); err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
}

func TestStatus_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL, "")
	if err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}

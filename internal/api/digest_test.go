package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lumamail/beacon/internal/digest"
)

func TestDigestEndpoint_SendsMail(t *testing.T) {
	f := newTestAPI(t, nil)
	f.seed(t, "mail.opened", "mail.opened", "mail.sent")

	rec := f.do(http.MethodPost, "/v1/digest", `{"reason":"logout","user":"maya@example.com"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp DigestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Delivered || resp.RecordCount != 3 {
		t.Errorf("expected {delivered:true, count:3}, got %+v", resp)
	}
	if resp.DispatchID == "" {
		t.Error("expected a dispatch ID in the response")
	}

	if f.mailer.count() != 1 {
		t.Fatalf("expected 1 mail, got %d", f.mailer.count())
	}
	body := f.mailer.last().TextBody
	if !strings.Contains(body, "maya@example.com") || !strings.Contains(body, "logout") {
		t.Errorf("report missing requester or reason:\n%s", body)
	}
}

func TestDigestEndpoint_EmptyBodyDefaults(t *testing.T) {
	f := newTestAPI(t, nil)
	f.seed(t, "session.started")

	rec := f.do(http.MethodPost, "/v1/digest", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d: %s", rec.Code, rec.Body.String())
	}

	body := f.mailer.last().TextBody
	if !strings.Contains(body, "anonymous") {
		t.Errorf("expected requester to default to the principal:\n%s", body)
	}
	if !strings.Contains(body, "manual") {
		t.Errorf("expected default trigger reason:\n%s", body)
	}
}

func TestDigestEndpoint_EmptyLogStillOK(t *testing.T) {
	f := newTestAPI(t, nil)

	rec := f.do(http.MethodPost, "/v1/digest", `{}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty log, got %d", rec.Code)
	}

	var resp DigestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Delivered || resp.RecordCount != 0 {
		t.Errorf("expected {delivered:true, count:0}, got %+v", resp)
	}
	if f.mailer.count() != 0 {
		t.Errorf("no mail expected for an empty log, got %d", f.mailer.count())
	}
}

func TestDigestEndpoint_NotConfigured(t *testing.T) {
	f := newTestAPI(t, nil)
	f.seed(t, "mail.opened")

	// Rebuild the router with no mail route at all.
	f.handler = NewRouter(&Dependencies{
		Store:      f.store,
		Dispatcher: digest.NewDispatcher(f.store, nil, digest.Config{}, zap.NewNop()),
		Logger:     zap.NewNop(),
	})

	rec := f.do(http.MethodPost, "/v1/digest", `{}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when unconfigured, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDigestEndpoint_DeliveryFailure(t *testing.T) {
	f := newTestAPI(t, nil)
	f.seed(t, "mail.opened")
	f.mailer.err = errors.New("smtp: connection refused")

	rec := f.do(http.MethodPost, "/v1/digest", `{}`, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on delivery failure, got %d: %s", rec.Code, rec.Body.String())
	}

	// The log is untouched and a later dispatch can retry.
	if got := len(f.store.Read()); got != 1 {
		t.Errorf("expected log intact after failed delivery, got %d records", got)
	}
}

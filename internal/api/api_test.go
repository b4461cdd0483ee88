package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/lumamail/beacon/internal/auth"
	"github.com/lumamail/beacon/internal/digest"
	"github.com/lumamail/beacon/internal/eventlog"
	"github.com/lumamail/beacon/internal/mail"
)

// captureMailer records sent messages, optionally failing every send.
type captureMailer struct {
	mu   sync.Mutex
	sent []*mail.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg *mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) last() *mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

type apiFixture struct {
	handler http.Handler
	store   *eventlog.Store
	mailer  *captureMailer
}

// newTestAPI stands up the full router over a real store in a temp dir.
// A nil authenticator runs the API open, like an unconfigured server.
func newTestAPI(t *testing.T, authn auth.Authenticator) *apiFixture {
	t.Helper()

	store := eventlog.New(filepath.Join(t.TempDir(), "events.json"))
	t.Cleanup(func() { store.Close() })

	mailer := &captureMailer{}
	dispatcher := digest.NewDispatcher(store, mailer, digest.Config{
		From: "beacon@example.com",
		To:   []string{"ops@example.com"},
	}, zap.NewNop())

	handler := NewRouter(&Dependencies{
		Store:         store,
		Dispatcher:    dispatcher,
		Authenticator: authn,
		Logger:        zap.NewNop(),
	})
	return &apiFixture{handler: handler, store: store, mailer: mailer}
}

func (f *apiFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// seed appends events through the store and waits for them to land.
func (f *apiFixture) seed(t *testing.T, types ...string) {
	t.Helper()
	for _, typ := range types {
		f.store.Append(typ, nil)
	}
	f.store.Flush()
}

func TestHealthz_Open(t *testing.T) {
	f := newTestAPI(t, rejectAllAuth{})

	rec := f.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz should not require auth, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected healthz body: %s", rec.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := newTestAPI(t, nil)

	rec := f.do(http.MethodOptions, "/v1/events", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing permissive CORS origin header")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Errorf("unexpected allowed methods: %s", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

// rejectAllAuth fails every request with ErrInvalidKey.
type rejectAllAuth struct{}

func (rejectAllAuth) Authenticate(context.Context, string) (*auth.Principal, error) {
	return nil, auth.ErrInvalidKey
}

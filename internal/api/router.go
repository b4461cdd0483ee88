package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lumamail/beacon/internal/auth"
	"github.com/lumamail/beacon/internal/digest"
	"github.com/lumamail/beacon/internal/eventlog"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Store      *eventlog.Store
	Dispatcher *digest.Dispatcher
	// Authenticator may be nil, in which case the API runs open and every
	// caller is the anonymous principal. That is the posture of a
	// single-user local install.
	Authenticator auth.Authenticator
	Logger        *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Telemetry ingress and control (bearer bk_ token when auth is on)
	mux.HandleFunc("POST /v1/events", deps.requireAuth(deps.handleTrack))
	mux.HandleFunc("DELETE /v1/events", deps.requireAuth(deps.handleClear))
	mux.HandleFunc("POST /v1/digest", deps.requireAuth(deps.handleDigest))

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResp{Status: "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

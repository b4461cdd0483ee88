package api

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/lumamail/beacon/internal/digest"
)

// handleDigest implements POST /v1/digest. An empty body is a plain
// "send it now" with defaults; delivery problems map to telemetry-scoped
// statuses so the caller can tell "no route" from "route broken".
func (d *Dependencies) handleDigest(w http.ResponseWriter, r *http.Request) {
	var req DigestRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	requester := req.User
	if requester == "" {
		requester = principalName(principalFromContext(r.Context()))
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	res, err := d.Dispatcher.Dispatch(r.Context(), requester, reason)
	if errors.Is(err, digest.ErrNotConfigured) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "No digest mail route configured"})
		return
	}
	if err != nil {
		d.Logger.Error("digest dispatch failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, ErrorResp{Detail: "Digest delivery failed"})
		return
	}

	writeJSON(w, http.StatusOK, DigestResponse{
		Delivered:   res.Delivered,
		RecordCount: res.RecordCount,
		DispatchID:  res.DispatchID,
	})
}

package api

import "encoding/json"

// --- POST /v1/events ---

// TrackRequest is the JSON body for POST /v1/events.
type TrackRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// --- POST /v1/digest ---

// DigestRequest is the JSON body for POST /v1/digest. Both fields are
// optional; an absent user falls back to the authenticated principal.
type DigestRequest struct {
	Reason string `json:"reason,omitempty"`
	User   string `json:"user,omitempty"`
}

// DigestResponse reports one dispatch back to the caller.
type DigestResponse struct {
	Delivered   bool   `json:"delivered"`
	RecordCount int    `json:"record_count"`
	DispatchID  string `json:"dispatch_id,omitempty"`
}

// --- Shared ---

// StatusResp is the body of plain acknowledgement responses.
type StatusResp struct {
	Status string `json:"status"`
}

// ErrorResp is a standard error response body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

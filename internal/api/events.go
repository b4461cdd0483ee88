package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"
)

// maxTrackBody caps a single event submission. The browser client sends
// small interaction payloads; anything bigger is not telemetry.
const maxTrackBody = 64 << 10

// trackSchema constrains POST /v1/events bodies: a required bounded type
// string plus an optional payload of any JSON shape. Unknown fields are
// rejected so clients cannot smuggle their own timestamps in.
var trackSchema = mustCompileSchema(`{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1, "maxLength": 128},
		"data": {}
	},
	"additionalProperties": false
}`)

func mustCompileSchema(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("track.json", doc); err != nil {
		panic(err)
	}
	sch, err := c.Compile("track.json")
	if err != nil {
		panic(err)
	}
	return sch
}

// handleTrack implements POST /v1/events. The append is fire-and-forget:
// the 202 acknowledges queueing, not a completed write.
func (d *Dependencies) handleTrack(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTrackBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Failed to read request body"})
		return
	}
	if len(body) > maxTrackBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResp{Detail: "Event body exceeds 64KB"})
		return
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if err := trackSchema.Validate(doc); err != nil {
		d.Logger.Debug("rejected event payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Event does not match the expected shape"})
		return
	}

	var req TrackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}

	d.Store.Append(req.Type, req.Data)
	writeJSON(w, http.StatusAccepted, StatusResp{Status: "queued"})
}

// handleClear implements DELETE /v1/events.
func (d *Dependencies) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.Clear(); err != nil {
		d.Logger.Error("failed to clear event log", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to clear event log"})
		return
	}
	d.Logger.Info("event log cleared",
		zap.String("requester", principalName(principalFromContext(r.Context()))),
	)
	writeJSON(w, http.StatusOK, StatusResp{Status: "cleared"})
}

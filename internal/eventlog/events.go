package eventlog

import "encoding/json"

// timestampLayout renders millisecond-precision ISO-8601, always in UTC
// (e.g. 2026-03-09T14:05:01.250Z). Backup filenames derive from the same
// layout with ':' and '.' swapped for '-'.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is the typed view of a log record. Records are stored and moved
// around as raw JSON so that salvaged foreign shapes survive round trips;
// Event is only a lens for the fields the dispatcher cares about.
type Event struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode extracts the typed view from a raw record. Records missing the
// expected fields decode to zero values rather than failing; summaries
// bucket those under an unknown type.
func Decode(rec json.RawMessage) Event {
	var ev Event
	// Best effort: a record that is not even an object yields the zero Event.
	_ = json.Unmarshal(rec, &ev)
	return ev
}

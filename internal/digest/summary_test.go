package digest

import (
	"encoding/json"
	"fmt"
	"testing"
)

func makeRecords(t *testing.T, types ...string) []json.RawMessage {
	t.Helper()
	records := make([]json.RawMessage, 0, len(types))
	for i, typ := range types {
		records = append(records, json.RawMessage(fmt.Sprintf(
			`{"type":%q,"timestamp":"2026-03-09T14:00:%02d.000Z","data":{"n":%d}}`, typ, i, i)))
	}
	return records
}

func TestSummarize_CountsByType(t *testing.T) {
	types := []string{
		"mail.opened", "mail.opened", "mail.opened", "mail.opened",
		"mail.opened", "mail.opened", "mail.opened",
		"mail.sent", "mail.sent", "mail.sent", "mail.sent", "mail.sent",
		"session.started", "session.started", "session.started",
	}
	sum := Summarize(makeRecords(t, types...))

	if sum.Total != 15 {
		t.Errorf("expected total 15, got %d", sum.Total)
	}

	counted := 0
	for _, tc := range sum.Counts {
		counted += tc.Count
	}
	if counted != 15 {
		t.Errorf("per-type counts sum to %d, want 15", counted)
	}

	want := []TypeCount{
		{Type: "mail.opened", Count: 7},
		{Type: "mail.sent", Count: 5},
		{Type: "session.started", Count: 3},
	}
	if len(sum.Counts) != len(want) {
		t.Fatalf("expected %d types, got %d", len(want), len(sum.Counts))
	}
	for i, tc := range want {
		if sum.Counts[i] != tc {
			t.Errorf("counts[%d] = %+v, want %+v", i, sum.Counts[i], tc)
		}
	}
}

func TestSummarize_CountOrderBreaksTiesAlphabetically(t *testing.T) {
	sum := Summarize(makeRecords(t, "b.two", "a.two", "b.two", "a.two", "c.one"))

	got := make([]string, 0, len(sum.Counts))
	for _, tc := range sum.Counts {
		got = append(got, tc.Type)
	}
	want := []string{"a.two", "b.two", "c.one"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestSummarize_RecentKeepsLastTenInOrder(t *testing.T) {
	types := make([]string, 15)
	for i := range types {
		types[i] = fmt.Sprintf("t%d", i)
	}
	sum := Summarize(makeRecords(t, types...))

	if len(sum.Recent) != 10 {
		t.Fatalf("expected 10 recent events, got %d", len(sum.Recent))
	}
	for i, ev := range sum.Recent {
		if want := fmt.Sprintf("t%d", i+5); ev.Type != want {
			t.Errorf("recent[%d] = %q, want %q", i, ev.Type, want)
		}
	}
}

func TestSummarize_FewerThanTenKeepsAll(t *testing.T) {
	sum := Summarize(makeRecords(t, "a", "b", "c"))

	if len(sum.Recent) != 3 {
		t.Fatalf("expected 3 recent events, got %d", len(sum.Recent))
	}
	if sum.Recent[0].Type != "a" || sum.Recent[2].Type != "c" {
		t.Errorf("recent events out of order: %+v", sum.Recent)
	}
}

func TestSummarize_TypelessRecordsBucketAsUnknown(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"a":1}`),
		json.RawMessage(`{"type":"mail.sent","timestamp":"2026-03-09T14:00:00.000Z"}`),
	}
	sum := Summarize(records)

	if sum.Total != 2 {
		t.Fatalf("expected total 2, got %d", sum.Total)
	}
	found := false
	for _, tc := range sum.Counts {
		if tc.Type == unknownType && tc.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an %q bucket, got %+v", unknownType, sum.Counts)
	}
	if sum.Recent[0].Type != unknownType {
		t.Errorf("expected recent[0] bucketed as %q, got %q", unknownType, sum.Recent[0].Type)
	}
}

func TestSummarize_RecentCarriesPayload(t *testing.T) {
	sum := Summarize([]json.RawMessage{
		json.RawMessage(`{"type":"mail.opened","timestamp":"2026-03-09T14:00:00.000Z","data":{"folder":"inbox"}}`),
	})

	if sum.Recent[0].Data != `{"folder":"inbox"}` {
		t.Errorf("unexpected payload: %q", sum.Recent[0].Data)
	}
	if sum.Recent[0].Timestamp != "2026-03-09T14:00:00.000Z" {
		t.Errorf("unexpected timestamp: %q", sum.Recent[0].Timestamp)
	}
}

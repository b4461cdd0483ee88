package digest

import (
	"encoding/json"
	"sort"

	"github.com/lumamail/beacon/internal/eventlog"
)

// recentLimit is how many trailing records a digest previews.
const recentLimit = 10

// unknownType buckets records that carry no type field, such as foreign
// shapes salvaged during corruption recovery.
const unknownType = "unknown"

// TypeCount is one row of the per-type breakdown.
type TypeCount struct {
	Type  string
	Count int
}

// RecentEvent is one row of the recent-activity preview.
type RecentEvent struct {
	Type      string
	Timestamp string
	Data      string // compact JSON payload, empty when the record has none
}

// Summary is the digest view of a log: total volume, per-type counts and
// the most recent records in their original order.
type Summary struct {
	Total  int
	Counts []TypeCount
	Recent []RecentEvent
}

// Summarize folds raw log records into a Summary. Counts are ordered most
// frequent first, ties alphabetically, so rendered digests are stable for a
// given log.
func Summarize(records []json.RawMessage) Summary {
	return summarize(records, recentLimit)
}

func summarize(records []json.RawMessage, preview int) Summary {
	if preview <= 0 {
		preview = recentLimit
	}

	counts := make(map[string]int)
	for _, rec := range records {
		t := eventlog.Decode(rec).Type
		if t == "" {
			t = unknownType
		}
		counts[t]++
	}

	byType := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		byType = append(byType, TypeCount{Type: t, Count: n})
	}
	sort.Slice(byType, func(i, j int) bool {
		if byType[i].Count != byType[j].Count {
			return byType[i].Count > byType[j].Count
		}
		return byType[i].Type < byType[j].Type
	})

	start := len(records) - preview
	if start < 0 {
		start = 0
	}
	recent := make([]RecentEvent, 0, len(records)-start)
	for _, rec := range records[start:] {
		ev := eventlog.Decode(rec)
		row := RecentEvent{Type: ev.Type, Timestamp: ev.Timestamp}
		if row.Type == "" {
			row.Type = unknownType
		}
		if len(ev.Data) > 0 {
			row.Data = string(ev.Data)
		}
		recent = append(recent, row)
	}

	return Summary{
		Total:  len(records),
		Counts: byType,
		Recent: recent,
	}
}

package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// recoverLocked handles unparseable log content: back up the raw bytes,
// salvage what parses, rewrite the file with the result, and return it.
// Callers never see the corruption as an error. Caller must hold s.mu.
func (s *Store) recoverLocked(raw []byte) []json.RawMessage {
	s.logger.Warn("event log corrupt, recovering",
		zap.String("path", s.path),
		zap.Int("bytes", len(raw)),
	)

	backup := fmt.Sprintf("%s.backup-%d", s.path, s.now().UnixMilli())
	if err := os.WriteFile(backup, raw, 0o644); err != nil {
		s.logger.Warn("corrupt log backup failed",
			zap.String("path", backup),
			zap.Error(err),
		)
	}

	records := salvage(raw)

	data := []byte("[]")
	if len(records) > 0 {
		pretty, err := json.MarshalIndent(records, "", "  ")
		if err == nil {
			data = pretty
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("recovered log rewrite failed",
			zap.String("path", s.path),
			zap.Error(err),
		)
	}

	s.logger.Info("event log recovered",
		zap.String("path", s.path),
		zap.String("backup", backup),
		zap.Int("records", len(records)),
	)
	return records
}

// salvage extracts whatever complete records remain in corrupt content.
// Stage one trims a truncated array back to its last complete record; stage
// two scans for individual balanced objects. Either way the result holds
// only records that parse, so a trailing partial write is dropped rather
// than guessed at.
func salvage(raw []byte) []json.RawMessage {
	if records, ok := salvageTruncated(raw); ok {
		return records
	}
	return salvageObjects(raw)
}

// salvageTruncated recovers content that still looks like an array cut off
// mid-write: everything up to the last "}]" must itself parse as an array.
// The last occurrence is used on the assumption that damage from an
// interrupted write sits at the tail, not in the middle.
func salvageTruncated(raw []byte) ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	end := bytes.LastIndex(trimmed, []byte("}]"))
	if end < 0 {
		return nil, false
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed[:end+2], &records); err != nil {
		return nil, false
	}
	return records, true
}

// salvageObjects keeps every balanced top-level object that parses.
func salvageObjects(raw []byte) []json.RawMessage {
	var records []json.RawMessage
	for _, candidate := range scanObjects(raw) {
		var obj map[string]any
		if err := json.Unmarshal(candidate, &obj); err != nil {
			continue
		}
		records = append(records, json.RawMessage(candidate))
	}
	return records
}

// scanObjects walks the bytes counting brace depth, string state and
// escapes, and returns each top-level {...} span. Unlike a lazy regex it
// neither stops at a '}' nested inside an object nor trips over braces
// inside string values. An unterminated string swallows the rest of the
// input, which is correct: nothing after the truncation point is trusted.
func scanObjects(raw []byte) [][]byte {
	var spans [][]byte
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch raw[i] {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, raw[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}

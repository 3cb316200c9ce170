package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSONObject pulls the first balanced-looking JSON object out of a
// freeform response. The capability wraps its JSON in prose often enough that
// a strict decode of the whole body would reject usable answers.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// decodeLenient decodes the embedded JSON object of a freeform response into
// out, reporting notes about what it had to tolerate.
func decodeLenient(raw string, out any) ([]string, error) {
	var notes []string
	candidate := extractJSONObject(raw)
	if candidate != raw {
		notes = append(notes, "response contained text outside the JSON object")
	}
	if err := json.Unmarshal([]byte(candidate), out); err != nil {
		return notes, fmt.Errorf("decode extraction json: %w", err)
	}
	return notes, nil
}

// clampConfidence forces a confidence score into 0-100; out-of-range values
// come back from the capability regularly.
func clampConfidence(v int) (int, bool) {
	switch {
	case v < 0:
		return 0, true
	case v > 100:
		return 100, true
	default:
		return v, false
	}
}

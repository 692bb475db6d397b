package summary

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// extractJSON pulls a JSON object out of provider text that may wrap it in
// code fences or surrounding prose despite the "JSON only" instruction.
// Returns nil when no valid JSON object can be found.
func extractJSON(text string) []byte {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if json.Valid([]byte(text)) {
		return []byte(text)
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return []byte(candidate)
		}
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start != -1 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate)
		}
	}

	return nil
}

package anketa

import (
	"strings"
)

// dialogueMarkers are leaked role prefixes the LLM sometimes echoes back
// into extracted field values, in English and Cyrillic (§4.4).
var dialogueMarkers = []string{
	"Consultant:", "Client:", "Assistant:", "User:",
	"ASSISTANT:", "USER:",
	"Консультант:", "Клиент:", "Ассистент:", "Пользователь:",
}

// maxListItemLen is the length above which a list item is treated as a
// likely copied dialogue turn rather than a genuine field value (§4.4).
const maxListItemLen = 300

// CleanField strips leaked dialogue markers from a single string field.
// When a marker sits at position 0, the text after it is kept (if
// meaningful); otherwise whichever side of the marker carries more
// content is preserved.
func CleanField(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return trimmed
	}

	idx, marker := findMarker(trimmed)
	if idx == -1 {
		return trimmed
	}

	before := strings.TrimSpace(trimmed[:idx])
	after := strings.TrimSpace(trimmed[idx+len(marker):])

	if idx == 0 {
		return after
	}

	if len(after) >= len(before) {
		return after
	}
	return before
}

// CleanStringList applies CleanField to each element and discards
// entries that are empty after cleaning or longer than maxListItemLen.
func CleanStringList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		cleaned := CleanField(v)
		if cleaned == "" {
			continue
		}
		if len(cleaned) > maxListItemLen {
			continue
		}
		out = append(out, cleaned)
	}
	return out
}

// findMarker returns the byte index and literal text of the first
// dialogue marker found in s (case-insensitive), or -1 if none is
// present.
func findMarker(s string) (int, string) {
	lower := strings.ToLower(s)
	bestIdx := -1
	var bestMarker string
	for _, marker := range dialogueMarkers {
		idx := strings.Index(lower, strings.ToLower(marker))
		if idx == -1 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx {
			bestIdx = idx
			bestMarker = s[idx : idx+len(marker)]
		}
	}
	return bestIdx, bestMarker
}

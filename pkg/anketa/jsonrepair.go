package anketa

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MaxRepairAttempts bounds how many increasingly aggressive repair
// passes RepairJSON will try before giving up (§4.4).
const MaxRepairAttempts = 5

// JSONRepairError is returned when no repair pass could coerce text
// into valid JSON. It carries a truncated copy of the original text for
// diagnostics (§4.4).
type JSONRepairError struct {
	Original string
	Attempts int
	Err      error
}

const repairErrorTruncateLen = 500

func (e *JSONRepairError) Error() string {
	orig := e.Original
	if len(orig) > repairErrorTruncateLen {
		orig = orig[:repairErrorTruncateLen] + "...(truncated)"
	}
	return fmt.Sprintf("json repair failed after %d attempts: %v; original=%q", e.Attempts, e.Err, orig)
}

func (e *JSONRepairError) Unwrap() error {
	return e.Err
}

var (
	codeFenceJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// RepairJSON accepts a string that may be pure JSON, JSON wrapped in a
// fenced code block, JSON with trailing commentary, smart quotes, or
// trailing commas, or a fragment containing a JSON object, and returns
// the parsed object. It applies increasingly aggressive cleanup passes,
// capped at MaxRepairAttempts (§4.4).
func RepairJSON(text string) (map[string]any, error) {
	candidates := []func(string) string{
		func(s string) string { return s },
		stripCodeFences,
		extractOutermostObject,
		normalizeQuotesAndCommas,
		func(s string) string {
			return normalizeQuotesAndCommas(extractOutermostObject(stripCodeFences(s)))
		},
	}

	var lastErr error
	for i, transform := range candidates {
		if i >= MaxRepairAttempts {
			break
		}
		candidate := transform(text)
		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		} else {
			lastErr = err
		}
	}

	return nil, &JSONRepairError{Original: text, Attempts: len(candidates), Err: lastErr}
}

// stripCodeFences removes ``` / ```json wrappers, keeping only the
// fenced content when present.
func stripCodeFences(s string) string {
	if m := codeFenceJSON.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// extractOutermostObject locates the outermost {...} span by bracket
// balancing, tolerating braces embedded in string literals.
func extractOutermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return s
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

// normalizeQuotesAndCommas replaces smart quotes with straight quotes
// and strips trailing commas before a closing bracket.
func normalizeQuotesAndCommas(s string) string {
	replacer := strings.NewReplacer(
		"“", "\"", "”", "\"",
		"‘", "'", "’", "'",
	)
	s = replacer.Replace(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

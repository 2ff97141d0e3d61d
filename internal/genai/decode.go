package genai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparseable means no JSON object could be recovered from the text.
// Callers should treat it as a signal to fall back to a safe default rather
// than an error worth surfacing.
var ErrUnparseable = errors.New("no JSON object found in model reply")

// DecodeObject extracts a JSON object from free text and unmarshals it into v.
// It first tries a strict parse of the whole (fence-stripped) text, then falls
// back to the first top-level balanced {...} span, tolerating surrounding
// prose. On failure it returns ErrUnparseable.
func DecodeObject(raw string, v any) error {
	text := strings.TrimSpace(StripCodeFences(raw))

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	span, ok := firstBalancedObject(text)
	if !ok {
		return ErrUnparseable
	}
	if err := json.Unmarshal([]byte(span), v); err != nil {
		return ErrUnparseable
	}
	return nil
}

// firstBalancedObject returns the first top-level balanced brace span in s,
// skipping braces inside JSON string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// braces inside strings don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// StripCodeFences removes a leading ```lang line and a trailing ``` line if
// present. Models wrap replies in fences despite instructions not to; the
// inner content is returned unchanged.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

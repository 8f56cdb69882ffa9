package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON parses a model completion as JSON into v. Models frequently wrap
// JSON payloads in markdown code fences even when asked not to, so fences are
// stripped before decoding. The returned error wraps ErrMalformed semantics
// for the caller to degrade on; it never panics on arbitrary input.
func DecodeJSON(content string, v interface{}) error {
	cleaned := StripFences(content)
	if cleaned == "" {
		return fmt.Errorf("empty completion content")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parse completion as JSON: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence (``` or ```json) from
// the completion text, if present, and trims whitespace.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

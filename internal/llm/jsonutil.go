package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes a surrounding ```json or ``` markdown block
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// ExtractJSON returns the outermost JSON object or array in text. Models sometimes
// wrap the payload in prose; anything before the first bracket and after the
// matching last bracket is dropped.
func ExtractJSON(text string) string {
	text = StripCodeFences(text)
	if text == "" || json.Valid([]byte(text)) {
		return text
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text
	}
	return text[start : end+1]
}

// DecodeJSON unmarshals a model answer into v. A payload that decodes to a JSON
// string is decoded a second time.
func DecodeJSON(text string, v interface{}) error {
	payload := ExtractJSON(text)
	if payload == "" {
		return fmt.Errorf("empty JSON payload")
	}

	var inner string
	if err := json.Unmarshal([]byte(payload), &inner); err == nil {
		payload = ExtractJSON(inner)
	}

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w, response: %s", err, truncateForError(payload))
	}
	return nil
}

func truncateForError(s string) string {
	const max = 300
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

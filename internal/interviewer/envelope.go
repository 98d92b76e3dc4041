package interviewer

import (
	"encoding/json"
	"strings"
)

// UnwrapQuestion extracts plain question text from the envelopes the remote
// service occasionally wraps it in: a fenced code block, a JSON object with
// a "question" field, or both. Any text that does not decode is returned
// as-is — a wrapped question is an inconvenience, never an error.
func UnwrapQuestion(s string) string {
	text := strings.TrimSpace(s)
	if text == "" {
		return text
	}

	text = stripFence(text)

	if strings.HasPrefix(text, "{") {
		var envelope struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Question != "" {
			return strings.TrimSpace(envelope.Question)
		}
	}

	return text
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	body := strings.TrimPrefix(s, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "text", ...) if present.
		first := strings.TrimSpace(body[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}\"") {
			body = body[idx+1:]
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

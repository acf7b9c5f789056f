package planner

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const maxDetailLen = 300

// ExtractDetail pulls a human message out of an error body: the JSON
// "detail" (FastAPI style), then "error" or "message", then the raw text,
// and finally "HTTP <status>: <reason>".
func ExtractDetail(body []byte, status int) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil {
				if s = strings.TrimSpace(s); s != "" {
					return truncate(s)
				}
				continue
			}
			if string(raw) != "null" {
				return truncate(string(raw))
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return truncate(text)
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func truncate(s string) string {
	if len(s) > maxDetailLen {
		return s[:maxDetailLen] + "..."
	}
	return s
}

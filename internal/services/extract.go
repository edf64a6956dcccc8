package services

import (
	"encoding/json"
	"strings"
)

// ExtractJSON recovers a JSON object from raw model output. It tolerates
// markdown code fences and leading or trailing prose, and returns nil when
// no object can be parsed.
func ExtractJSON(raw string) map[string]any {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	if obj := parseObject(cleaned); obj != nil {
		return obj
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil
	}
	return parseObject(cleaned[start : end+1])
}

func parseObject(text string) map[string]any {
	if text == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil
	}
	return obj
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

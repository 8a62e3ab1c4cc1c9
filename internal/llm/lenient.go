package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when model output holds no decodable JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

var reFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// DecodeLenient decodes a model answer into a JSON object. It tries, in order:
// the whole content, the first fenced code block, and the span from the first
// '{' to the last '}'.
func DecodeLenient(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrNoJSON
	}
	if m, ok := decodeObject(content); ok {
		return m, nil
	}
	// A well-formed array is an answer, just not a record; do not dig objects out of it.
	if strings.HasPrefix(content, "[") && json.Valid([]byte(content)) {
		return nil, ErrNoJSON
	}
	if sub := reFence.FindStringSubmatch(content); sub != nil {
		if m, ok := decodeObject(sub[1]); ok {
			return m, nil
		}
	}
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		if m, ok := decodeObject(content[start : end+1]); ok {
			return m, nil
		}
	}
	return nil, ErrNoJSON
}

func decodeObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

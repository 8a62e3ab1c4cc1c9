package llm

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// CleanEmptyValues recursively removes nil, "" and [] values from mappings
// and nil elements from lists. Empty mappings are kept. The input is not
// modified.
func CleanEmptyValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isEmptyValue(val) {
				continue
			}
			out[k] = CleanEmptyValues(val)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, el := range t {
			if el == nil {
				continue
			}
			out = append(out, CleanEmptyValues(el))
		}
		return out
	default:
		return v
	}
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// NormalizeAndSanitize shapes a decoded model answer into an extraction
// record:
//   - section keys are mapped onto the six sections (synonyms included)
//   - sections that are not objects are dropped and re-added empty
//   - structural keys of the wrong JSON type are dropped
//   - empty values are cleaned and missing sections added
//
// It returns the record and a description of everything it dropped.
func NormalizeAndSanitize(doc map[string]any, logger *slog.Logger) (map[string]any, []string) {
	if logger == nil {
		logger = slog.Default()
	}
	var dropped []string
	out := make(map[string]any, len(structural))

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		section, ok := constants.CanonicalSection(k)
		if !ok {
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		body, ok := doc[k].(map[string]any)
		if !ok {
			if doc[k] != nil {
				dropped = append(dropped, k+"(type)")
			}
			continue
		}
		if _, exists := out[string(section)]; exists {
			// canonical key wins over a synonym
			if k != string(section) {
				dropped = append(dropped, k+"(duplicate)")
				continue
			}
		}
		if k != string(section) {
			dropped = append(dropped, k+"->"+string(section))
		}
		out[string(section)] = sanitizeSection(section, body, &dropped)
	}

	cleaned, _ := CleanEmptyValues(out).(map[string]any)
	cleaned = EnsureSections(cleaned)
	if cur, ok := nestedString(cleaned, constants.SectionFinancialDetails, "currency"); ok {
		cleaned[string(constants.SectionFinancialDetails)].(map[string]any)["currency"] = strings.ToUpper(strings.TrimSpace(cur))
	}

	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return cleaned, dropped
}

func sanitizeSection(section constants.Section, body map[string]any, dropped *[]string) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		want, fixed := structural[section][k]
		if fixed && v != nil && !hasJSONType(v, want) {
			*dropped = append(*dropped, fmt.Sprintf("%s.%s(type)", section, k))
			continue
		}
		out[k] = v
	}
	return out
}

func hasJSONType(v any, typ string) bool {
	switch typ {
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return true
}

// EnsureSections adds an empty object for every missing section.
func EnsureSections(doc map[string]any) map[string]any {
	if doc == nil {
		doc = make(map[string]any, len(structural))
	}
	for _, s := range constants.SectionStrings() {
		if _, ok := doc[s]; !ok {
			doc[s] = map[string]any{}
		}
	}
	return doc
}

func nestedString(doc map[string]any, section constants.Section, key string) (string, bool) {
	body, ok := doc[string(section)].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := body[key].(string)
	return s, ok
}

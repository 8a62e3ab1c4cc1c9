package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reCompany = regexp.MustCompile(`([A-Z][A-Za-z\s&]+(?:Inc\.|LLC|Ltd\.|Corp\.|Corporation))`)
	reNetDays = regexp.MustCompile(`(?i)Net\s+(\d+)`)

	// tried in order; the first pattern with any match decides.
	reAmounts = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)USD\s?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)total[:\s]+\$?\s?(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
	}
)

// FallbackExtraction builds a sparse record from text with regular
// expressions, for when the model answer cannot be used. The first two
// company names become customer and vendor, the largest amount becomes
// total_value, and a "Net N" phrase becomes payment_terms.
func FallbackExtraction(text string) map[string]any {
	customer := map[string]any{}
	vendor := map[string]any{}
	if names := reCompany.FindAllString(text, -1); len(names) > 0 {
		customer["name"] = strings.TrimSpace(names[0])
		if len(names) > 1 {
			vendor["name"] = strings.TrimSpace(names[1])
		}
	}

	financial := map[string]any{"line_items": []any{}}
	if total, ok := largestAmount(text); ok {
		financial["total_value"] = total
	}

	payment := map[string]any{}
	if m := reNetDays.FindStringSubmatch(text); m != nil {
		payment["payment_terms"] = fmt.Sprintf("Net %s", m[1])
	}

	return map[string]any{
		"party_identification": map[string]any{
			"customer": customer,
			"vendor":   vendor,
		},
		"account_information":    map[string]any{},
		"financial_details":      financial,
		"payment_structure":      payment,
		"revenue_classification": map[string]any{},
		"sla_terms":              map[string]any{},
	}
}

func largestAmount(text string) (float64, bool) {
	for _, re := range reAmounts {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		best, found := 0.0, false
		for _, m := range matches {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			if !found || v > best {
				best, found = v, true
			}
		}
		return best, found
	}
	return 0, false
}

package constants

import (
	"strings"
)

// Section is one of the six top-level areas of an extraction record.
type Section string

const (
	SectionPartyIdentification   Section = "party_identification"
	SectionAccountInformation    Section = "account_information"
	SectionFinancialDetails      Section = "financial_details"
	SectionPaymentStructure      Section = "payment_structure"
	SectionRevenueClassification Section = "revenue_classification"
	SectionSLATerms              Section = "sla_terms"
)

var allSections = []Section{
	SectionPartyIdentification,
	SectionAccountInformation,
	SectionFinancialDetails,
	SectionPaymentStructure,
	SectionRevenueClassification,
	SectionSLATerms,
}

// Sections returns the six sections in schema order.
func Sections() []Section {
	out := make([]Section, len(allSections))
	copy(out, allSections)
	return out
}

func SectionStrings() []string {
	result := make([]string, len(allSections))
	for i, s := range allSections {
		result[i] = string(s)
	}
	return result
}

// CanonicalSection maps a section key emitted by a model to a schema section.
// Unknown keys return ("", false).
func CanonicalSection(input string) (Section, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "" {
		return "", false
	}

	// synonyms map
	synonyms := map[string]Section{
		"parties":             SectionPartyIdentification,
		"party_information":   SectionPartyIdentification,
		"account_info":        SectionAccountInformation,
		"contact_information": SectionAccountInformation,
		"contacts":            SectionAccountInformation,
		"financials":          SectionFinancialDetails,
		"financial":           SectionFinancialDetails,
		"payment_terms":       SectionPaymentStructure,
		"payment":             SectionPaymentStructure,
		"payments":            SectionPaymentStructure,
		"revenue":             SectionRevenueClassification,
		"sla":                 SectionSLATerms,
		"service_levels":      SectionSLATerms,
	}

	if s, ok := synonyms[normalized]; ok {
		return s, true
	}
	for _, s := range allSections {
		if normalized == string(s) {
			return s, true
		}
	}
	return "", false
}

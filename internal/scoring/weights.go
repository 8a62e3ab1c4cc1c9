package scoring

import (
	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// Category is one of the five weighted scoring buckets.
type Category string

const (
	CategoryFinancialCompleteness Category = "financial_completeness"
	CategoryPartyIdentification   Category = "party_identification"
	CategoryPaymentTermsClarity   Category = "payment_terms_clarity"
	CategorySLADefinition         Category = "sla_definition"
	CategoryContactInformation    Category = "contact_information"
)

type categorySpec struct {
	category Category
	weight   float64
	// section is the record section the category reads; it also keys confidence_levels.
	section constants.Section
}

// categorySpecs is the fixed scoring order. Weights sum to 100.
var categorySpecs = [...]categorySpec{
	{CategoryFinancialCompleteness, 30, constants.SectionFinancialDetails},
	{CategoryPartyIdentification, 25, constants.SectionPartyIdentification},
	{CategoryPaymentTermsClarity, 20, constants.SectionPaymentStructure},
	{CategorySLADefinition, 15, constants.SectionSLATerms},
	{CategoryContactInformation, 10, constants.SectionAccountInformation},
}

// Categories returns the five categories in scoring order.
func Categories() []Category {
	out := make([]Category, len(categorySpecs))
	for i, s := range categorySpecs {
		out[i] = s.category
	}
	return out
}

// Weight returns the maximum score of c, or 0 for an unknown category.
func (c Category) Weight() float64 {
	for _, s := range categorySpecs {
		if s.category == c {
			return s.weight
		}
	}
	return 0
}

// Section returns the record section that c is scored from.
func (c Category) Section() constants.Section {
	for _, s := range categorySpecs {
		if s.category == c {
			return s.section
		}
	}
	return ""
}

// TotalWeight is the sum of all category weights.
func TotalWeight() float64 {
	var total float64
	for _, s := range categorySpecs {
		total += s.weight
	}
	return total
}

// Confidence is a label derived from a category's share of its weight.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
)

// Band labels score against weight: high >= 90%, medium >= 70%, low >= 50%.
// The comparison is score*100 >= pct*weight so exact boundaries survive
// floating point.
func Band(score, weight float64) Confidence {
	if weight <= 0 {
		return ConfidenceVeryLow
	}
	scaled := score * 100
	switch {
	case scaled >= 90*weight:
		return ConfidenceHigh
	case scaled >= 70*weight:
		return ConfidenceMedium
	case scaled >= 50*weight:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

const completeRecordJSON = `{
  "party_identification": {
    "customer": {"name": "Acme Corp.", "legal_entity": "Corporation", "address": "1 Main St", "signatory": "Jane Roe", "signatory_role": "CFO"},
    "vendor": {"name": "Widgets LLC", "registration_number": "REG-42", "address": "9 Side Ave", "signatory": "John Doe"}
  },
  "account_information": {
    "account_number": "ACC-1001",
    "billing_email": "billing@acme.test",
    "technical_contact": "Ops Team"
  },
  "financial_details": {
    "currency": "USD",
    "line_items": [
      {"description": "Platform license", "quantity": 1, "unit_price": 1000, "total": 1000},
      {"description": "Support", "quantity": 12, "unit_price": 50.5, "total": 606}
    ],
    "subtotal": 1606,
    "tax_rate": 0.08,
    "total_value": 1734.48
  },
  "payment_structure": {
    "payment_terms": "Net 30",
    "payment_method": "Wire transfer",
    "due_dates": ["2024-01-01"],
    "bank_details": {"bank_name": "First Bank"}
  },
  "revenue_classification": {"has_recurring": true, "billing_cycle": "monthly"},
  "sla_terms": {
    "uptime_guarantee": "99.9%",
    "response_time": "4 hours",
    "support_hours": "24/7",
    "penalties": [{"condition": "Uptime below 99%", "penalty": "10% credit"}]
  }
}`

var allMissingLabels = []string{
	"Financial Details: Currency",
	"Financial Details: Line Items",
	"Financial Details: Total Value",
	"Financial Details: Tax Information",
	"Financial Details: Subtotal",
	"Party Identification: Customer Name",
	"Party Identification: Customer Legal Entity",
	"Party Identification: Customer Address",
	"Party Identification: Customer Signatory",
	"Party Identification: Vendor Name",
	"Party Identification: Vendor Legal Entity",
	"Party Identification: Vendor Address",
	"Party Identification: Vendor Signatory",
	"Payment Structure: Payment Terms",
	"Payment Structure: Payment Schedule",
	"Payment Structure: Payment Method",
	"Payment Structure: Bank Details",
	"SLA Terms: Performance Metrics",
	"SLA Terms: Response/Resolution Times",
	"SLA Terms: Support Hours",
	"SLA Terms: Penalty Clauses",
	"Contact Information: Billing Contact",
	"Contact Information: Technical Contact",
	"Contact Information: Account Number",
}

func mustRecord(t *testing.T, doc string) Record {
	t.Helper()
	rec, err := ParseRecord([]byte(doc))
	require.NoError(t, err)
	return rec
}

// sumCategories adds category scores in category order. The overall score is
// the rounded sum of rounded categories, so the invariant holds to 2-decimal
// precision; a different summation order can differ by float noise.
func sumCategories(r Report) float64 {
	var total float64
	for _, c := range Categories() {
		total += r.CategoryScores[c]
	}
	return total
}

func TestWeights_SumToHundred(t *testing.T) {
	assert.Equal(t, 100.0, TotalWeight())
	assert.Equal(t, 30.0, CategoryFinancialCompleteness.Weight())
	assert.Equal(t, 25.0, CategoryPartyIdentification.Weight())
	assert.Equal(t, 20.0, CategoryPaymentTermsClarity.Weight())
	assert.Equal(t, 15.0, CategorySLADefinition.Weight())
	assert.Equal(t, 10.0, CategoryContactInformation.Weight())
	assert.Equal(t, 0.0, Category("unknown").Weight())
}

func TestCheckCount(t *testing.T) {
	assert.Equal(t, len(allMissingLabels), CheckCount())
}

func TestCalculate_EmptyRecord(t *testing.T) {
	report := Calculate(Record{})

	assert.Equal(t, 0.0, report.OverallScore)
	require.Len(t, report.CategoryScores, 5)
	for _, c := range Categories() {
		assert.Equal(t, 0.0, report.CategoryScores[c], "category %s", c)
	}
	require.Len(t, report.ConfidenceLevels, 5)
	for section, level := range report.ConfidenceLevels {
		assert.Equal(t, ConfidenceVeryLow, level, "section %s", section)
	}
	assert.Equal(t, allMissingLabels, report.MissingFields)
}

func TestCalculate_CompleteRecord(t *testing.T) {
	report := Calculate(mustRecord(t, completeRecordJSON))

	assert.Equal(t, 100.0, report.OverallScore)
	for _, c := range Categories() {
		assert.Equal(t, c.Weight(), report.CategoryScores[c], "category %s", c)
	}
	for section, level := range report.ConfidenceLevels {
		assert.Equal(t, ConfidenceHigh, level, "section %s", section)
	}
	assert.Empty(t, report.MissingFields)
	assert.NotNil(t, report.MissingFields)
}

func TestCalculate_ConfidenceKeysAreSectionNames(t *testing.T) {
	report := Calculate(Record{})

	want := []constants.Section{
		constants.SectionFinancialDetails,
		constants.SectionPartyIdentification,
		constants.SectionPaymentStructure,
		constants.SectionSLATerms,
		constants.SectionAccountInformation,
	}
	for _, s := range want {
		assert.Contains(t, report.ConfidenceLevels, s)
	}
	assert.NotContains(t, report.ConfidenceLevels, constants.SectionRevenueClassification)

	for _, c := range []Category{CategoryFinancialCompleteness, CategoryPaymentTermsClarity, CategorySLADefinition, CategoryContactInformation} {
		assert.Contains(t, report.CategoryScores, c)
	}
}

func TestCalculate_PartialLineItems(t *testing.T) {
	rec := mustRecord(t, `{"financial_details": {"line_items": [
		{"description": "Licence", "unit_price": 100},
		{"description": "Onboarding"}
	]}}`)

	report := NewScorer(WithBreakdown()).Score(rec)

	assert.Equal(t, 5.0, report.CategoryScores[CategoryFinancialCompleteness])
	assert.NotContains(t, report.MissingFields, "Financial Details: Line Items")
	items := report.Breakdown[CategoryFinancialCompleteness][1]
	assert.Equal(t, "Financial Details: Line Items", items.Label)
	assert.Equal(t, 5.0, items.Points)
	assert.True(t, items.Passed)
	assert.True(t, items.Partial)
}

func TestCalculate_LineItemsNoneComplete(t *testing.T) {
	rec := mustRecord(t, `{"financial_details": {"line_items": [{"quantity": 2}, "free text"]}}`)

	report := Calculate(rec)

	assert.Equal(t, 0.0, report.CategoryScores[CategoryFinancialCompleteness])
	// A non-empty list is found even when no item is complete.
	assert.NotContains(t, report.MissingFields, "Financial Details: Line Items")
}

func TestCalculate_ZeroTotalsArePresent(t *testing.T) {
	rec := mustRecord(t, `{"financial_details": {"total_value": 0, "subtotal": 0, "tax_rate": 0, "tax_amount": 0}}`)

	report := Calculate(rec)

	// total_value and subtotal count when zero; tax is tested for truthiness.
	assert.Equal(t, 12.0, report.CategoryScores[CategoryFinancialCompleteness])
	assert.Contains(t, report.MissingFields, "Financial Details: Tax Information")
	assert.NotContains(t, report.MissingFields, "Financial Details: Total Value")
	assert.NotContains(t, report.MissingFields, "Financial Details: Subtotal")
}

func TestCalculate_EmptyListsCountAsAbsent(t *testing.T) {
	rec := mustRecord(t, `{
		"payment_structure": {"payment_schedule": [], "due_dates": [], "bank_details": {}},
		"sla_terms": {"performance_metrics": [], "penalties": []}
	}`)

	report := Calculate(rec)

	assert.Equal(t, 0.0, report.CategoryScores[CategoryPaymentTermsClarity])
	assert.Equal(t, 0.0, report.CategoryScores[CategorySLADefinition])
	assert.Contains(t, report.MissingFields, "Payment Structure: Payment Schedule")
	assert.Contains(t, report.MissingFields, "Payment Structure: Bank Details")
	assert.Contains(t, report.MissingFields, "SLA Terms: Penalty Clauses")
}

func TestCalculate_ConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		category Category
		section  constants.Section
		score    float64
		want     Confidence
	}{
		{
			name:     "payment exactly 70 percent",
			doc:      `{"payment_structure": {"payment_terms": "Net 30", "payment_method": "ACH", "bank_details": {"iban": "X"}}}`,
			category: CategoryPaymentTermsClarity,
			section:  constants.SectionPaymentStructure,
			score:    14,
			want:     ConfidenceMedium,
		},
		{
			name:     "payment exactly 50 percent",
			doc:      `{"payment_structure": {"payment_terms": "Net 30", "bank_details": {"iban": "X"}}}`,
			category: CategoryPaymentTermsClarity,
			section:  constants.SectionPaymentStructure,
			score:    10,
			want:     ConfidenceLow,
		},
		{
			name: "party exactly 90 percent",
			doc: `{"party_identification": {
				"customer": {"name": "A", "legal_entity": "LLC", "address": "x", "signatory": "y"},
				"vendor": {"name": "B", "registration_number": "1", "address": "z"}}}`,
			category: CategoryPartyIdentification,
			section:  constants.SectionPartyIdentification,
			score:    22.5,
			want:     ConfidenceHigh,
		},
		{
			name:     "contact below 50 percent",
			doc:      `{"account_information": {"technical_email": "ops@x.test"}}`,
			category: CategoryContactInformation,
			section:  constants.SectionAccountInformation,
			score:    3,
			want:     ConfidenceVeryLow,
		},
		{
			name:     "contact exactly 50 percent",
			doc:      `{"account_information": {"billing_phone": "555-0100"}}`,
			category: CategoryContactInformation,
			section:  constants.SectionAccountInformation,
			score:    5,
			want:     ConfidenceLow,
		},
		{
			name:     "sla above 70 percent",
			doc:      `{"sla_terms": {"uptime_guarantee": "99.5%", "resolution_time": "1 day"}}`,
			category: CategorySLADefinition,
			section:  constants.SectionSLATerms,
			score:    11,
			want:     ConfidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Calculate(mustRecord(t, tt.doc))
			assert.Equal(t, tt.score, report.CategoryScores[tt.category])
			assert.Equal(t, tt.want, report.ConfidenceLevels[tt.section])
		})
	}
}

func TestBand(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, Band(27, 30))
	assert.Equal(t, ConfidenceMedium, Band(21, 30))
	assert.Equal(t, ConfidenceLow, Band(15, 30))
	assert.Equal(t, ConfidenceVeryLow, Band(14.99, 30))
	assert.Equal(t, ConfidenceMedium, Band(7, 10))
	assert.Equal(t, ConfidenceHigh, Band(13.5, 15))
	assert.Equal(t, ConfidenceVeryLow, Band(5, 0))
}

func TestCalculate_MalformedInputNeverPanics(t *testing.T) {
	docs := []string{
		`{"party_identification": ["customer", "vendor"]}`,
		`{"party_identification": {"customer": "Acme", "vendor": 7}}`,
		`{"financial_details": "USD 100"}`,
		`{"financial_details": {"line_items": {"description": "x"}}}`,
		`{"financial_details": {"line_items": [null, 3, "x", []]}}`,
		`{"payment_structure": {"bank_details": "First Bank", "due_dates": "2024-01-01"}}`,
		`{"sla_terms": {"penalties": "10% credit", "performance_metrics": {"uptime": "99%"}}}`,
		`{"account_information": null}`,
		`[1, 2, 3]`,
		`"just a string"`,
		`null`,
	}
	for _, doc := range docs {
		rec, err := ParseRecord([]byte(doc))
		require.NoError(t, err, doc)
		assert.NotPanics(t, func() {
			report := Calculate(rec)
			assert.InDelta(t, sumCategories(report), report.OverallScore, 1e-9, doc)
		}, doc)
	}
}

func TestCalculate_MalformedTypesScoreAsAbsent(t *testing.T) {
	rec := mustRecord(t, `{"payment_structure": {"payment_terms": "Net 45", "bank_details": "First Bank", "due_dates": "2024-01-01"}}`)

	report := Calculate(rec)

	assert.Equal(t, 8.0, report.CategoryScores[CategoryPaymentTermsClarity])
	assert.Contains(t, report.MissingFields, "Payment Structure: Bank Details")
	assert.Contains(t, report.MissingFields, "Payment Structure: Payment Schedule")
}

func TestCalculate_BoundsAndSumInvariant(t *testing.T) {
	docs := []string{
		`{}`,
		completeRecordJSON,
		`{"financial_details": {"currency": "EUR", "line_items": [{"description": "a", "unit_price": 1}, {"description": "b"}, {"unit_price": 3}]}}`,
		`{"party_identification": {"customer": {"name": "A"}}, "sla_terms": {"support_hours": "9-5"}}`,
		`{"account_information": {"billing_contact": "Bo", "account_number": "9"}, "payment_structure": {"payment_schedule": [{"amount": 10}]}}`,
		`{"financial_details": {"currency": "USD", "line_items": [
			{"description": "a", "unit_price": 1}, {"description": "b", "unit_price": 2},
			{}, {}, {}, {}, {}, {}, {}]}, "party_identification": {"customer": {"name": "A"}}, "account_information": {"technical_email": "t@x.io"}}`,
	}
	for _, doc := range docs {
		report := Calculate(mustRecord(t, doc))
		assert.InDelta(t, sumCategories(report), report.OverallScore, 1e-9)
		assert.Equal(t, round2(sumCategories(report)), report.OverallScore)
		assert.GreaterOrEqual(t, report.OverallScore, 0.0)
		assert.LessOrEqual(t, report.OverallScore, 100.0)
		for _, c := range Categories() {
			assert.GreaterOrEqual(t, report.CategoryScores[c], 0.0)
			assert.LessOrEqual(t, report.CategoryScores[c], c.Weight())
		}
	}
}

func TestCalculate_ThirdsAreRounded(t *testing.T) {
	rec := mustRecord(t, `{"financial_details": {"line_items": [
		{"description": "a", "unit_price": 1}, {"description": "b"}, {"unit_price": 3}]}}`)

	report := Calculate(rec)

	assert.Equal(t, 3.33, report.CategoryScores[CategoryFinancialCompleteness])
	assert.Equal(t, 3.33, report.OverallScore)
}

func TestCalculate_Idempotent(t *testing.T) {
	rec := mustRecord(t, completeRecordJSON)
	rec.FinancialDetails.LineItems = append(rec.FinancialDetails.LineItems, LineItem{Description: "extra"})

	first := Calculate(rec)
	second := Calculate(rec)

	assert.Equal(t, first, second)
	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestCalculate_MissingFieldsOrderStable(t *testing.T) {
	rec := mustRecord(t, `{"account_information": {"account_number": "1"}, "financial_details": {"currency": "USD"}}`)

	report := Calculate(rec)

	assert.Equal(t, "Financial Details: Line Items", report.MissingFields[0])
	assert.Equal(t, "Contact Information: Technical Contact", report.MissingFields[len(report.MissingFields)-1])
	for i := 0; i < 5; i++ {
		assert.Equal(t, report.MissingFields, Calculate(rec).MissingFields)
	}
}

func TestCalculate_DoesNotMutateInput(t *testing.T) {
	m := map[string]any{
		"financial_details": map[string]any{"currency": "USD", "line_items": []any{}},
	}

	_ = CalculateMap(m)

	fin := m["financial_details"].(map[string]any)
	assert.Equal(t, "USD", fin["currency"])
	assert.Equal(t, []any{}, fin["line_items"])
	assert.Len(t, fin, 2)
}

func TestReport_Document(t *testing.T) {
	report := Calculate(mustRecord(t, completeRecordJSON))

	doc := report.Document()

	assert.Len(t, doc, 4)
	assert.Equal(t, 100.0, doc["overall_score"])
	assert.Equal(t, []string{}, doc["missing_fields"])
	conf := doc["confidence_levels"].(map[string]any)
	assert.Equal(t, "high", conf["financial_details"])
	cats := doc["category_scores"].(map[string]any)
	assert.Equal(t, 30.0, cats["financial_completeness"])
}

func TestReport_Percentages(t *testing.T) {
	report := Calculate(mustRecord(t, `{"payment_structure": {"payment_terms": "Net 30", "payment_method": "ACH", "bank_details": {"iban": "X"}}}`))

	pct := report.Percentages()

	assert.Equal(t, 70.0, pct[CategoryPaymentTermsClarity])
	assert.Equal(t, 0.0, pct[CategoryFinancialCompleteness])
}

func TestCalculate_WhitespaceValuesAreMissing(t *testing.T) {
	report := Calculate(mustRecord(t, `{"financial_details": {"currency": "   ", "subtotal": " "}}`))

	assert.Zero(t, report.CategoryScores[CategoryFinancialCompleteness])
	assert.Contains(t, report.MissingFields, "Financial Details: Currency")
	assert.Contains(t, report.MissingFields, "Financial Details: Subtotal")
}

// Package scoring turns an extraction record into a reproducible completeness
// report: a 0-100 score split over five weighted categories, the labels of
// every failed check, and a confidence label per category.
package scoring

import (
	"math"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// Report is the result of scoring one record. It is a pure function of the
// record; callers must treat it as read-only.
type Report struct {
	OverallScore     float64                          `json:"overall_score"`
	CategoryScores   map[Category]float64             `json:"category_scores"`
	MissingFields    []string                         `json:"missing_fields"`
	ConfidenceLevels map[constants.Section]Confidence `json:"confidence_levels"`
	Breakdown        map[Category][]CheckResult       `json:"breakdown,omitempty"`
}

// CheckResult is the outcome of one sub-check.
type CheckResult struct {
	Label   string  `json:"label"`
	Points  float64 `json:"points"`
	Max     float64 `json:"max"`
	Passed  bool    `json:"passed"`
	Partial bool    `json:"partial,omitempty"`
}

// Document returns the keys merged into the stored parsed-data document.
func (r Report) Document() map[string]any {
	missing := make([]string, len(r.MissingFields))
	copy(missing, r.MissingFields)
	cats := make(map[string]any, len(r.CategoryScores))
	for k, v := range r.CategoryScores {
		cats[string(k)] = v
	}
	conf := make(map[string]any, len(r.ConfidenceLevels))
	for k, v := range r.ConfidenceLevels {
		conf[string(k)] = string(v)
	}
	return map[string]any{
		"overall_score":     r.OverallScore,
		"category_scores":   cats,
		"missing_fields":    missing,
		"confidence_levels": conf,
	}
}

// Percentages returns each category score as a percentage of its weight.
func (r Report) Percentages() map[Category]float64 {
	out := make(map[Category]float64, len(categorySpecs))
	for _, s := range categorySpecs {
		out[s.category] = round2(r.CategoryScores[s.category] / s.weight * 100)
	}
	return out
}

// check awards up to points for one aspect of a record. award returns the
// points earned and whether the aspect was found at all; a found aspect can
// still earn less than its points (partially complete line items).
type check struct {
	label  string
	points float64
	award  func(r *Record) (float64, bool)
}

func all(points float64, ok bool) (float64, bool) {
	if ok {
		return points, true
	}
	return 0, false
}

var financialChecks = []check{
	{"Financial Details: Currency", 3, func(r *Record) (float64, bool) {
		return all(3, Truthy(r.FinancialDetails.Currency))
	}},
	{"Financial Details: Line Items", 10, func(r *Record) (float64, bool) {
		items := r.FinancialDetails.LineItems
		if len(items) == 0 {
			return 0, false
		}
		complete := 0
		for _, li := range items {
			if li.Complete() {
				complete++
			}
		}
		return math.Min(10, float64(complete)/float64(len(items))*10), true
	}},
	{"Financial Details: Total Value", 8, func(r *Record) (float64, bool) {
		return all(8, Present(r.FinancialDetails.TotalValue))
	}},
	{"Financial Details: Tax Information", 5, func(r *Record) (float64, bool) {
		return all(5, anyTruthy(r.FinancialDetails.TaxRate, r.FinancialDetails.TaxAmount))
	}},
	{"Financial Details: Subtotal", 4, func(r *Record) (float64, bool) {
		return all(4, Present(r.FinancialDetails.Subtotal))
	}},
}

func partyChecks(role string, party func(r *Record) *Party) []check {
	prefix := "Party Identification: " + role + " "
	return []check{
		{prefix + "Name", 4, func(r *Record) (float64, bool) {
			return all(4, Truthy(party(r).Name))
		}},
		{prefix + "Legal Entity", 3.5, func(r *Record) (float64, bool) {
			p := party(r)
			return all(3.5, anyTruthy(p.LegalEntity, p.RegistrationNumber))
		}},
		{prefix + "Address", 2.5, func(r *Record) (float64, bool) {
			return all(2.5, Truthy(party(r).Address))
		}},
		{prefix + "Signatory", 2.5, func(r *Record) (float64, bool) {
			return all(2.5, Truthy(party(r).Signatory))
		}},
	}
}

var partyIdentificationChecks = append(
	partyChecks("Customer", func(r *Record) *Party { return &r.PartyIdentification.Customer }),
	partyChecks("Vendor", func(r *Record) *Party { return &r.PartyIdentification.Vendor })...,
)

var paymentChecks = []check{
	{"Payment Structure: Payment Terms", 8, func(r *Record) (float64, bool) {
		return all(8, Truthy(r.PaymentStructure.PaymentTerms))
	}},
	{"Payment Structure: Payment Schedule", 6, func(r *Record) (float64, bool) {
		p := r.PaymentStructure
		return all(6, len(p.PaymentSchedule) > 0 || len(p.DueDates) > 0)
	}},
	{"Payment Structure: Payment Method", 4, func(r *Record) (float64, bool) {
		return all(4, Truthy(r.PaymentStructure.PaymentMethod))
	}},
	{"Payment Structure: Bank Details", 2, func(r *Record) (float64, bool) {
		return all(2, len(r.PaymentStructure.BankDetails) > 0)
	}},
}

var slaChecks = []check{
	{"SLA Terms: Performance Metrics", 6, func(r *Record) (float64, bool) {
		s := r.SLATerms
		return all(6, len(s.PerformanceMetrics) > 0 || Truthy(s.UptimeGuarantee))
	}},
	{"SLA Terms: Response/Resolution Times", 5, func(r *Record) (float64, bool) {
		return all(5, anyTruthy(r.SLATerms.ResponseTime, r.SLATerms.ResolutionTime))
	}},
	{"SLA Terms: Support Hours", 2, func(r *Record) (float64, bool) {
		return all(2, Truthy(r.SLATerms.SupportHours))
	}},
	{"SLA Terms: Penalty Clauses", 2, func(r *Record) (float64, bool) {
		return all(2, len(r.SLATerms.Penalties) > 0)
	}},
}

var contactChecks = []check{
	{"Contact Information: Billing Contact", 5, func(r *Record) (float64, bool) {
		a := r.AccountInformation
		return all(5, anyTruthy(a.BillingContact, a.BillingEmail, a.BillingPhone))
	}},
	{"Contact Information: Technical Contact", 3, func(r *Record) (float64, bool) {
		a := r.AccountInformation
		return all(3, anyTruthy(a.TechnicalContact, a.TechnicalEmail))
	}},
	{"Contact Information: Account Number", 2, func(r *Record) (float64, bool) {
		return all(2, Truthy(r.AccountInformation.AccountNumber))
	}},
}

// checksFor returns the ordered checks of c. The order fixes missing_fields.
func checksFor(c Category) []check {
	switch c {
	case CategoryFinancialCompleteness:
		return financialChecks
	case CategoryPartyIdentification:
		return partyIdentificationChecks
	case CategoryPaymentTermsClarity:
		return paymentChecks
	case CategorySLADefinition:
		return slaChecks
	case CategoryContactInformation:
		return contactChecks
	}
	return nil
}

// CheckCount is the number of sub-checks across all categories.
func CheckCount() int {
	n := 0
	for _, s := range categorySpecs {
		n += len(checksFor(s.category))
	}
	return n
}

// Scorer computes reports. It is read-only after construction and safe for
// concurrent use.
type Scorer struct {
	withBreakdown bool
}

type Option func(*Scorer)

// WithBreakdown attaches per-check results to every report.
func WithBreakdown() Option {
	return func(s *Scorer) { s.withBreakdown = true }
}

func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{}
	for _, o := range opts {
		o(s)
	}
	return s
}

var defaultScorer = NewScorer()

// Calculate scores rec with the default scorer.
func Calculate(rec Record) Report {
	return defaultScorer.Score(rec)
}

// CalculateMap normalizes m and scores it.
func CalculateMap(m map[string]any) Report {
	return defaultScorer.Score(RecordFromMap(m))
}

// Score never fails: anything absent or malformed contributes zero.
func (s *Scorer) Score(rec Record) Report {
	report := Report{
		CategoryScores:   make(map[Category]float64, len(categorySpecs)),
		MissingFields:    make([]string, 0, CheckCount()),
		ConfidenceLevels: make(map[constants.Section]Confidence, len(categorySpecs)),
	}
	if s.withBreakdown {
		report.Breakdown = make(map[Category][]CheckResult, len(categorySpecs))
	}

	var overall float64
	for _, def := range categorySpecs {
		var score float64
		checks := checksFor(def.category)
		results := make([]CheckResult, 0, len(checks))
		for _, c := range checks {
			got, found := c.award(&rec)
			got = clamp(got, 0, c.points)
			if !found {
				report.MissingFields = append(report.MissingFields, c.label)
			}
			score += got
			results = append(results, CheckResult{
				Label:   c.label,
				Points:  round2(got),
				Max:     c.points,
				Passed:  found,
				Partial: found && got < c.points,
			})
		}
		score = clamp(score, 0, def.weight)

		report.ConfidenceLevels[def.section] = Band(score, def.weight)
		rounded := round2(score)
		report.CategoryScores[def.category] = rounded
		overall += rounded
		if s.withBreakdown {
			report.Breakdown[def.category] = results
		}
	}
	report.OverallScore = round2(overall)
	return report
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// Record is the normalized extraction record. Leaf values keep whatever the
// extractor produced (string, number, bool, list, mapping); nil means not
// extracted. Structural fields (sections, parties, lists) are typed, and a
// value of the wrong shape is normalized to its zero value.
type Record struct {
	PartyIdentification   PartyIdentification   `json:"party_identification"`
	AccountInformation    AccountInformation    `json:"account_information"`
	FinancialDetails      FinancialDetails      `json:"financial_details"`
	PaymentStructure      PaymentStructure      `json:"payment_structure"`
	RevenueClassification RevenueClassification `json:"revenue_classification"`
	SLATerms              SLATerms              `json:"sla_terms"`
}

type Party struct {
	Name               any `json:"name,omitempty"`
	LegalEntity        any `json:"legal_entity,omitempty"`
	RegistrationNumber any `json:"registration_number,omitempty"`
	Address            any `json:"address,omitempty"`
	Signatory          any `json:"signatory,omitempty"`
	SignatoryRole      any `json:"signatory_role,omitempty"`
}

type PartyIdentification struct {
	Customer     Party `json:"customer"`
	Vendor       Party `json:"vendor"`
	ThirdParties []any `json:"third_parties,omitempty"`
}

type AccountInformation struct {
	AccountNumber    any `json:"account_number,omitempty"`
	BillingContact   any `json:"billing_contact,omitempty"`
	BillingEmail     any `json:"billing_email,omitempty"`
	BillingPhone     any `json:"billing_phone,omitempty"`
	TechnicalContact any `json:"technical_contact,omitempty"`
	TechnicalEmail   any `json:"technical_email,omitempty"`
	TechnicalPhone   any `json:"technical_phone,omitempty"`
}

type LineItem struct {
	Description any `json:"description,omitempty"`
	Quantity    any `json:"quantity,omitempty"`
	UnitPrice   any `json:"unit_price,omitempty"`
	Total       any `json:"total,omitempty"`
}

// Complete reports whether the item carries both a description and a unit price.
func (li LineItem) Complete() bool {
	return Truthy(li.Description) && Truthy(li.UnitPrice)
}

type FinancialDetails struct {
	Currency       any        `json:"currency,omitempty"`
	LineItems      []LineItem `json:"line_items,omitempty"`
	Subtotal       any        `json:"subtotal,omitempty"`
	TaxRate        any        `json:"tax_rate,omitempty"`
	TaxAmount      any        `json:"tax_amount,omitempty"`
	TotalValue     any        `json:"total_value,omitempty"`
	AdditionalFees []any      `json:"additional_fees,omitempty"`
}

type PaymentStructure struct {
	PaymentTerms    any            `json:"payment_terms,omitempty"`
	PaymentMethod   any            `json:"payment_method,omitempty"`
	PaymentSchedule []any          `json:"payment_schedule,omitempty"`
	DueDates        []any          `json:"due_dates,omitempty"`
	BankDetails     map[string]any `json:"bank_details,omitempty"`
}

type RevenueClassification struct {
	HasRecurring      any `json:"has_recurring,omitempty"`
	HasOneTime        any `json:"has_one_time,omitempty"`
	BillingCycle      any `json:"billing_cycle,omitempty"`
	SubscriptionModel any `json:"subscription_model,omitempty"`
	AutoRenewal       any `json:"auto_renewal,omitempty"`
	RenewalTerms      any `json:"renewal_terms,omitempty"`
}

type SLATerms struct {
	UptimeGuarantee      any   `json:"uptime_guarantee,omitempty"`
	ResponseTime         any   `json:"response_time,omitempty"`
	ResolutionTime       any   `json:"resolution_time,omitempty"`
	PerformanceMetrics   []any `json:"performance_metrics,omitempty"`
	Penalties            []any `json:"penalties,omitempty"`
	SupportHours         any   `json:"support_hours,omitempty"`
	EscalationProcedures any   `json:"escalation_procedures,omitempty"`
}

// ParseRecord decodes JSON bytes into a Record. Only bytes that are not a JSON
// document fail; a document of any other shape yields an empty Record.
func ParseRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	m, _ := v.(map[string]any)
	return RecordFromMap(m), nil
}

// RecordFromMap normalizes a loosely typed extraction mapping. It never fails.
func RecordFromMap(m map[string]any) Record {
	parties := mapping(m[string(constants.SectionPartyIdentification)])
	account := mapping(m[string(constants.SectionAccountInformation)])
	fin := mapping(m[string(constants.SectionFinancialDetails)])
	pay := mapping(m[string(constants.SectionPaymentStructure)])
	rev := mapping(m[string(constants.SectionRevenueClassification)])
	sla := mapping(m[string(constants.SectionSLATerms)])

	return Record{
		PartyIdentification: PartyIdentification{
			Customer:     partyFromMap(mapping(parties["customer"])),
			Vendor:       partyFromMap(mapping(parties["vendor"])),
			ThirdParties: list(parties["third_parties"]),
		},
		AccountInformation: AccountInformation{
			AccountNumber:    account["account_number"],
			BillingContact:   account["billing_contact"],
			BillingEmail:     account["billing_email"],
			BillingPhone:     account["billing_phone"],
			TechnicalContact: account["technical_contact"],
			TechnicalEmail:   account["technical_email"],
			TechnicalPhone:   account["technical_phone"],
		},
		FinancialDetails: FinancialDetails{
			Currency:       fin["currency"],
			LineItems:      lineItems(fin["line_items"]),
			Subtotal:       fin["subtotal"],
			TaxRate:        fin["tax_rate"],
			TaxAmount:      fin["tax_amount"],
			TotalValue:     fin["total_value"],
			AdditionalFees: list(fin["additional_fees"]),
		},
		PaymentStructure: PaymentStructure{
			PaymentTerms:    pay["payment_terms"],
			PaymentMethod:   pay["payment_method"],
			PaymentSchedule: list(pay["payment_schedule"]),
			DueDates:        list(pay["due_dates"]),
			BankDetails:     mapping(pay["bank_details"]),
		},
		RevenueClassification: RevenueClassification{
			HasRecurring:      rev["has_recurring"],
			HasOneTime:        rev["has_one_time"],
			BillingCycle:      rev["billing_cycle"],
			SubscriptionModel: rev["subscription_model"],
			AutoRenewal:       rev["auto_renewal"],
			RenewalTerms:      rev["renewal_terms"],
		},
		SLATerms: SLATerms{
			UptimeGuarantee:      sla["uptime_guarantee"],
			ResponseTime:         sla["response_time"],
			ResolutionTime:       sla["resolution_time"],
			PerformanceMetrics:   list(sla["performance_metrics"]),
			Penalties:            list(sla["penalties"]),
			SupportHours:         sla["support_hours"],
			EscalationProcedures: sla["escalation_procedures"],
		},
	}
}

func partyFromMap(p map[string]any) Party {
	return Party{
		Name:               p["name"],
		LegalEntity:        p["legal_entity"],
		RegistrationNumber: p["registration_number"],
		Address:            p["address"],
		Signatory:          p["signatory"],
		SignatoryRole:      p["signatory_role"],
	}
}

// lineItems keeps one entry per non-null element; non-mapping elements become
// empty (incomplete) items.
func lineItems(v any) []LineItem {
	raw := list(v)
	if len(raw) == 0 {
		return nil
	}
	out := make([]LineItem, 0, len(raw))
	for _, el := range raw {
		if el == nil {
			continue
		}
		item := mapping(el)
		out = append(out, LineItem{
			Description: item["description"],
			Quantity:    item["quantity"],
			UnitPrice:   item["unit_price"],
			Total:       item["total"],
		})
	}
	return out
}

func mapping(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

// Truthy reports whether v counts as extracted: nil, false, zero numbers,
// blank strings, empty lists and empty mappings do not. Whitespace-only
// strings are blank, so "   " is not an extracted value.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case json.Number:
		if f, err := strconv.ParseFloat(string(t), 64); err == nil {
			return f != 0
		}
		return strings.TrimSpace(string(t)) != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Present reports whether v was extracted at all. Unlike Truthy, zero and
// false are present; nil, blank strings and empty lists are not.
func Present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func anyTruthy(vs ...any) bool {
	for _, v := range vs {
		if Truthy(v) {
			return true
		}
	}
	return false
}

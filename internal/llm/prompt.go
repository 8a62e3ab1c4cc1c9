package llm

import (
	"strings"
	"unicode/utf8"
)

// SystemPrompt is sent as the system message of every extraction.
const SystemPrompt = "You are a contract analysis expert. Extract structured data from contracts and return only valid JSON."

const recordTemplate = `{
    "party_identification": {
        "customer": {
            "name": "Company name",
            "legal_entity": "Legal entity type",
            "registration_number": "Company registration number",
            "address": "Full address",
            "signatory": "Name of person signing",
            "signatory_role": "Title/role"
        },
        "vendor": {
            "name": "Vendor company name",
            "legal_entity": "Legal entity type",
            "registration_number": "Registration number",
            "address": "Full address",
            "signatory": "Name of person signing",
            "signatory_role": "Title/role"
        },
        "third_parties": []
    },
    "account_information": {
        "account_number": "Account or customer number",
        "billing_contact": "Billing contact name",
        "billing_email": "Billing email",
        "billing_phone": "Billing phone",
        "technical_contact": "Technical contact name",
        "technical_email": "Technical email",
        "technical_phone": "Technical phone"
    },
    "financial_details": {
        "currency": "USD/EUR/etc",
        "line_items": [
            {
                "description": "Product/service description",
                "quantity": 1,
                "unit_price": 100.00,
                "total": 100.00
            }
        ],
        "subtotal": 0.00,
        "tax_rate": 0.00,
        "tax_amount": 0.00,
        "total_value": 0.00,
        "additional_fees": []
    },
    "payment_structure": {
        "payment_terms": "Net 30/Net 60/etc",
        "payment_method": "Wire transfer/Credit card/etc",
        "payment_schedule": [
            {
                "due_date": "2024-01-01",
                "amount": 100.00,
                "description": "Initial payment"
            }
        ],
        "due_dates": ["2024-01-01"],
        "bank_details": {
            "bank_name": "Bank name",
            "account_number": "Account number",
            "routing_number": "Routing number",
            "swift_code": "SWIFT code"
        }
    },
    "revenue_classification": {
        "has_recurring": true,
        "has_one_time": false,
        "billing_cycle": "monthly/quarterly/annual/one-time",
        "subscription_model": "Description of subscription",
        "auto_renewal": true,
        "renewal_terms": "Renewal terms description"
    },
    "sla_terms": {
        "uptime_guarantee": "99.9%",
        "response_time": "4 hours",
        "resolution_time": "24 hours",
        "performance_metrics": [
            {
                "metric": "Uptime",
                "target": "99.9%",
                "measurement": "Monthly"
            }
        ],
        "penalties": [
            {
                "condition": "Uptime below 99%",
                "penalty": "10% credit",
                "calculation": "Description"
            }
        ],
        "support_hours": "24/7/365",
        "escalation_procedures": "Description of escalation"
    }
}`

// BuildExtractionPrompt renders the user prompt for text. When maxChars > 0
// the contract text is cut to that many characters.
func BuildExtractionPrompt(text string, maxChars int) string {
	text = TruncateRunes(strings.TrimSpace(text), maxChars)

	var b strings.Builder
	b.WriteString("You MUST return ONLY valid minified JSON.\n")
	b.WriteString("No explanation. No markdown. No backticks. No comments.\n")
	b.WriteString("If data not found, use null.\n\n")
	b.WriteString("CONTRACT TEXT:\n")
	b.WriteString(text)
	b.WriteString("\n\nEXTRACT THE FOLLOWING (return null if not found):\n\n")
	b.WriteString(recordTemplate)
	b.WriteString("\n\nReturn ONLY the JSON object, no other text.\n")
	return b.String()
}

// TruncateRunes cuts s to at most max runes; max <= 0 disables the cut.
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

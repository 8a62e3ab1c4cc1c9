package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"   \t", false},
		{"USD", true},
		{"0", true},
		{json.Number("0"), false},
		{json.Number("0.0"), false},
		{json.Number("12.5"), true},
		{0.0, false},
		{3, true},
		{int64(0), false},
		{[]any{}, false},
		{[]any{nil}, true},
		{[]string{}, false},
		{map[string]any{}, false},
		{map[string]any{"a": 1}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.in), "Truthy(%#v)", tt.in)
	}
}

func TestPresent(t *testing.T) {
	assert.False(t, Present(nil))
	assert.False(t, Present(" "))
	assert.False(t, Present([]any{}))
	assert.True(t, Present(json.Number("0")))
	assert.True(t, Present(0.0))
	assert.True(t, Present(false))
	assert.True(t, Present("n/a"))
}

func TestParseRecord_InvalidJSON(t *testing.T) {
	_, err := ParseRecord([]byte(`{"financial_details": `))
	require.Error(t, err)
}

func TestParseRecord_KeepsLeafValues(t *testing.T) {
	rec, err := ParseRecord([]byte(`{
		"party_identification": {"customer": {"name": "Acme"}, "third_parties": ["Escrow Co"]},
		"financial_details": {"total_value": 1500, "line_items": [{"description": "x", "unit_price": "10"}]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Acme", rec.PartyIdentification.Customer.Name)
	assert.Equal(t, []any{"Escrow Co"}, rec.PartyIdentification.ThirdParties)
	assert.Equal(t, json.Number("1500"), rec.FinancialDetails.TotalValue)
	require.Len(t, rec.FinancialDetails.LineItems, 1)
	assert.True(t, rec.FinancialDetails.LineItems[0].Complete())
}

func TestRecordFromMap_SkipsNullLineItems(t *testing.T) {
	rec := RecordFromMap(map[string]any{
		"financial_details": map[string]any{
			"line_items": []any{nil, map[string]any{"description": "a"}, "junk"},
		},
	})

	require.Len(t, rec.FinancialDetails.LineItems, 2)
	assert.False(t, rec.FinancialDetails.LineItems[0].Complete())
	assert.Equal(t, LineItem{}, rec.FinancialDetails.LineItems[1])
}

func TestRecordFromMap_Nil(t *testing.T) {
	assert.Equal(t, Record{}, RecordFromMap(nil))
}

func TestLineItem_Complete(t *testing.T) {
	assert.True(t, LineItem{Description: "Support", UnitPrice: 50}.Complete())
	assert.False(t, LineItem{Description: "Support", UnitPrice: 0}.Complete())
	assert.False(t, LineItem{Description: " ", UnitPrice: 50}.Complete())
	assert.False(t, LineItem{Total: 50}.Complete())
}

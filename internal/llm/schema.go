package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

// structural lists the keys whose JSON type is fixed inside each section.
// Leaf values are free-form; the scorer decides what counts as extracted.
var structural = map[constants.Section]map[string]string{
	constants.SectionPartyIdentification: {
		"customer":      "object",
		"vendor":        "object",
		"third_parties": "array",
	},
	constants.SectionAccountInformation: {},
	constants.SectionFinancialDetails: {
		"line_items":      "array",
		"additional_fees": "array",
	},
	constants.SectionPaymentStructure: {
		"payment_schedule": "array",
		"due_dates":        "array",
		"bank_details":     "object",
	},
	constants.SectionRevenueClassification: {},
	constants.SectionSLATerms: {
		"performance_metrics": "array",
		"penalties":           "array",
	},
}

// BuildRecordJSONSchema returns a JSON-Schema for extraction records as a
// generic map. Every section is required and must be an object.
func BuildRecordJSONSchema() map[string]any {
	props := make(map[string]any, len(structural))
	for _, section := range constants.Sections() {
		sectionProps := map[string]any{}
		for key, typ := range structural[section] {
			sectionProps[key] = map[string]any{"type": typ}
		}
		props[string(section)] = map[string]any{
			"type":       "object",
			"properties": sectionProps,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   constants.SectionStrings(),
	}
}

var (
	recordSchemaOnce sync.Once
	recordSchema     *jsonschema.Schema
	recordSchemaErr  error
)

func compiledRecordSchema() (*jsonschema.Schema, error) {
	recordSchemaOnce.Do(func() {
		recordSchema, recordSchemaErr = CompileSchema(BuildRecordJSONSchema())
	})
	return recordSchema, recordSchemaErr
}

// CompileSchema compiles a schema map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema(schemaMap)
	if err != nil {
		return err
	}
	return validateBytes(schema, data)
}

// ValidateRecord validates a decoded record against the record schema.
func ValidateRecord(doc map[string]any) error {
	schema, err := compiledRecordSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return validateBytes(schema, b)
}

func validateBytes(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

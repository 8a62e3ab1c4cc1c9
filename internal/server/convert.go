package server

import (
	"encoding/json"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

// toStruct converts any JSON-encodable value into a protobuf Struct using
// its JSON field names.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}

// stringField reads a scalar request field as a string. Numbers are rendered
// without a trailing ".0" so they validate like query parameters.
func stringField(s *structpb.Struct, key string) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok || v == nil {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return "", nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64), nil
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue), nil
	default:
		return "", fmt.Errorf("%w: %s must be a scalar", common.ErrInvalidInput, key)
	}
}

func boolField(s *structpb.Struct, key string, def bool) (bool, error) {
	raw, err := stringField(s, key)
	if err != nil || raw == "" {
		return def, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%w: %s must be a boolean", common.ErrInvalidInput, key)
	}
	return b, nil
}

package common

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationError is one failed rule.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Field, fmt.Sprint(e.Value), e.Message)
}

// Validator collects rule failures across fields so a request can report
// every bad parameter at once.
type Validator struct {
	errs []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs rules against value in order.
func (v *Validator) Field(name string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(name, value); err != nil {
			v.errs = append(v.errs, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errs
}

// Error joins the failures behind ErrValidation, or returns nil.
func (v *Validator) Error() error {
	if len(v.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// ValidationRule returns nil when value passes.
type ValidationRule func(name string, value any) *ValidationError

func fail(name string, value any, msg string) *ValidationError {
	return &ValidationError{Field: name, Value: value, Message: msg}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v != nil {
			return *v, true
		}
	}
	return "", false
}

// Required rejects nil and blank strings.
func Required(name string, value any) *ValidationError {
	if value == nil {
		return fail(name, value, "is required")
	}
	if s, ok := asString(value); ok && strings.TrimSpace(s) == "" {
		return fail(name, value, "is required")
	}
	if p, ok := value.(*string); ok && p == nil {
		return fail(name, value, "is required")
	}
	return nil
}

// MaxLength limits strings to max runes.
func MaxLength(max int) ValidationRule {
	return func(name string, value any) *ValidationError {
		s, ok := asString(value)
		if ok && utf8.RuneCountInString(s) > max {
			return fail(name, value, fmt.Sprintf("must be at most %d characters", max))
		}
		return nil
	}
}

// OneOf accepts empty values and any of allowed (case-insensitive).
func OneOf(allowed ...string) ValidationRule {
	return func(name string, value any) *ValidationError {
		s, ok := asString(value)
		if !ok || s == "" {
			return nil
		}
		for _, a := range allowed {
			if strings.EqualFold(a, s) {
				return nil
			}
		}
		return fail(name, value, "must be one of "+strings.Join(allowed, ", "))
	}
}

// IntRange accepts ints and decimal strings within [min, max]; empty strings pass.
func IntRange(min, max int) ValidationRule {
	return func(name string, value any) *ValidationError {
		var n int
		switch v := value.(type) {
		case int:
			n = v
		case string:
			if v == "" {
				return nil
			}
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fail(name, value, "must be an integer")
			}
			n = parsed
		default:
			return nil
		}
		if n < min || n > max {
			return fail(name, value, fmt.Sprintf("must be between %d and %d", min, max))
		}
		return nil
	}
}

// UUID requires a parseable UUID string.
func UUID(name string, value any) *ValidationError {
	s, ok := asString(value)
	if !ok {
		return fail(name, value, "must be a string")
	}
	if _, err := uuid.Parse(s); err != nil {
		return fail(name, value, "must be a valid UUID")
	}
	return nil
}

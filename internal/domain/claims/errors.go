package claims

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("claim not found")
	ErrDuplicateReference = errors.New("claim reference already exists")
	ErrInvalidLimit       = fmt.Errorf("limit must be between %d and %d", MinTopProvidersLimit, MaxTopProvidersLimit)
	ErrNotificationFailed = errors.New("payment notification failed")
)

// Validation rule names reported in ValidationError.Rule.
const (
	RuleRequired        = "required"
	RuleMaxLength       = "max_length"
	RuleProcedurePrefix = "procedure_prefix"
	RuleNPIFormat       = "npi_format"
	RuleDecimalPlaces   = "decimal_places"
	RuleMaxAmount       = "max_amount"
	RuleMinLines        = "min_lines"
)

// ValidationError reports the first field of a claim that broke a domain
// rule. Line is the zero-based index of the offending line, or -1 when the
// field belongs to the claim itself.
type ValidationError struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value string `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	var msg string
	switch e.Rule {
	case RuleProcedurePrefix:
		msg = fmt.Sprintf("submitted procedure must start with 'D', got: %q", e.Value)
	case RuleNPIFormat:
		msg = fmt.Sprintf("provider NPI must be exactly 10 digits, got: %q", e.Value)
	case RuleDecimalPlaces:
		msg = fmt.Sprintf("%s must have at most %d decimal places, got: %s", e.Field, MoneyPlaces, e.Value)
	case RuleMaxAmount:
		msg = fmt.Sprintf("%s must be greater than -%s and less than %s, got: %s", e.Field, MaxAmount, MaxAmount, e.Value)
	case RuleMinLines:
		msg = "claim must have at least one line"
	default:
		msg = fmt.Sprintf("%s failed rule %s", e.Field, e.Rule)
	}
	if e.Line >= 0 {
		return fmt.Sprintf("lines[%d]: %s", e.Line, msg)
	}
	return msg
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func duplicateReference(reference string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateReference, reference)
}

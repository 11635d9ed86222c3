package scoring

import (
	"fmt"
	"strings"
)

// Kind identifies the rule a Violation broke.
type Kind string

// Violation kinds
const (
	KindNotAnObject            Kind = "not_an_object"
	KindMissingRegion          Kind = "missing_region"
	KindMalformedRegion        Kind = "malformed_region"
	KindInvalidScore           Kind = "invalid_score"
	KindUnknownTrait           Kind = "unknown_trait"
	KindSumMismatch            Kind = "sum_mismatch"
	KindDegenerateDistribution Kind = "degenerate_distribution"
	KindMissingExplanation     Kind = "missing_explanation"
	KindTotalsMismatch         Kind = "totals_mismatch"
	KindMalformedTotals        Kind = "malformed_totals"
)

// Violation is a single structural or arithmetic rule failure.
type Violation struct {
	Region   string `json:"region,omitempty"`
	Kind     Kind   `json:"kind"`
	Trait    string `json:"trait,omitempty"`
	Expected *int   `json:"expected,omitempty"`
	Actual   *int   `json:"actual,omitempty"`
	Details  string `json:"details"`
}

func (v Violation) String() string {
	var sb strings.Builder
	if v.Region != "" {
		sb.WriteString(v.Region)
		sb.WriteString(": ")
	}
	sb.WriteString(string(v.Kind))
	if v.Trait != "" {
		sb.WriteString(fmt.Sprintf(" (trait %s)", v.Trait))
	}
	if v.Details != "" {
		sb.WriteString(": ")
		sb.WriteString(v.Details)
	}
	return sb.String()
}

// ValidationError carries every violation found, in the order they were detected.
// Partial holds whatever could be scored so callers can present degraded output.
type ValidationError struct {
	Violations []Violation
	Partial    *ValidatedResult
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, v := range e.Violations {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, v))
	}
	return sb.String()
}

// Kinds returns the kind of each violation, in order.
func (e *ValidationError) Kinds() []Kind {
	kinds := make([]Kind, 0, len(e.Violations))
	for _, v := range e.Violations {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// SchemaError reports a TraitSchema that cannot be used for validation.
type SchemaError struct {
	Schema  string
	Message string
	Cause   error
}

func (e *SchemaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema %q: %s: %v", e.Schema, e.Message, e.Cause)
	}
	return fmt.Sprintf("schema %q: %s", e.Schema, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}

func intPtr(v int) *int {
	return &v
}

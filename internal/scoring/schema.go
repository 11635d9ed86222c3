// Package scoring validates trait-score payloads extracted from model replies against a
// caller-supplied TraitSchema.
package scoring

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ExplanationMode says where a region's explanation lives, if one is required.
type ExplanationMode string

// Explanation modes
const (
	// ExplanationNone does not require any explanation
	ExplanationNone ExplanationMode = "none"
	// ExplanationPerRegion requires one shared text per region
	ExplanationPerRegion ExplanationMode = "per_region"
	// ExplanationPerTrait requires one text per trait inside each region
	ExplanationPerTrait ExplanationMode = "per_trait"
)

// Default payload keys
const (
	DefaultTotalsKey      = "totals"
	DefaultExplanationKey = "explanation"
)

// TraitSchema describes what a valid scoring payload looks like for one request type.
type TraitSchema struct {
	Name          string          `json:"name" yaml:"name" validate:"required"`
	Description   string          `json:"description,omitempty" yaml:"description,omitempty"`
	Traits        []string        `json:"traits" yaml:"traits" validate:"required,min=1,dive,required"`
	Regions       []string        `json:"regions" yaml:"regions" validate:"dive,required"`
	RequiredTotal int             `json:"required_total" yaml:"required_total" validate:"gte=0"`
	RejectAllZero bool            `json:"reject_all_zero" yaml:"reject_all_zero"`
	Explanation   ExplanationMode `json:"explanation" yaml:"explanation" validate:"omitempty,oneof=none per_region per_trait"`

	// TotalsKey is the top-level key holding the model's own per-trait totals.
	TotalsKey string `json:"totals_key,omitempty" yaml:"totals_key,omitempty"`
	// ExplanationKey is the key holding explanations inside a region.
	ExplanationKey string `json:"explanation_key,omitempty" yaml:"explanation_key,omitempty"`
}

// RequireExplanation reports whether every region must carry an explanation.
func (s TraitSchema) RequireExplanation() bool {
	return s.Explanation == ExplanationPerRegion || s.Explanation == ExplanationPerTrait
}

// Scored reports whether the schema describes region scoring at all.
// Free-text classification schemas have no regions.
func (s TraitSchema) Scored() bool {
	return len(s.Regions) > 0
}

func (s TraitSchema) totalsKey() string {
	if s.TotalsKey == "" {
		return DefaultTotalsKey
	}
	return s.TotalsKey
}

func (s TraitSchema) explanationKey() string {
	if s.ExplanationKey == "" {
		return DefaultExplanationKey
	}
	return s.ExplanationKey
}

// Keys returns the totals key and the explanation key, defaults applied.
func (s TraitSchema) Keys() (totals, explanation string) {
	return s.totalsKey(), s.explanationKey()
}

// HasTrait reports whether name belongs to the trait vocabulary.
func (s TraitSchema) HasTrait(name string) bool {
	for _, t := range s.Traits {
		if t == name {
			return true
		}
	}
	return false
}

// Check verifies the schema itself is usable before any payload is validated against it.
func (s TraitSchema) Check() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return &SchemaError{Schema: s.Name, Message: "invalid schema definition", Cause: err}
	}

	if s.RequiredTotal > 0 && len(s.Regions) == 0 {
		return &SchemaError{Schema: s.Name, Message: "required_total is set but no regions are declared"}
	}

	if dup := firstDuplicate(s.Traits); dup != "" {
		return &SchemaError{Schema: s.Name, Message: fmt.Sprintf("duplicate trait %q", dup)}
	}
	if dup := firstDuplicate(s.Regions); dup != "" {
		return &SchemaError{Schema: s.Name, Message: fmt.Sprintf("duplicate region %q", dup)}
	}

	for _, r := range s.Regions {
		if r == s.totalsKey() {
			return &SchemaError{Schema: s.Name, Message: fmt.Sprintf("region %q collides with totals key", r)}
		}
	}
	for _, t := range s.Traits {
		if t == s.explanationKey() {
			return &SchemaError{Schema: s.Name, Message: fmt.Sprintf("trait %q collides with explanation key", t)}
		}
	}

	return nil
}

func firstDuplicate(values []string) string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return v
		}
		seen[v] = true
	}
	return ""
}

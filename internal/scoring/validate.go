package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validate checks payload against schema and returns the validated scores with
// recomputed totals. On failure it returns a *ValidationError listing every violation.
//
// A trait missing from a present region counts as zero. A missing region is a violation.
// Totals supplied by the model are compared with the recomputed ones and never trusted.
// A schema that fails Check is rejected with its *SchemaError before the payload is read.
func Validate(payload any, schema TraitSchema) (*ValidatedResult, error) {
	if err := schema.Check(); err != nil {
		return nil, err
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Violations: []Violation{{
				Kind:    KindNotAnObject,
				Details: fmt.Sprintf("payload is %s, not an object", describe(payload)),
			}},
		}
	}

	v := &checker{schema: schema}
	result := &ValidatedResult{
		Schema:      schema.Name,
		RegionOrder: make([]string, 0, len(schema.Regions)),
		Traits:      append([]string(nil), schema.Traits...),
		Regions:     make(map[string]RegionScores, len(schema.Regions)),
		Totals:      make(map[string]int, len(schema.Traits)),
	}
	for _, trait := range schema.Traits {
		result.Totals[trait] = 0
	}

	for _, region := range schema.Regions {
		raw, present := obj[region]
		if !present {
			v.add(Violation{Region: region, Kind: KindMissingRegion, Details: "region is missing from the payload"})
			continue
		}
		regionObj, ok := raw.(map[string]any)
		if !ok {
			v.add(Violation{
				Region:  region,
				Kind:    KindMalformedRegion,
				Details: fmt.Sprintf("region is %s, not an object", describe(raw)),
			})
			continue
		}

		scores := v.checkRegion(region, regionObj)
		result.Regions[region] = scores
		result.RegionOrder = append(result.RegionOrder, region)
		for trait, score := range scores.Scores {
			result.Totals[trait] += score
		}
	}

	v.checkTotals(obj, result.Totals)

	if len(v.violations) > 0 {
		return nil, &ValidationError{Violations: v.violations, Partial: result}
	}
	return result, nil
}

type checker struct {
	schema     TraitSchema
	violations []Violation
}

func (v *checker) add(violation Violation) {
	v.violations = append(v.violations, violation)
}

// checkRegion reads one region's scores and explanation, recording every violation.
func (v *checker) checkRegion(region string, obj map[string]any) RegionScores {
	scores := RegionScores{Scores: make(map[string]int, len(v.schema.Traits))}
	explanationKey := v.schema.explanationKey()

	invalid := false
	for _, trait := range v.schema.Traits {
		raw, ok := obj[trait]
		if !ok {
			scores.Scores[trait] = 0
			continue
		}
		n, err := parseScore(raw)
		if err != nil {
			invalid = true
			scores.Scores[trait] = 0
			v.add(Violation{Region: region, Kind: KindInvalidScore, Trait: trait, Details: err.Error()})
			continue
		}
		scores.Scores[trait] = n
	}

	for _, key := range sortedKeys(obj) {
		if key == explanationKey || v.schema.HasTrait(key) {
			continue
		}
		v.add(Violation{
			Region:  region,
			Kind:    KindUnknownTrait,
			Trait:   key,
			Details: fmt.Sprintf("%q is not a recognized trait", key),
		})
	}

	// An invalid score already explains a wrong sum.
	if !invalid {
		sum := scores.Sum()
		if sum != v.schema.RequiredTotal {
			v.add(Violation{
				Region:   region,
				Kind:     KindSumMismatch,
				Expected: intPtr(v.schema.RequiredTotal),
				Actual:   intPtr(sum),
				Details:  fmt.Sprintf("scores sum to %d, expected %d", sum, v.schema.RequiredTotal),
			})
		}
		if v.schema.RejectAllZero && sum == 0 {
			v.add(Violation{
				Region:  region,
				Kind:    KindDegenerateDistribution,
				Details: "every trait scored zero",
			})
		}
	}

	v.readExplanation(region, obj[explanationKey], &scores)
	return scores
}

// readExplanation accepts a shared text in every mode. A per-trait object only
// satisfies per_trait schemas, and its keys must belong to the vocabulary.
func (v *checker) readExplanation(region string, raw any, scores *RegionScores) {
	switch value := raw.(type) {
	case string:
		scores.Explanation = strings.TrimSpace(value)
	case map[string]any:
		for _, key := range sortedKeys(value) {
			if v.schema.HasTrait(key) {
				continue
			}
			v.add(Violation{
				Region:  region,
				Kind:    KindUnknownTrait,
				Trait:   key,
				Details: fmt.Sprintf("explanation names %q, which is not a recognized trait", key),
			})
		}
		for _, trait := range v.schema.Traits {
			text, ok := value[trait].(string)
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			if scores.TraitExplanations == nil {
				scores.TraitExplanations = make(map[string]string)
			}
			scores.TraitExplanations[trait] = strings.TrimSpace(text)
		}
	}

	if !v.schema.RequireExplanation() {
		return
	}

	if v.schema.Explanation == ExplanationPerRegion && scores.Explanation == "" {
		v.add(Violation{Region: region, Kind: KindMissingExplanation, Details: "explanation must be a non-empty text"})
		return
	}
	if scores.Explanation == "" && len(scores.TraitExplanations) == 0 {
		v.add(Violation{Region: region, Kind: KindMissingExplanation, Details: "explanation is missing or empty"})
		return
	}

	if v.schema.Explanation == ExplanationPerTrait && scores.Explanation == "" {
		for _, trait := range v.schema.Traits {
			if _, ok := scores.TraitExplanations[trait]; !ok {
				v.add(Violation{
					Region:  region,
					Kind:    KindMissingExplanation,
					Trait:   trait,
					Details: "explanation for trait is missing or empty",
				})
			}
		}
	}
}

// checkTotals compares the model's own totals, when supplied, with the recomputed ones.
func (v *checker) checkTotals(obj map[string]any, computed map[string]int) {
	key := v.schema.totalsKey()
	raw, present := obj[key]
	if !present {
		return
	}

	supplied, ok := raw.(map[string]any)
	if !ok {
		v.add(Violation{
			Region:  key,
			Kind:    KindMalformedTotals,
			Details: fmt.Sprintf("totals are %s, not an object", describe(raw)),
		})
		return
	}

	for _, trait := range sortedKeys(supplied) {
		if !v.schema.HasTrait(trait) {
			v.add(Violation{
				Region:  key,
				Kind:    KindUnknownTrait,
				Trait:   trait,
				Details: fmt.Sprintf("%q is not a recognized trait", trait),
			})
		}
	}

	for _, trait := range v.schema.Traits {
		rawTotal, ok := supplied[trait]
		if !ok {
			continue
		}
		n, err := parseScore(rawTotal)
		if err != nil {
			v.add(Violation{Region: key, Kind: KindInvalidScore, Trait: trait, Details: err.Error()})
			continue
		}
		if n != computed[trait] {
			v.add(Violation{
				Region:   key,
				Kind:     KindTotalsMismatch,
				Trait:    trait,
				Expected: intPtr(computed[trait]),
				Actual:   intPtr(n),
				Details:  fmt.Sprintf("reported total %d, computed %d", n, computed[trait]),
			})
		}
	}
}

// parseScore accepts non-negative integral JSON numbers. Numeric strings are rejected.
func parseScore(raw any) (int, error) {
	switch n := raw.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n.String())
		}
		return fromFloat(f)
	case float64:
		return fromFloat(n)
	case int:
		return fromInt(int64(n))
	case int64:
		return fromInt(n)
	default:
		return 0, fmt.Errorf("expected a non-negative integer, got %s", describe(raw))
	}
}

func fromInt(i int64) (int, error) {
	if i < 0 {
		return 0, fmt.Errorf("score %d is negative", i)
	}
	if i > math.MaxInt32 {
		return 0, fmt.Errorf("score %d is out of range", i)
	}
	return int(i), nil
}

func fromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("score %v is not an integer", f)
	}
	if f < 0 {
		return 0, fmt.Errorf("score %v is negative", f)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("score %v is out of range", f)
	}
	return int(f), nil
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64, int, int64:
		return "a number"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

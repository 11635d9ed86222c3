package scoring

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/trait-scorer/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTraitSchema() TraitSchema {
	return TraitSchema{
		Name:          "two-trait",
		Traits:        []string{"a", "b"},
		Regions:       []string{"eyes"},
		RequiredTotal: 10,
		Explanation:   ExplanationNone,
	}
}

func fiveTraitSchema(rejectAllZero bool) TraitSchema {
	return TraitSchema{
		Name:          "five-trait",
		Traits:        []string{"a", "b", "c", "d", "e"},
		Regions:       []string{"eyes"},
		RequiredTotal: 10,
		RejectAllZero: rejectAllZero,
	}
}

// decodePayload parses JSON the way the extractor does, with json.Number values.
func decodePayload(t *testing.T, text string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr), "expected *ValidationError, got %v", err)
	return validationErr
}

func TestValidate_SumCheck(t *testing.T) {
	result, err := Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 6}}`), twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 4, "b": 6}, result.Totals)

	_, err = Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 5}}`), twoTraitSchema())
	validationErr := requireValidationError(t, err)
	require.Len(t, validationErr.Violations, 1)

	v := validationErr.Violations[0]
	assert.Equal(t, KindSumMismatch, v.Kind)
	assert.Equal(t, "eyes", v.Region)
	require.NotNil(t, v.Actual)
	require.NotNil(t, v.Expected)
	assert.Equal(t, 9, *v.Actual)
	assert.Equal(t, 10, *v.Expected)
}

func TestValidate_DegenerateDistribution(t *testing.T) {
	payload := `{"eyes": {"a": 0, "b": 0, "c": 0, "d": 0, "e": 0}}`

	_, err := Validate(decodePayload(t, payload), fiveTraitSchema(true))
	validationErr := requireValidationError(t, err)
	assert.Contains(t, validationErr.Kinds(), KindDegenerateDistribution)

	_, err = Validate(decodePayload(t, payload), fiveTraitSchema(false))
	validationErr = requireValidationError(t, err)
	assert.NotContains(t, validationErr.Kinds(), KindDegenerateDistribution)
	assert.Equal(t, []Kind{KindSumMismatch}, validationErr.Kinds())
}

func TestValidate_DegenerateAllowedWhenTotalIsZero(t *testing.T) {
	schema := fiveTraitSchema(false)
	schema.RequiredTotal = 0

	result, err := Validate(decodePayload(t, `{"eyes": {"a": 0, "b": 0, "c": 0, "d": 0, "e": 0}}`), schema)
	require.NoError(t, err)
	assert.Equal(t, 0, result.GrandTotal())
}

func TestValidate_NotAnObject(t *testing.T) {
	payloads := []any{
		[]any{json.Number("1")},
		"text",
		json.Number("3"),
		nil,
		true,
	}

	for _, p := range payloads {
		_, err := Validate(p, twoTraitSchema())
		validationErr := requireValidationError(t, err)
		assert.Equal(t, []Kind{KindNotAnObject}, validationErr.Kinds())
		assert.Nil(t, validationErr.Partial)
	}
}

func TestValidate_MissingRegionOnly(t *testing.T) {
	schema := TraitSchema{
		Name:          "eyes-mouth",
		Traits:        []string{"oral", "rigid"},
		Regions:       []string{"eyes", "mouth"},
		RequiredTotal: 10,
	}

	_, err := Validate(decodePayload(t, `{"eyes": {"oral": 5, "rigid": 5}}`), schema)
	validationErr := requireValidationError(t, err)
	require.Len(t, validationErr.Violations, 1)
	assert.Equal(t, KindMissingRegion, validationErr.Violations[0].Kind)
	assert.Equal(t, "mouth", validationErr.Violations[0].Region)

	require.NotNil(t, validationErr.Partial)
	assert.Equal(t, []string{"eyes"}, validationErr.Partial.RegionOrder)
	assert.Equal(t, map[string]int{"oral": 5, "rigid": 5}, validationErr.Partial.Totals)
}

func TestValidate_MalformedRegion(t *testing.T) {
	_, err := Validate(decodePayload(t, `{"eyes": [4, 6]}`), twoTraitSchema())
	validationErr := requireValidationError(t, err)
	assert.Equal(t, []Kind{KindMalformedRegion}, validationErr.Kinds())
	assert.Contains(t, validationErr.Violations[0].Details, "an array")
}

func TestValidate_MissingTraitDefaultsToZero(t *testing.T) {
	result, err := Validate(decodePayload(t, `{"eyes": {"a": 10}}`), twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Regions["eyes"].Scores["b"])
	assert.Equal(t, map[string]int{"a": 10, "b": 0}, result.Totals)
}

func TestValidate_UnknownTrait(t *testing.T) {
	_, err := Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 6, "zeta": 0}}`), twoTraitSchema())
	validationErr := requireValidationError(t, err)
	require.Len(t, validationErr.Violations, 1)
	assert.Equal(t, KindUnknownTrait, validationErr.Violations[0].Kind)
	assert.Equal(t, "zeta", validationErr.Violations[0].Trait)
}

func TestValidate_InvalidScores(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"negative", `{"eyes": {"a": -1, "b": 11}}`},
		{"fraction", `{"eyes": {"a": 4.5, "b": 5.5}}`},
		{"numeric string", `{"eyes": {"a": "4", "b": 6}}`},
		{"null", `{"eyes": {"a": null, "b": 10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(decodePayload(t, tt.payload), twoTraitSchema())
			validationErr := requireValidationError(t, err)
			assert.Contains(t, validationErr.Kinds(), KindInvalidScore)
			assert.NotContains(t, validationErr.Kinds(), KindSumMismatch)
		})
	}
}

func TestValidate_IntegralFloatAccepted(t *testing.T) {
	result, err := Validate(decodePayload(t, `{"eyes": {"a": 4.0, "b": 6}}`), twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, 4, result.Regions["eyes"].Scores["a"])
}

func TestValidate_PlainFloat64Payload(t *testing.T) {
	var payload any
	require.NoError(t, json.Unmarshal([]byte(`{"eyes": {"a": 3, "b": 7}}`), &payload))

	result, err := Validate(payload, twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 7}, result.Totals)
}

func TestValidate_Explanations(t *testing.T) {
	perRegion := twoTraitSchema()
	perRegion.Explanation = ExplanationPerRegion

	perTrait := twoTraitSchema()
	perTrait.Explanation = ExplanationPerTrait
	perTrait.ExplanationKey = "explicacao"

	tests := []struct {
		name    string
		schema  TraitSchema
		payload string
		kinds   []Kind
	}{
		{
			name:    "per region present",
			schema:  perRegion,
			payload: `{"eyes": {"a": 4, "b": 6, "explanation": "tense gaze"}}`,
		},
		{
			name:    "per region missing",
			schema:  perRegion,
			payload: `{"eyes": {"a": 4, "b": 6}}`,
			kinds:   []Kind{KindMissingExplanation},
		},
		{
			name:    "per region blank",
			schema:  perRegion,
			payload: `{"eyes": {"a": 4, "b": 6, "explanation": "   "}}`,
			kinds:   []Kind{KindMissingExplanation},
		},
		{
			name:    "per region given object",
			schema:  perRegion,
			payload: `{"eyes": {"a": 4, "b": 6, "explanation": {"a": "x", "b": "y"}}}`,
			kinds:   []Kind{KindMissingExplanation},
		},
		{
			name:    "per trait complete",
			schema:  perTrait,
			payload: `{"eyes": {"a": 4, "b": 6, "explicacao": {"a": "x", "b": "y"}}}`,
		},
		{
			name:    "per trait shared text accepted",
			schema:  perTrait,
			payload: `{"eyes": {"a": 4, "b": 6, "explicacao": "shared"}}`,
		},
		{
			name:    "per trait one missing",
			schema:  perTrait,
			payload: `{"eyes": {"a": 4, "b": 6, "explicacao": {"a": "x"}}}`,
			kinds:   []Kind{KindMissingExplanation},
		},
		{
			name:    "per trait object with unknown key",
			schema:  perTrait,
			payload: `{"eyes": {"a": 4, "b": 6, "explicacao": {"a": "x", "b": "y", "zzz": "z"}}}`,
			kinds:   []Kind{KindUnknownTrait},
		},
		{
			name:    "explanation key under default name is an unknown trait",
			schema:  perTrait,
			payload: `{"eyes": {"a": 4, "b": 6, "explanation": "x"}}`,
			kinds:   []Kind{KindUnknownTrait, KindMissingExplanation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(decodePayload(t, tt.payload), tt.schema)
			if len(tt.kinds) == 0 {
				assert.NoError(t, err)
				return
			}
			validationErr := requireValidationError(t, err)
			assert.Equal(t, tt.kinds, validationErr.Kinds())
		})
	}
}

func TestValidate_UnknownExplanationKeyNamed(t *testing.T) {
	schema := twoTraitSchema()
	schema.Explanation = ExplanationPerTrait

	_, err := Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 6, "explanation": {"a": "x", "b": "y", "zzz": "z"}}}`), schema)
	validationErr := requireValidationError(t, err)
	require.Len(t, validationErr.Violations, 1)
	assert.Equal(t, "eyes", validationErr.Violations[0].Region)
	assert.Equal(t, "zzz", validationErr.Violations[0].Trait)
}

func TestValidate_RejectsBrokenSchema(t *testing.T) {
	schema := twoTraitSchema()
	schema.Traits = []string{"a", "a"}

	result, err := Validate(decodePayload(t, `{"eyes": {"a": 5}}`), schema)
	assert.Nil(t, result)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr), "expected *SchemaError, got %v", err)
	assert.Contains(t, schemaErr.Message, "duplicate trait")
}

func TestValidate_ExplanationCapturedWhenOptional(t *testing.T) {
	result, err := Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 6, "explanation": " calm "}}`), twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, "calm", result.Regions["eyes"].Explanation)
}

func TestValidate_TotalsRecomputedAndCompared(t *testing.T) {
	schema := TraitSchema{
		Name:          "body",
		Traits:        []string{"oral", "rigido"},
		Regions:       []string{"olhos", "boca"},
		RequiredTotal: 10,
		TotalsKey:     "soma_total_por_traco",
	}

	ok := `{"olhos": {"oral": 3, "rigido": 7}, "boca": {"oral": 6, "rigido": 4},
		"soma_total_por_traco": {"oral": 9, "rigido": 11}}`
	result, err := Validate(decodePayload(t, ok), schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"oral": 9, "rigido": 11}, result.Totals)

	wrong := `{"olhos": {"oral": 3, "rigido": 7}, "boca": {"oral": 6, "rigido": 4},
		"soma_total_por_traco": {"oral": 10, "rigido": 11, "outro": 1}}`
	_, err = Validate(decodePayload(t, wrong), schema)
	validationErr := requireValidationError(t, err)
	assert.Equal(t, []Kind{KindUnknownTrait, KindTotalsMismatch}, validationErr.Kinds())

	mismatch := validationErr.Violations[1]
	assert.Equal(t, "oral", mismatch.Trait)
	assert.Equal(t, 9, *mismatch.Expected)
	assert.Equal(t, 10, *mismatch.Actual)

	// The partial result carries recomputed totals, not the model's.
	assert.Equal(t, 9, validationErr.Partial.Totals["oral"])
}

func TestValidate_MalformedTotals(t *testing.T) {
	_, err := Validate(decodePayload(t, `{"eyes": {"a": 4, "b": 6}, "totals": [10]}`), twoTraitSchema())
	validationErr := requireValidationError(t, err)
	assert.Equal(t, []Kind{KindMalformedTotals}, validationErr.Kinds())
}

func TestValidate_ReportsEveryViolationInOrder(t *testing.T) {
	schema := TraitSchema{
		Name:          "many",
		Traits:        []string{"a", "b"},
		Regions:       []string{"r1", "r2", "r3", "r4"},
		RequiredTotal: 10,
		RejectAllZero: true,
		Explanation:   ExplanationPerRegion,
	}
	payload := `{
		"r1": {"a": 4, "b": 5, "explanation": "x"},
		"r2": "oops",
		"r4": {"a": 0, "b": 0}
	}`

	_, err := Validate(decodePayload(t, payload), schema)
	validationErr := requireValidationError(t, err)
	assert.Equal(t, []Kind{
		KindSumMismatch,
		KindMalformedRegion,
		KindMissingRegion,
		KindSumMismatch,
		KindDegenerateDistribution,
		KindMissingExplanation,
	}, validationErr.Kinds())

	regions := []string{}
	for _, v := range validationErr.Violations {
		regions = append(regions, v.Region)
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r4", "r4", "r4"}, regions)
	assert.Contains(t, validationErr.Error(), "1. r1: sum_mismatch")
}

func TestValidate_Deterministic(t *testing.T) {
	payload := decodePayload(t, `{"eyes": {"a": 4, "b": 6, "explanation": "same"}}`)

	first, err := Validate(payload, twoTraitSchema())
	require.NoError(t, err)
	second, err := Validate(payload, twoTraitSchema())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidate_PayloadRoundTrip(t *testing.T) {
	schema := TraitSchema{
		Name:           "body",
		Traits:         []string{"oral", "rigido"},
		Regions:        []string{"olhos", "boca"},
		RequiredTotal:  10,
		Explanation:    ExplanationPerTrait,
		TotalsKey:      "soma_total_por_traco",
		ExplanationKey: "explicacao",
	}
	payload := `{
		"olhos": {"oral": 3, "rigido": 7, "explicacao": {"oral": "soft", "rigido": "fixed"}},
		"boca": {"oral": 5, "rigido": 5, "explicacao": "balanced"}
	}`

	first, err := Validate(decodePayload(t, payload), schema)
	require.NoError(t, err)

	again, err := Validate(first.Payload(schema), schema)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestExtractThenValidate_EndToEnd(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"eyes\": {\"oral\": 3, \"rigid\": 7}}\n```\nLet me know if you need more."
	schema := TraitSchema{
		Name:          "eyes",
		Traits:        []string{"oral", "rigid"},
		Regions:       []string{"eyes"},
		RequiredTotal: 10,
	}

	payload, err := extract.Extract(raw)
	require.NoError(t, err)

	result, err := Validate(payload, schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"oral": 3, "rigid": 7}, result.Totals)
}

func TestValidate_ConcurrentUse(t *testing.T) {
	schema := twoTraitSchema()
	payload := decodePayload(t, `{"eyes": {"a": 2, "b": 8}}`)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			_, err := Validate(payload, schema)
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		assert.NoError(t, <-done)
	}
}

func TestValidatedResult_Ranking(t *testing.T) {
	schema := TraitSchema{
		Name:          "ranked",
		Traits:        []string{"a", "b", "c"},
		Regions:       []string{"eyes", "mouth"},
		RequiredTotal: 10,
	}
	payload := decodePayload(t, `{
		"eyes":  {"a": 2, "b": 4, "c": 4},
		"mouth": {"a": 6, "b": 2, "c": 2}
	}`)

	result, err := Validate(payload, schema)
	require.NoError(t, err)
	assert.Equal(t, 20, result.GrandTotal())

	// a=8, b=6, c=6: the b/c tie keeps schema order.
	assert.Equal(t, []TraitTotal{
		{Trait: "a", Total: 8},
		{Trait: "b", Total: 6},
		{Trait: "c", Total: 6},
	}, result.Ranking())

	totals, explanation := schema.Keys()
	assert.Equal(t, DefaultTotalsKey, totals)
	assert.Equal(t, DefaultExplanationKey, explanation)
}

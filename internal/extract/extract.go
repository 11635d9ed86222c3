// Package extract recovers the JSON payload embedded in a free-text model reply.
//
// Models wrap JSON in markdown fences or surround it with commentary even when told not
// to. The extractor tries an ordered list of strategies, each producing a candidate
// substring, and returns the first candidate that decodes as JSON.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Strategy isolates a candidate JSON text from a raw reply.
// It returns false when it finds nothing worth parsing.
type Strategy interface {
	Name() string
	Candidate(raw string) (string, bool)
}

// Fence markers; the language tag after the opening fence is optional and matched case-insensitively.
var (
	openFence  = regexp.MustCompile("(?i)^```[a-z0-9_+-]*[ \t]*\r?\n?")
	closeFence = regexp.MustCompile("\r?\n?```[ \t]*$")
)

// FenceStrategy strips a leading and trailing markdown code fence and accepts the
// remainder only when it is a brace-delimited object.
type FenceStrategy struct{}

// Name implements Strategy.
func (FenceStrategy) Name() string { return "fence" }

// Candidate implements Strategy.
func (FenceStrategy) Candidate(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	text = openFence.ReplaceAllString(text, "")
	text = closeFence.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text, true
	}
	return "", false
}

// BraceSpanStrategy takes everything from the first '{' to the last '}' inclusive.
// The match is greedy: prose after the object that itself contains braces is captured too.
type BraceSpanStrategy struct{}

// Name implements Strategy.
func (BraceSpanStrategy) Name() string { return "brace_span" }

// Candidate implements Strategy.
func (BraceSpanStrategy) Candidate(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// DefaultStrategies returns fence stripping followed by the brace-span fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{FenceStrategy{}, BraceSpanStrategy{}}
}

// Extractor runs its strategies in order.
type Extractor struct {
	Strategies []Strategy
}

// New returns an Extractor using DefaultStrategies.
func New() *Extractor {
	return &Extractor{Strategies: DefaultStrategies()}
}

// Extract returns the decoded JSON value or an *ExtractionError carrying raw unchanged.
func (e *Extractor) Extract(raw string) (any, error) {
	strategies := e.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	var lastErr error
	tried := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		candidate, ok := s.Candidate(raw)
		if !ok || tried[candidate] {
			continue
		}
		tried[candidate] = true

		value, err := decode(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		return value, nil
	}

	if lastErr == nil {
		return nil, &ExtractionError{Raw: raw, Message: "no JSON object found"}
	}
	return nil, &ExtractionError{Raw: raw, Message: "candidate is not valid JSON", Cause: lastErr}
}

// Extract runs the default extractor.
func Extract(raw string) (any, error) {
	return New().Extract(raw)
}

// decode parses a single JSON value, keeping numbers as json.Number.
func decode(text string) (any, error) {
	if !json.Valid([]byte(text)) {
		// Unmarshal reports the position of the first syntax error.
		var probe any
		if err := json.Unmarshal([]byte(text), &probe); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("invalid JSON")
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

package scoring

import "sort"

// RegionScores holds the validated scores of one region.
type RegionScores struct {
	Scores            map[string]int    `json:"scores"`
	Explanation       string            `json:"explanation,omitempty"`
	TraitExplanations map[string]string `json:"trait_explanations,omitempty"`
}

// Sum returns the total of the region's scores.
func (r RegionScores) Sum() int {
	total := 0
	for _, v := range r.Scores {
		total += v
	}
	return total
}

// ValidatedResult is a payload that passed every check of its schema.
type ValidatedResult struct {
	Schema      string                  `json:"schema"`
	RegionOrder []string                `json:"region_order"`
	Traits      []string                `json:"traits"`
	Regions     map[string]RegionScores `json:"regions"`
	Totals      map[string]int          `json:"totals"`
}

// GrandTotal returns the sum of all trait totals.
func (r *ValidatedResult) GrandTotal() int {
	total := 0
	for _, v := range r.Totals {
		total += v
	}
	return total
}

// Payload rebuilds the JSON object shape the result was validated from, using the
// schema's keys. Validating it again yields an equal result.
func (r *ValidatedResult) Payload(schema TraitSchema) map[string]any {
	out := make(map[string]any, len(r.Regions)+1)

	for _, name := range r.RegionOrder {
		region := r.Regions[name]
		obj := make(map[string]any, len(region.Scores)+1)
		for trait, score := range region.Scores {
			obj[trait] = score
		}
		switch {
		case len(region.TraitExplanations) > 0:
			texts := make(map[string]any, len(region.TraitExplanations))
			for trait, text := range region.TraitExplanations {
				texts[trait] = text
			}
			obj[schema.explanationKey()] = texts
		case region.Explanation != "":
			obj[schema.explanationKey()] = region.Explanation
		}
		out[name] = obj
	}

	totals := make(map[string]any, len(r.Totals))
	for trait, total := range r.Totals {
		totals[trait] = total
	}
	out[schema.totalsKey()] = totals

	return out
}

// TraitTotal is one trait's total across all regions.
type TraitTotal struct {
	Trait string `json:"trait"`
	Total int    `json:"total"`
}

// Ranking returns the totals ordered from highest to lowest. Ties keep the
// order in which the schema lists the traits.
func (r *ValidatedResult) Ranking() []TraitTotal {
	out := make([]TraitTotal, 0, len(r.Traits))
	for _, trait := range r.Traits {
		out = append(out, TraitTotal{Trait: trait, Total: r.Totals[trait]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

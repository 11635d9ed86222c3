package analysis

import (
	"math"

	"github.com/jonathan/trait-scorer/internal/scoring"
)

// TraitShare is one trait's total and its share of all points.
type TraitShare struct {
	Trait   string  `json:"trait"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Summary ranks the traits of a validated result.
type Summary struct {
	Dominant   string       `json:"dominant"`
	GrandTotal int          `json:"grand_total"`
	Ranking    []TraitShare `json:"ranking"`
}

// Summarize orders traits by total, highest first. Ties keep schema order, so the
// dominant trait is deterministic. Percentages are rounded to one decimal.
func Summarize(result *scoring.ValidatedResult) Summary {
	grand := result.GrandTotal()
	ranking := result.Ranking()

	s := Summary{GrandTotal: grand, Ranking: make([]TraitShare, 0, len(ranking))}
	for _, r := range ranking {
		share := TraitShare{Trait: r.Trait, Total: r.Total}
		if grand > 0 {
			share.Percent = math.Round(float64(r.Total)*1000/float64(grand)) / 10
		}
		s.Ranking = append(s.Ranking, share)
	}
	if len(ranking) > 0 && grand > 0 {
		s.Dominant = ranking[0].Trait
	}
	return s
}

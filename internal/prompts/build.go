package prompts

import (
	"fmt"
	"strings"

	"github.com/jonathan/trait-scorer/internal/scoring"
	"github.com/jonathan/trait-scorer/internal/traits"
)

const (
	scoringFile = "scoring.json"
	reportFile  = "report.json"
)

// Prompt is a system instruction plus the user-turn text sent with the images.
type Prompt struct {
	System string
	User   string
	// Intro is the text placed right before the images.
	Intro string
}

// Text joins the user text and the image intro, skipping empty parts.
func (p Prompt) Text() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{p.User, p.Intro} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildScoringPrompt renders the region scoring instructions for schema, describing
// each trait with the catalog text.
func BuildScoringPrompt(schema scoring.TraitSchema, catalog *traits.Catalog) (Prompt, error) {
	template, err := Get(scoringFile, "scoring-instructions")
	if err != nil {
		return Prompt{}, err
	}
	system, err := Get(scoringFile, "system")
	if err != nil {
		return Prompt{}, err
	}
	intro, err := Get(scoringFile, "image-intro")
	if err != nil {
		return Prompt{}, err
	}
	rule, err := explanationRule(schema)
	if err != nil {
		return Prompt{}, err
	}

	var list strings.Builder
	for _, t := range schema.Traits {
		list.WriteString("- ")
		list.WriteString(t)
		list.WriteString("\n")
	}

	user := Format(template, map[string]string{
		"TraitDescriptions": catalog.Text(schema.Traits...),
		"Regions":           strings.Join(schema.Regions, ", "),
		"RequiredTotal":     fmt.Sprintf("%d", schema.RequiredTotal),
		"TraitList":         strings.TrimRight(list.String(), "\n"),
		"ExplanationRule":   rule,
		"Shape":             Shape(schema),
	})
	return Prompt{System: system, User: user, Intro: intro}, nil
}

func explanationRule(schema scoring.TraitSchema) (string, error) {
	_, key := schema.Keys()
	name := "explanation-none"
	switch schema.Explanation {
	case scoring.ExplanationPerRegion:
		name = "explanation-per-region"
	case scoring.ExplanationPerTrait:
		name = "explanation-per-trait"
	}
	template, err := Get(scoringFile, name)
	if err != nil {
		return "", err
	}
	return Format(template, map[string]string{"Key": key}), nil
}

// Shape renders the JSON layout the model must answer with, keys in schema order.
func Shape(schema scoring.TraitSchema) string {
	totalsKey, explanationKey := schema.Keys()

	traitFields := func(value string) string {
		parts := make([]string, 0, len(schema.Traits))
		for _, t := range schema.Traits {
			parts = append(parts, fmt.Sprintf("%q: %s", t, value))
		}
		return strings.Join(parts, ", ")
	}

	var sb strings.Builder
	sb.WriteString("{\n")
	for _, region := range schema.Regions {
		sb.WriteString(fmt.Sprintf("  %q: {\n    %s", region, traitFields("<inteiro>")))
		switch schema.Explanation {
		case scoring.ExplanationPerRegion:
			sb.WriteString(fmt.Sprintf(",\n    %q: \"<texto>\"", explanationKey))
		case scoring.ExplanationPerTrait:
			sb.WriteString(fmt.Sprintf(",\n    %q: {%s}", explanationKey, traitFields(`"<texto>"`)))
		}
		sb.WriteString("\n  },\n")
	}
	sb.WriteString(fmt.Sprintf("  %q: {%s}\n}", totalsKey, traitFields("<soma>")))
	return sb.String()
}

// BuildClassificationPrompt renders the free-text classification instruction.
func BuildClassificationPrompt(schema scoring.TraitSchema) (Prompt, error) {
	template, err := Get(scoringFile, "classification-system")
	if err != nil {
		return Prompt{}, err
	}
	intro, err := Get(scoringFile, "image-intro")
	if err != nil {
		return Prompt{}, err
	}
	system := Format(template, map[string]string{"Traits": strings.Join(schema.Traits, ", ")})
	return Prompt{System: system, Intro: intro}, nil
}

// BuildReportPrompt renders the narrative report request for a validated result.
func BuildReportPrompt(result *scoring.ValidatedResult) (Prompt, error) {
	template, err := Get(reportFile, "report")
	if err != nil {
		return Prompt{}, err
	}
	system, err := Get(reportFile, "system")
	if err != nil {
		return Prompt{}, err
	}

	ranking := result.Ranking()
	var rankLines strings.Builder
	for _, r := range ranking {
		rankLines.WriteString(fmt.Sprintf("- %s: %d\n", r.Trait, r.Total))
	}

	var regionLines strings.Builder
	for _, name := range result.RegionOrder {
		region := result.Regions[name]
		parts := make([]string, 0, len(result.Traits))
		for _, t := range result.Traits {
			parts = append(parts, fmt.Sprintf("%s=%d", t, region.Scores[t]))
		}
		regionLines.WriteString(fmt.Sprintf("- %s: %s\n", name, strings.Join(parts, ", ")))
	}

	dominant := ""
	if len(ranking) > 0 {
		dominant = ranking[0].Trait
	}

	user := Format(template, map[string]string{
		"GrandTotal": fmt.Sprintf("%d", result.GrandTotal()),
		"Ranking":    strings.TrimRight(rankLines.String(), "\n"),
		"Regions":    strings.TrimRight(regionLines.String(), "\n"),
		"Dominant":   dominant,
	})
	return Prompt{System: system, User: user}, nil
}

package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/postpolish/blog-refresh-tool/backend/internal/genai"
	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// Policy holds the configurable strictness knobs of the analysis pipeline.
// MergeSectionCap bounds how many sections one merge may name (2 = strict).
// MergeRatioThreshold is the aggressiveness guardrail applied by the
// Proposal Generator.
type Policy struct {
	MergeSectionCap     int
	MergeRatioThreshold float64
}

// DefaultPolicy is the strict variant: merges name exactly two sections and
// structure proposals may touch at most 60% of the document.
var DefaultPolicy = Policy{
	MergeSectionCap:     2,
	MergeRatioThreshold: 0.6,
}

// StructureAnalyzer asks the generative model whether any sections should be
// merged, rewritten, or removed, and sanitizes its reply into a validated
// suggestion list. Fail-closed: any analyzer failure yields an empty,
// non-destructive result, never an error.
type StructureAnalyzer struct {
	gen    genai.Generator
	policy Policy
	logger *slog.Logger
}

// NewStructureAnalyzer returns an analyzer using the given generator and policy.
func NewStructureAnalyzer(gen genai.Generator, policy Policy, logger *slog.Logger) *StructureAnalyzer {
	if policy.MergeSectionCap < 2 {
		policy.MergeSectionCap = DefaultPolicy.MergeSectionCap
	}
	return &StructureAnalyzer{gen: gen, policy: policy, logger: logger}
}

// rawAnalysis mirrors the JSON shape the prompt asks for. Suggestions is kept
// raw so a non-list value degrades to "no suggestions" instead of failing the
// whole parse.
type rawAnalysis struct {
	NeedsRestructuring  bool            `json:"needsRestructuring"`
	RestructuringReason string          `json:"restructuringReason"`
	Suggestions         json.RawMessage `json:"suggestions"`
}

// Analyze runs one structure-analysis call over the given sections.
func (a *StructureAnalyzer) Analyze(ctx context.Context, sections []model.Section, title string) model.StructureAnalysis {
	if len(sections) < 2 {
		return safeDefault(len(sections), "Too few sections to restructure.")
	}

	reply, err := a.gen.Generate(ctx, buildAnalysisPrompt(sections, title))
	if err != nil {
		// Structure analysis is a non-critical sub-feature: degrade to the
		// safe default rather than failing the whole analysis run.
		a.logger.Warn("structure analysis call failed", "error", err)
		return safeDefault(len(sections), "Structure analysis was unavailable; leaving sections unchanged.")
	}

	var raw rawAnalysis
	if err := genai.DecodeObject(reply, &raw); err != nil {
		a.logger.Warn("structure analysis reply was unparseable")
		return safeDefault(len(sections), "The analysis reply could not be interpreted; leaving sections unchanged.")
	}

	suggestions := a.validate(decodeSuggestions(raw.Suggestions), len(sections))

	reason := strings.TrimSpace(raw.RestructuringReason)
	if reason == "" {
		reason = "No restructuring needed."
	}

	return model.StructureAnalysis{
		// The model's self-reported flag is never trusted standalone.
		NeedsRestructuring:  anyActionable(suggestions),
		CurrentSectionCount: len(sections),
		RestructuringReason: reason,
		Suggestions:         suggestions,
	}
}

// anyActionable reports whether any suggestion actually changes the document.
func anyActionable(suggestions []model.StructureSuggestion) bool {
	for _, s := range suggestions {
		if s.Action != model.ActionKeep {
			return true
		}
	}
	return false
}

// decodeSuggestions coerces a missing or non-list suggestions value to an
// empty list.
func decodeSuggestions(raw json.RawMessage) []model.StructureSuggestion {
	if len(raw) == 0 {
		return nil
	}
	var suggestions []model.StructureSuggestion
	if err := json.Unmarshal(raw, &suggestions); err != nil {
		return nil
	}
	return suggestions
}

// validate applies the mandatory post-parse pipeline: cardinality bounds,
// index range checks, duplicate-pair suppression, and confidence filtering,
// in that order.
func (a *StructureAnalyzer) validate(suggestions []model.StructureSuggestion, sectionCount int) []model.StructureSuggestion {
	var kept []model.StructureSuggestion
	seen := make(map[string]bool)

	for _, s := range suggestions {
		if !validCardinality(s, a.policy.MergeSectionCap) {
			continue
		}
		if !indicesInRange(s.AffectedSections, sectionCount) {
			continue
		}

		key := pairKey(s.AffectedSections)
		if seen[key] {
			continue
		}

		switch strings.ToLower(s.Confidence) {
		case model.ConfidenceHigh, model.ConfidenceMedium:
			// keep
		default:
			// Low and unlabeled suggestions are discarded entirely.
			continue
		}

		seen[key] = true
		s.Confidence = strings.ToLower(s.Confidence)
		kept = append(kept, s)
	}
	return kept
}

func validCardinality(s model.StructureSuggestion, mergeCap int) bool {
	switch s.Action {
	case model.ActionMerge:
		return len(s.AffectedSections) >= 2 && len(s.AffectedSections) <= mergeCap
	case model.ActionRewrite, model.ActionRemove:
		return len(s.AffectedSections) >= 1
	case model.ActionKeep:
		return true
	default:
		return false
	}
}

func indicesInRange(indices []int, sectionCount int) bool {
	for _, i := range indices {
		if i < 0 || i >= sectionCount {
			return false
		}
	}
	return true
}

// pairKey builds the unordered identity of a suggestion's section set.
func pairKey(indices []int) string {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

func safeDefault(sectionCount int, reason string) model.StructureAnalysis {
	return model.StructureAnalysis{
		NeedsRestructuring:  false,
		CurrentSectionCount: sectionCount,
		RestructuringReason: reason,
		Suggestions:         nil,
	}
}

func buildAnalysisPrompt(sections []model.Section, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are reviewing the structure of a blog post titled %q.\n\n", title)
	b.WriteString("Its sections, in order:\n")
	for _, s := range sections {
		heading := s.Heading
		if heading == "" {
			heading = "(untitled lead-in)"
		}
		fmt.Fprintf(&b, "%d. %s\n", s.OriginalIndex, heading)
	}

	b.WriteString(`
Identify sections that overlap enough to merge, or that should be rewritten or
removed. Propose a merge ONLY when you are highly confident the sections cover
the same topic. Label every suggestion with a confidence level:
- "high": the headings clearly describe the same topic
- "medium": the headings probably overlap
- "low": you are guessing

Respond with ONLY a JSON object, no prose, in this exact shape:
{
  "needsRestructuring": true,
  "restructuringReason": "one sentence",
  "suggestions": [
    {
      "action": "merge",
      "affectedSections": [0, 1],
      "newHeading": "heading for the merged section",
      "rationale": "one sentence",
      "confidenceLevel": "high"
    }
  ]
}

Valid actions are "merge", "rewrite", "remove", and "keep". A merge must name
exactly the sections being combined, by the indices listed above. If nothing
needs to change, return "needsRestructuring": false with an empty suggestions
list.`)
	return b.String()
}

package refresh

import (
	"fmt"
	"math"
	"strings"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// ProposalGenerator turns link evaluations and a validated structure analysis
// into user-facing proposals. Pure and deterministic: identical inputs yield
// identical output, link-fixes first, then structure proposals in suggestion
// order.
type ProposalGenerator struct {
	policy Policy
}

// NewProposalGenerator returns a generator applying the given policy's
// aggressiveness guardrail.
func NewProposalGenerator(policy Policy) *ProposalGenerator {
	if policy.MergeRatioThreshold <= 0 || policy.MergeRatioThreshold > 1 {
		policy.MergeRatioThreshold = DefaultPolicy.MergeRatioThreshold
	}
	return &ProposalGenerator{policy: policy}
}

// Generate builds the proposal list for one analysis run.
func (g *ProposalGenerator) Generate(sections []model.Section, evals []model.LinkEvaluation, analysis model.StructureAnalysis) []model.Proposal {
	var proposals []model.Proposal

	if p, ok := linkFixProposal(evals); ok {
		proposals = append(proposals, p)
	}

	if !analysis.NeedsRestructuring || len(analysis.Suggestions) == 0 {
		return proposals
	}

	// Aggressiveness guardrail: one over-eager model reply must not gut the
	// document. When merges touch too large a fraction of the sections,
	// abandon every structure proposal for this run.
	if g.tooAggressive(analysis.Suggestions, len(sections)) {
		return proposals
	}

	for i, s := range analysis.Suggestions {
		if s.Action == model.ActionKeep {
			continue
		}

		title, description := describeSuggestion(s, sections)
		proposals = append(proposals, model.Proposal{
			ID:               fmt.Sprintf("proposal-structure-%d", i),
			Type:             model.ProposalStructure,
			Title:            title,
			Description:      description,
			Rationale:        s.Rationale,
			Action:           s.Action,
			AffectedSections: s.AffectedSections,
			NewHeading:       s.NewHeading,
		})
	}
	return proposals
}

// tooAggressive reports whether the merge suggestions collectively touch more
// sections than the ratio threshold allows. The budget rounds up to a whole
// section so small documents are not blocked from any merge at all.
func (g *ProposalGenerator) tooAggressive(suggestions []model.StructureSuggestion, sectionCount int) bool {
	if sectionCount == 0 {
		return true
	}

	var mergeAffected int
	for _, s := range suggestions {
		if s.Action == model.ActionMerge {
			mergeAffected += len(s.AffectedSections)
		}
	}

	budget := int(math.Ceil(g.policy.MergeRatioThreshold * float64(sectionCount)))
	return mergeAffected > budget
}

func linkFixProposal(evals []model.LinkEvaluation) (model.Proposal, bool) {
	var broken []model.LinkEvaluation
	for _, e := range evals {
		if !e.Working {
			broken = append(broken, e)
		}
	}
	if len(broken) == 0 {
		return model.Proposal{}, false
	}

	description := fmt.Sprintf("%d broken links were found and will be flagged for review.", len(broken))
	if len(broken) == 1 {
		description = "1 broken link was found and will be flagged for review."
	}

	return model.Proposal{
		ID:            "proposal-links",
		Type:          model.ProposalLinkFixes,
		Title:         "Fix broken links",
		Description:   description,
		Rationale:     "Broken links frustrate readers and hurt the post's credibility.",
		AffectedLinks: broken,
	}, true
}

// describeSuggestion synthesizes a human-readable title and description that
// reference the actual section headings rather than raw indices.
func describeSuggestion(s model.StructureSuggestion, sections []model.Section) (string, string) {
	headings := make([]string, len(s.AffectedSections))
	for i, idx := range s.AffectedSections {
		headings[i] = fmt.Sprintf("%q", sectionHeading(sections, idx))
	}
	joined := strings.Join(headings, " and ")

	switch s.Action {
	case model.ActionMerge:
		title := "Merge sections: " + strings.Join(headings, " + ")
		description := fmt.Sprintf("Combine %s into a single section.", joined)
		if s.NewHeading != "" {
			description = fmt.Sprintf("Combine %s into a single section titled %q.", joined, s.NewHeading)
		}
		return title, description
	case model.ActionRewrite:
		return "Rewrite section: " + joined, fmt.Sprintf("Rewrite %s for clarity while preserving its meaning.", joined)
	case model.ActionRemove:
		return "Remove section: " + joined, fmt.Sprintf("Remove %s from the post.", joined)
	default:
		return "Restructure sections: " + joined, fmt.Sprintf("Apply a %s change to %s.", s.Action, joined)
	}
}

func sectionHeading(sections []model.Section, index int) string {
	for _, s := range sections {
		if s.OriginalIndex == index {
			if s.Heading == "" {
				return "(untitled lead-in)"
			}
			return s.Heading
		}
	}
	return fmt.Sprintf("section %d", index)
}

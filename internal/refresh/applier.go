package refresh

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/postpolish/blog-refresh-tool/backend/internal/genai"
	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// brokenLinkClass marks anchors whose targets were rewritten to a placeholder
// so the front-end can highlight them.
const brokenLinkClass = "broken-link"

// ChangeApplier applies approved proposals to the original content. Link
// fixes are in-place DOM edits; structural edits are delegated to a
// generative rewrite that must return full replacement HTML. Unlike the
// analyzer, any parse or model error propagates: silently returning unedited
// content would mislead the approving human.
type ChangeApplier struct {
	gen genai.Generator
}

// NewChangeApplier returns an applier using the given generator.
func NewChangeApplier(gen genai.Generator) *ChangeApplier {
	return &ChangeApplier{gen: gen}
}

// Apply produces the final HTML for the approved subset of proposals.
func (a *ChangeApplier) Apply(ctx context.Context, originalContent string, approved []model.Proposal, originalSections []model.Section) (string, error) {
	var linkFixes *model.Proposal
	var structural []model.Proposal
	for i := range approved {
		switch approved[i].Type {
		case model.ProposalLinkFixes:
			linkFixes = &approved[i]
		case model.ProposalStructure:
			structural = append(structural, approved[i])
		}
	}

	result := originalContent
	if linkFixes != nil {
		fixed, err := applyLinkFixes(originalContent, linkFixes.AffectedLinks)
		if err != nil {
			return "", err
		}
		result = fixed
	}

	if len(structural) == 0 {
		return result, nil
	}

	reply, err := a.gen.Generate(ctx, buildRewritePrompt(originalContent, structural, originalSections))
	if err != nil {
		return "", fmt.Errorf("structural rewrite: %w", err)
	}
	rewritten := genai.StripCodeFences(reply)

	// The rewrite prompt carries the original, unedited content, so link
	// fixes are re-applied on top of the rewritten document rather than
	// trusting the model to have preserved them.
	if linkFixes != nil {
		return applyLinkFixes(rewritten, linkFixes.AffectedLinks)
	}
	return rewritten, nil
}

// applyLinkFixes rewrites every anchor matching a broken link's URL to point
// at a placeholder and tags it with the marker class.
func applyLinkFixes(content string, broken []model.LinkEvaluation) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	targets := make(map[string]bool, len(broken))
	for _, b := range broken {
		targets[b.URL] = true
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !targets[href] {
			return
		}
		sel.SetAttr("href", "#")
		sel.AddClass(brokenLinkClass)
	})

	html, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	return html, nil
}

func buildRewritePrompt(content string, structural []model.Proposal, sections []model.Section) string {
	var b strings.Builder

	b.WriteString("You are editing a blog post's HTML. The full original content follows.\n\n")
	b.WriteString("ORIGINAL CONTENT:\n")
	b.WriteString(content)
	b.WriteString("\n\nORIGINAL SECTIONS, by index:\n")
	for _, s := range sections {
		heading := s.Heading
		if heading == "" {
			heading = "(untitled lead-in)"
		}
		fmt.Fprintf(&b, "%d. %s\n", s.OriginalIndex, heading)
	}

	b.WriteString("\nAPPROVED CHANGES:\n")
	for i, p := range structural {
		fmt.Fprintf(&b, "%d. %s sections %s", i+1, p.Action, formatIndices(p.AffectedSections))
		if p.NewHeading != "" {
			fmt.Fprintf(&b, " under the new heading %q", p.NewHeading)
		}
		if p.Rationale != "" {
			fmt.Fprintf(&b, " (%s)", p.Rationale)
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Apply ONLY the approved changes above, touching ONLY the named sections. Every
other part of the content must be preserved exactly, including its wording,
links, and markup. Return the complete replacement HTML for the whole post.
Return ONLY the HTML: no explanations, no markdown, no code fences.`)
	return b.String()
}

func formatIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

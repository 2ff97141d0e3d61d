package refresh

import (
	"context"
	"errors"
	"net/url"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/errs"
)

// linkEvaluator defines how the engine checks link reachability.
type linkEvaluator interface {
	Evaluate(ctx context.Context, links []model.Link) []model.LinkEvaluation
}

// structureAnalyzer defines how the engine obtains restructuring suggestions.
type structureAnalyzer interface {
	Analyze(ctx context.Context, sections []model.Section, title string) model.StructureAnalysis
}

// changeApplier defines how the engine applies approved proposals.
type changeApplier interface {
	Apply(ctx context.Context, originalContent string, approved []model.Proposal, originalSections []model.Section) (string, error)
}

// Engine orchestrates fetching, section/link extraction, evaluation,
// structure analysis, proposal generation, and change application.
type Engine struct {
	fetcher   Fetcher
	evaluator linkEvaluator
	analyzer  structureAnalyzer
	applier   changeApplier
	proposals *ProposalGenerator
}

// NewEngine returns an Engine wired from its collaborators.
func NewEngine(fetcher Fetcher, evaluator linkEvaluator, analyzer structureAnalyzer, applier changeApplier, proposals *ProposalGenerator) *Engine {
	return &Engine{
		fetcher:   fetcher,
		evaluator: evaluator,
		analyzer:  analyzer,
		applier:   applier,
		proposals: proposals,
	}
}

// FetchContent retrieves a page and extracts its title and main content.
func (e *Engine) FetchContent(ctx context.Context, targetURL string) (*model.PageContent, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).",
			Cause:   err,
		}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).",
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Only http and https URLs are supported.",
		}
	}

	body, statusCode, err := e.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.Unreachable,
			Message: "The provided URL could not be reached. Check the address.",
			Cause:   err,
		}
	}
	defer func() { _ = body.Close() }()

	if statusCode >= 400 {
		return nil, &errs.AppError{
			Kind:           errs.Unreachable,
			UpstreamStatus: statusCode,
			Message:        "The provided URL returned an error status.",
		}
	}

	page, err := ExtractPage(body, targetURL)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.ParsingFailed,
			Message: "Failed to parse the HTML content.",
			Cause:   err,
		}
	}
	return page, nil
}

// AnalyzeContent runs one analysis pass: extract sections and links, evaluate
// link reachability, analyze structure, and generate proposals. Link
// evaluation and structure analysis are independent of each other; both feed
// the proposal generator.
func (e *Engine) AnalyzeContent(ctx context.Context, content, title string) (*model.AnalysisResult, error) {
	sections, links, err := SplitContent(content)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.ParsingFailed,
			Message: "Failed to parse the HTML content.",
			Cause:   err,
		}
	}

	evaluations := e.evaluator.Evaluate(ctx, links)
	analysis := e.analyzer.Analyze(ctx, sections, title)
	proposals := e.proposals.Generate(sections, evaluations, analysis)

	return &model.AnalysisResult{
		Sections:          sections,
		LinkEvaluations:   evaluations,
		StructureAnalysis: analysis,
		Proposals:         proposals,
	}, nil
}

// ApplyChanges applies the approved proposals to the original content.
func (e *Engine) ApplyChanges(ctx context.Context, content string, approved []model.Proposal, sections []model.Section) (string, error) {
	refreshed, err := e.applier.Apply(ctx, content, approved, sections)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &errs.AppError{
				Kind:    errs.Timeout,
				Message: "Applying changes timed out.",
				Cause:   err,
			}
		}
		return "", &errs.AppError{
			Kind:    errs.GenerationFailed,
			Message: "Failed to apply the approved changes.",
			Cause:   err,
		}
	}
	return refreshed, nil
}

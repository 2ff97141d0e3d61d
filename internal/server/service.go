package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/errs"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/requestid"
)

// Service orchestrates a RefreshProvider and logs results.
type Service struct {
	provider RefreshProvider
	logger   *slog.Logger
}

// NewService creates a Service backed by the given provider.
func NewService(provider RefreshProvider, logger *slog.Logger) *Service {
	return &Service{provider: provider, logger: logger}
}

// FetchContent delegates to the provider and logs the outcome.
func (s *Service) FetchContent(ctx context.Context, targetURL string) (*model.PageContent, error) {
	logger := s.logger.With("url", targetURL, "request_id", requestid.FromContext(ctx))

	page, err := s.provider.FetchContent(ctx, targetURL)
	if err != nil {
		err = wrapTimeout(ctx, err, "Fetching the page timed out. The target URL may be slow to respond.")
		logger.Error("fetch failed", "error", err)
		return nil, err
	}

	logger.Info("fetch complete", "title", page.Title, "content_bytes", len(page.Content))
	return page, nil
}

// AnalyzeContent delegates to the provider and logs the outcome.
func (s *Service) AnalyzeContent(ctx context.Context, content, title string) (*model.AnalysisResult, error) {
	logger := s.logger.With("title", title, "request_id", requestid.FromContext(ctx))

	result, err := s.provider.AnalyzeContent(ctx, content, title)
	if err != nil {
		err = wrapTimeout(ctx, err, "Analysis timed out. The content may be too large.")
		logger.Error("analysis failed", "error", err)
		return nil, err
	}

	var broken int
	for _, e := range result.LinkEvaluations {
		if !e.Working {
			broken++
		}
	}
	logger.Info("analysis complete",
		"sections", len(result.Sections),
		"links_checked", len(result.LinkEvaluations),
		"broken_links", broken,
		"needs_restructuring", result.StructureAnalysis.NeedsRestructuring,
		"proposals", len(result.Proposals),
	)
	return result, nil
}

// ApplyChanges delegates to the provider and logs the outcome.
func (s *Service) ApplyChanges(ctx context.Context, content string, approved []model.Proposal, sections []model.Section) (string, error) {
	logger := s.logger.With("approved_proposals", len(approved), "request_id", requestid.FromContext(ctx))

	refreshed, err := s.provider.ApplyChanges(ctx, content, approved, sections)
	if err != nil {
		err = wrapTimeout(ctx, err, "Applying changes timed out.")
		logger.Error("apply failed", "error", err)
		return "", err
	}

	logger.Info("apply complete", "refreshed_bytes", len(refreshed))
	return refreshed, nil
}

// wrapTimeout reclassifies an error as a Timeout when the request deadline
// was exceeded.
func wrapTimeout(ctx context.Context, err error, message string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &errs.AppError{
			Kind:    errs.Timeout,
			Message: message,
			Cause:   err,
		}
	}
	return err
}

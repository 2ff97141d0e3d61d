package server

import (
	"context"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
)

// RefreshProvider defines the contract for the content-refresh engine.
type RefreshProvider interface {
	FetchContent(ctx context.Context, targetURL string) (*model.PageContent, error)
	AnalyzeContent(ctx context.Context, content, title string) (*model.AnalysisResult, error)
	ApplyChanges(ctx context.Context, content string, approved []model.Proposal, sections []model.Section) (string, error)
}

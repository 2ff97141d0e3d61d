package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/postpolish/blog-refresh-tool/backend/internal/model"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/errs"
)

const (
	fetchTimeout   = 30 * time.Second
	analyzeTimeout = 90 * time.Second
	applyTimeout   = 120 * time.Second
)

var (
	errURLRequired       = errors.New("the \"url\" field is required")
	errContentRequired   = errors.New("the \"content\" field is required")
	errProposalsRequired = errors.New("the \"approvedProposals\" field is required")
)

// Transport handles HTTP requests for the refresh pipeline.
type Transport struct {
	service *Service
	logger  *slog.Logger
}

// NewTransport creates an HTTP transport backed by the given service.
func NewTransport(service *Service, logger *slog.Logger) *Transport {
	return &Transport{service: service, logger: logger}
}

// RegisterRoutes attaches the transport's handlers to the given mux.
func (t *Transport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/fetch-content", t.handleFetchContent)
	mux.HandleFunc("POST /api/analyze", t.handleAnalyze)
	mux.HandleFunc("POST /api/apply-changes", t.handleApplyChanges)
	mux.HandleFunc("GET /healthz", t.handleHealth)
}

type fetchContentRequest struct {
	URL string `json:"url"`
}

func (r fetchContentRequest) validate() error {
	if r.URL == "" {
		return errURLRequired
	}
	return nil
}

type analyzeRequest struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

func (r analyzeRequest) validate() error {
	if r.Content == "" {
		return errContentRequired
	}
	return nil
}

type applyChangesRequest struct {
	Content           string           `json:"content"`
	ApprovedProposals []model.Proposal `json:"approvedProposals"`
	OriginalSections  []model.Section  `json:"originalSections"`
}

func (r applyChangesRequest) validate() error {
	if r.Content == "" {
		return errContentRequired
	}
	if r.ApprovedProposals == nil {
		return errProposalsRequired
	}
	return nil
}

type applyChangesResponse struct {
	RefreshedContent string `json:"refreshedContent"`
}

func (t *Transport) handleFetchContent(w http.ResponseWriter, r *http.Request) {
	const maxRequestBody = 1 << 20 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req fetchContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "Invalid request body. Please send a JSON object with a \"url\" field.")
		return
	}

	if err := req.validate(); err != nil {
		t.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()

	page, err := t.service.FetchContent(ctx, req.URL)
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	t.renderJSON(w, http.StatusOK, page)
}

func (t *Transport) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const maxRequestBody = 5 << 20 // 5 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "Invalid request body. Please send a JSON object with \"content\" and \"title\" fields.")
		return
	}

	if err := req.validate(); err != nil {
		t.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), analyzeTimeout)
	defer cancel()

	result, err := t.service.AnalyzeContent(ctx, req.Content, req.Title)
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	t.renderJSON(w, http.StatusOK, result)
}

func (t *Transport) handleApplyChanges(w http.ResponseWriter, r *http.Request) {
	const maxRequestBody = 5 << 20 // 5 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req applyChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "Invalid request body. Please send a JSON object with \"content\" and \"approvedProposals\" fields.")
		return
	}

	if err := req.validate(); err != nil {
		t.renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), applyTimeout)
	defer cancel()

	refreshed, err := t.service.ApplyChanges(ctx, req.Content, req.ApprovedProposals, req.OriginalSections)
	if err != nil {
		t.handleServiceError(w, err)
		return
	}

	t.renderJSON(w, http.StatusOK, applyChangesResponse{RefreshedContent: refreshed})
}

func (t *Transport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	t.renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *Transport) handleServiceError(w http.ResponseWriter, err error) {
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Kind {
		case errs.InvalidInput:
			status = http.StatusBadRequest
		case errs.Unreachable:
			status = http.StatusBadGateway
		case errs.Timeout:
			status = http.StatusGatewayTimeout
		case errs.ParsingFailed, errs.GenerationFailed, errs.Unknown:
			// 500 Internal Server Error
		}
		t.renderError(w, status, appErr.Message)
		return
	}

	t.renderError(w, http.StatusInternalServerError, "An unexpected error occurred.")
}

func (t *Transport) renderJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		t.logger.Error("failed to encode response", "error", err)
		http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *Transport) renderError(w http.ResponseWriter, status int, message string) {
	t.renderJSON(w, status, model.ErrorResponse{
		Error:      http.StatusText(status),
		StatusCode: status,
		Message:    message,
	})
}

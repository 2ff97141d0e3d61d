package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/postpolish/blog-refresh-tool/backend/internal/genai"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/config"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/logger"
	"github.com/postpolish/blog-refresh-tool/backend/internal/platform/middleware"
	"github.com/postpolish/blog-refresh-tool/backend/internal/refresh"
	"github.com/postpolish/blog-refresh-tool/backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	policy := refresh.Policy{
		MergeSectionCap:     cfg.MergeSectionCap,
		MergeRatioThreshold: cfg.MergeRatioThreshold,
	}

	gen := genai.NewClient(genai.Options{
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})

	engine := refresh.NewEngine(
		refresh.NewHTTPFetcher(),
		refresh.NewLinkEvaluator(cfg.MaxLinksChecked),
		refresh.NewStructureAnalyzer(gen, policy, log),
		refresh.NewChangeApplier(gen),
		refresh.NewProposalGenerator(policy),
	)

	svc := server.NewService(engine, log)
	transport := server.NewTransport(svc, log)

	mux := http.NewServeMux()
	transport.RegisterRoutes(mux)

	handler := middleware.RequestID(middleware.Logging(log)(mux))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("the tool started", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

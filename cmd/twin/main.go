package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xubill/twin/internal/adapter/config"
	"github.com/xubill/twin/internal/adapter/httpapi"
	"github.com/xubill/twin/internal/application/agent"
	"github.com/xubill/twin/internal/application/batch"
	"github.com/xubill/twin/internal/application/onboarding"
	"github.com/xubill/twin/internal/application/orchestrator"
	"github.com/xubill/twin/internal/infrastructure/llm/cohere"
	"github.com/xubill/twin/internal/infrastructure/persistence/supabase"
	"github.com/xubill/twin/internal/infrastructure/scrape"
	"github.com/xubill/twin/internal/infrastructure/telephony/twilio"
	"github.com/xubill/twin/internal/infrastructure/transcript"
	"github.com/xubill/twin/pkg/cron"
	"github.com/xubill/twin/pkg/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Log)

	deps := buildDependencies(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// an empty schedule disables the job
	scheduler := cron.NewService()
	if cfg.Analysis.Schedule != "" {
		if err := scheduler.AddJob("analyze-users", cfg.Analysis.Schedule, func(ctx context.Context) {
			if _, err := deps.processor.RunAnalysis(ctx); err != nil {
				slog.Error("Scheduled analysis failed", "error", err)
			}
		}); err != nil {
			slog.Error("Failed to register analysis job", "error", err)
			os.Exit(1)
		}
	}
	if cfg.Dispatch.Schedule != "" {
		if err := scheduler.AddJob("process-summaries", cfg.Dispatch.Schedule, func(ctx context.Context) {
			if _, err := deps.processor.RunSummaryDispatch(ctx); err != nil {
				slog.Error("Scheduled dispatch failed", "error", err)
			}
		}); err != nil {
			slog.Error("Failed to register dispatch job", "error", err)
			os.Exit(1)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: deps.handler,
	}

	go func() {
		slog.Info("Server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}

type dependencies struct {
	processor *batch.Processor
	handler   http.Handler
}

func buildDependencies(cfg *config.Config) *dependencies {
	// infrastructure
	store := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.APIKey)
	users := supabase.NewUserRepository(store)
	activities := supabase.NewActivityRepository(store)
	summaries := supabase.NewSummaryRepository(store)

	provider := cohere.NewProvider(cfg.Cohere.APIKey, cfg.Cohere.Model)
	sender := twilio.NewSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
	transcripts := transcript.NewFetcher()
	scraper := scrape.NewScraper()

	// application
	runner := agent.NewRunner(provider, sender, transcripts, scraper, cfg.Agent.MaxIterations)
	gate := onboarding.NewGatekeeper(users, sender)
	inbound := orchestrator.New(gate, runner, sender, sender, cfg.Dispatch.HistoryLimit)
	processor := batch.NewProcessor(users, activities, summaries, provider, sender, runner, batch.Options{
		AnalysisWorkers: cfg.Analysis.Workers,
		DispatchWorkers: cfg.Dispatch.Workers,
		LaunchStagger:   cfg.Analysis.LaunchStagger,
		SettleWindow:    cfg.Analysis.SettleWindow,
		TrailingWindow:  cfg.Dispatch.TrailingWindow,
		HistoryLimit:    cfg.Dispatch.HistoryLimit,
	})

	checks := health.NewRegistry()
	checks.Register("supabase", health.ConfigPresent("supabase key", cfg.Supabase.APIKey))
	checks.Register("cohere", health.ConfigPresent("cohere key", cfg.Cohere.APIKey))
	checks.Register("twilio", health.ConfigPresent("twilio credentials", cfg.Twilio.AuthToken))
	checks.Register("datastore", health.Reachable(cfg.Supabase.URL+"/rest/v1/"))

	handler := httpapi.NewHandler(inbound, processor, sender, checks)

	return &dependencies{
		processor: processor,
		handler:   handler,
	}
}

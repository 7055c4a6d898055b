package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/advisor"
	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/goals"
	apphttp "fintrack/internal/http"
	"fintrack/internal/llm"
	applog "fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.OpenStore(startCtx, logger, cfg)
	cancelStart()
	repo := records.NewRepository(res.Store)

	var (
		categorizer services.Categorizer
		summarizer  services.Summarizer
		chat        services.ChatAdvisor
	)
	if cfg.AIEnabled() {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
		adv := advisor.New(client)
		categorizer, summarizer, chat = adv, adv, adv
		logger.Info("AI advisor enabled", "model", client.Model())
	} else {
		logger.Info("AI advisor disabled - no LLM_API_KEY provided")
	}

	insights := cache.NewLRUCache[services.Insight](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	caches := cache.NewManager()
	caches.Register("insights", insights)

	amqpClient := connectPublisher(logger, cfg)
	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	authSvc := auth.NewService(res.Store, repo, []byte(cfg.SessionSecret), cfg.SessionTTL)
	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:       authSvc,
		Ledger:     services.NewLedgerService(repo, goals.NewPlanner(time.Now), categorizer, publisher),
		Dashboard:  services.NewDashboardService(repo, summarizer, insights),
		Advisor:    services.NewAdvisorService(repo, chat, services.DefaultHistoryTurns),
		Profiles:   services.NewProfileService(repo),
		Store:      res.Store,
		Logger:     logger,
		CacheStats: insights.Stats,
	}, apphttp.Options{CookieSecure: cfg.CookieSecure, TrustedProxies: cfg.TrustedProxies})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close record store", applog.FieldError, err)
		}
	})
	go caches.Run(ctx, time.Minute)

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"ai_enabled", cfg.AIEnabled(),
		"events_enabled", amqpClient != nil,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// connectPublisher dials the broker when one is configured. The server
// runs without events when the broker is unreachable.
func connectPublisher(logger *applog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to connect to AMQP, continuing without ledger events",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeExternal)
		return nil
	}
	return client
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/randomtoy/pickwheel/internal/adapters/http"
	"github.com/randomtoy/pickwheel/internal/adapters/llm"
	"github.com/randomtoy/pickwheel/internal/adapters/llm/gemini"
	"github.com/randomtoy/pickwheel/internal/adapters/llm/openrouter"
	"github.com/randomtoy/pickwheel/internal/adapters/prompts"
	"github.com/randomtoy/pickwheel/internal/app"
	"github.com/randomtoy/pickwheel/internal/config"
	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.APIKey() == "" {
		logger.Warn("no API key configured, AI features will fail", "provider", cfg.LLMProvider)
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store := prompts.NewEmbeddedStore()
	norm := app.NewNormalizer(gen, app.NormalizerOptions{
		FallbackModels: cfg.LLMFallbackModels,
		Repairs:        cfg.LLMJSONRepairs,
		Timeout:        cfg.LLMTimeout,
	}, logger)
	assistant := app.NewAssistant(norm, store, logger)
	source := domain.NewRandSource(nil)
	wheels := app.NewWheelService(source, cfg.SpinDuration, store, assistant, logger)
	defer wheels.Close()
	chat := app.NewChatService(gen, store, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))

	httpadapter.NewHandler(wheels, assistant, chat, source).Register(e)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "provider", cfg.LLMProvider, "model", cfg.LLMModel)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		wheels.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.Generator, error) {
	httpClient := llm.NewHTTPClient(cfg.LLMTimeout)

	switch cfg.LLMProvider {
	case config.ProviderOpenRouter:
		return openrouter.NewClient(httpClient, cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.LLMModel, logger), nil
	default:
		client, err := gemini.New(ctx, gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.LLMModel,
			HTTPClient: httpClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return client, nil
	}
}

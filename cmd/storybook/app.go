package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/storybook/internal/config"
	"github.com/jonathan/storybook/internal/fetch"
	"github.com/jonathan/storybook/internal/imagegen"
	"github.com/jonathan/storybook/internal/llm"
	"github.com/jonathan/storybook/internal/logger"
	"github.com/jonathan/storybook/internal/pipeline"
	"github.com/jonathan/storybook/internal/store"
)

// app holds the wired backends shared by the commands
type app struct {
	cfg      *config.Config
	text     llm.Client
	books    store.BookStore
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

// newApp loads configuration and connects every backend
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logger.Init(cfg.LogConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, closers: []io.Closer{logCloser}}

	if cfg.ImageAPIKey == "" {
		_ = a.Close()
		return nil, errors.New("DASHSCOPE_API_KEY is required for image generation")
	}

	text, err := llm.NewClient(ctx, cfg.LLMConfig(), cfg.APIKey)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.text = text

	books, err := store.Open(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open book store: %w", err)
	}
	a.books = books

	images := imagegen.New(imagegen.Options{
		APIKey:  cfg.ImageAPIKey,
		BaseURL: cfg.ImageBaseURL,
		Model:   cfg.ImageModel,
		Timeout: cfg.ImageTimeout(),
	})
	assets := fetch.NewAssets(cfg.ImagesDir(), fetch.DefaultImagePrefix, nil)

	a.pipeline = pipeline.New(a.text, images, assets, a.books, pipeline.Options{
		MaxRegenerations: cfg.MaxRegenerations,
	})

	log.Debug().
		Str("llm_provider", cfg.LLMProvider).
		Str("image_model", cfg.ImageModel).
		Str("store", cfg.StoreBackend).
		Int("max_regenerations", cfg.MaxRegenerations).
		Msg("backends ready")
	return a, nil
}

// Close releases backends in reverse order of creation
func (a *app) Close() error {
	var errs []error
	if a.books != nil {
		errs = append(errs, a.books.Close())
	}
	if a.text != nil {
		errs = append(errs, a.text.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] != nil {
			errs = append(errs, a.closers[i].Close())
		}
	}
	return errors.Join(errs...)
}

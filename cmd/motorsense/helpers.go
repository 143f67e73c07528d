package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/motorsense/internal/classifier"
	"github.com/Veraticus/motorsense/internal/config"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/pipeline"
	"github.com/Veraticus/motorsense/internal/storage"
	"github.com/spf13/viper"
)

// newModel builds the classifier client. Tests replace it.
var newModel = func(v *viper.Viper) (classifier.Model, error) {
	httpModel, err := classifier.NewHTTPModel(config.LoadHTTPConfig(v))
	if err != nil {
		return nil, err
	}

	retry, err := config.LoadRetryOptions(v)
	if err != nil {
		return nil, err
	}

	slog.Debug("Using model server", "endpoint", httpModel.Endpoint(), "max_attempts", retry.MaxAttempts)
	return classifier.WithRetries(httpModel, retry), nil
}

// buildPipeline wires configuration and model into a ready pipeline.
func buildPipeline(v *viper.Viper) (*pipeline.Pipeline, pipeline.Config, error) {
	cfg, err := config.LoadPipelineConfig(v)
	if err != nil {
		return nil, pipeline.Config{}, err
	}

	m, err := newModel(v)
	if err != nil {
		return nil, pipeline.Config{}, err
	}

	p, err := pipeline.New(cfg, m)
	if err != nil {
		return nil, pipeline.Config{}, err
	}
	return p, cfg, nil
}

// initStorage opens the history database and applies migrations.
func initStorage(ctx context.Context, v *viper.Viper) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.DatabasePath(v))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// startRun records a new run for command.
func startRun(ctx context.Context, store *storage.SQLiteStorage, v *viper.Viper, command string, cfg pipeline.Config) (*model.Run, error) {
	run := &model.Run{
		Command:      command,
		Model:        v.GetString("classifier.model"),
		WindowLength: cfg.WindowLength,
		Stride:       cfg.Stride,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

func storedVerdict(runID string, result *pipeline.Result) *model.StoredVerdict {
	return &model.StoredVerdict{
		RunID:          runID,
		Recording:      result.Recording,
		ExpectedLabel:  result.Label,
		Verdict:        result.Verdict,
		SkippedWindows: result.SkippedWindows,
	}
}

// cmd/chew-check/wire.go
package main

import (
	"fmt"
	"log/slog"

	"mcp-chew-check/internal/advisory"
	"mcp-chew-check/internal/chewcheck"
	"mcp-chew-check/internal/classifier"
	"mcp-chew-check/internal/config"
	"mcp-chew-check/internal/logging"
	"mcp-chew-check/internal/photostore"
	"mcp-chew-check/internal/storage"
	"mcp-chew-check/internal/telemetry"
)

// app holds everything a command needs; close releases the database.
type app struct {
	cfg     *config.Config
	service *chewcheck.Service
	photos  *photostore.Store
	metrics *telemetry.Provider
	storage *storage.SQLiteStorage
}

// buildApp loads configuration, applies overrides and wires the service.
func buildApp(overrides ...func(*config.Config)) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	stor, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	photos, err := photostore.New(cfg.PhotoDir)
	if err != nil {
		stor.Close()
		return nil, err
	}

	provider := telemetry.NewProvider()
	recorder, err := telemetry.NewRecorder(provider.Meter())
	if err != nil {
		stor.Close()
		return nil, err
	}

	advisor := advisory.NewAdvisor(advisory.NewChatClient(advisory.ChatConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}), logging.New("advisory"))

	var recognizers []classifier.Recognizer
	if cfg.ClassifierURL != "" {
		recognizers = append(recognizers, classifier.NewRemoteRecognizer(cfg.ClassifierURL, cfg.ClassifierTimeout, nil))
	} else {
		slog.Warn("CLASSIFIER_URL not set, photos are classified offline")
	}
	recognizers = append(recognizers, classifier.NewMockRecognizer(classifier.WithMockDelay(cfg.MockDelay)))

	classifierLogger := logging.New("classifier")
	cls := classifier.New(classifier.NewChain(classifierLogger, recognizers...), advisor, photos, classifierLogger)
	service := chewcheck.New(cls, stor, advisor, recorder, logging.New("chewcheck"))

	return &app{
		cfg:     cfg,
		service: service,
		photos:  photos,
		metrics: provider,
		storage: stor,
	}, nil
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		slog.Warn("failed to close storage", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"sttbridge/internal/app"
	"sttbridge/internal/config"
	"sttbridge/internal/engine"
	"sttbridge/internal/engine/google"
	"sttbridge/internal/engine/mock"
	"sttbridge/internal/events"
	"sttbridge/internal/httpapi"
	"sttbridge/internal/observability"
	"sttbridge/internal/stt"
	"sttbridge/internal/tts"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Speech.Provider).Msg("recognition provider init failed")
	}

	cache := stt.NewRecognizerCache(provider)
	cache.Prewarm(cfg.Speech.DefaultLang, "de-DE", "en-US")
	transcriber := stt.NewTranscriber(cache)

	synth := tts.NewAdapter(mock.NewSynthesizer(), buildPlayer(cfg), cfg.Speech.DefaultLang)

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	var metricsServer *observability.Server
	if cfg.Observability.MetricsAddr != "" {
		metricsServer = observability.NewServer(cfg.Observability.MetricsAddr)
		metricsServer.Start()
	}

	api := httpapi.NewServer(cfg, cache, transcriber, synth, publisher)
	addr := fmt.Sprintf("%s:%d", cfg.Server.BindHost, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     api.Router(),
		ReadTimeout: 0, // streaming uploads have no deadline
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("sttbridge listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", addr).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("metrics shutdown failed")
		}
	}
	application.Shutdown()
}

// buildProvider selects the recognition backend from configuration.
func buildProvider(cfg *config.Config) (engine.Provider, error) {
	switch cfg.Speech.Provider {
	case "google":
		return google.NewProvider(context.Background())
	case "mock", "":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Speech.Provider)
	}
}

// buildPlayer returns the local playback device, or a no-op sink when
// local playback is disabled.
func buildPlayer(cfg *config.Config) tts.Player {
	if !cfg.Speech.LocalPlayback {
		return tts.NopPlayer{}
	}
	return tts.NewPortAudioPlayer()
}

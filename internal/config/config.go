// Package config loads the immutable process configuration from the
// environment. It is read once at startup; nothing mutates it after
// construction.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig
	Speech        SpeechConfig
	Observability ObservabilityConfig
	Kafka         KafkaConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	BindHost string
	Port     int
	// AuthToken enables static bearer-token auth on /stt, /tts and the
	// stream path when non-empty.
	AuthToken string
}

// SpeechConfig holds recognition and synthesis policy.
type SpeechConfig struct {
	// Provider selects the recognition engine backend: "mock" or
	// "google".
	Provider string
	// DefaultLang is used when a request declares no language.
	DefaultLang string
	// OfflineOnly forces on-device recognition for every request.
	OfflineOnly bool
	// LocalPlayback enables the host audio output device for
	// speakLocal requests. Disabled on headless hosts.
	LocalPlayback bool
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel string
	Env      string
	// MetricsAddr enables the standalone metrics/health server when
	// non-empty, e.g. ":9090".
	MetricsAddr string
}

// KafkaConfig holds the optional transcript-event publisher settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			BindHost:  envOrDefault("BIND_HOST", "127.0.0.1"),
			Port:      envInt("PORT", 8787),
			AuthToken: os.Getenv("AUTH_TOKEN"),
		},
		Speech: SpeechConfig{
			Provider:      envOrDefault("STT_PROVIDER", "mock"),
			DefaultLang:   envOrDefault("DEFAULT_LANG", "de-DE"),
			OfflineOnly:   envBool("OFFLINE_ONLY", false),
			LocalPlayback: envBool("LOCAL_PLAYBACK", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			Env:         os.Getenv("ENV"),
			MetricsAddr: os.Getenv("METRICS_ADDR"),
		},
		Kafka: KafkaConfig{
			Enabled:      envBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS"),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "stt.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "stt.transcript.final"),
			Principal:    envOrDefault("SERVICE_PRINCIPAL", "svc-sttbridge"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

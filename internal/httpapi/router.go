// Package httpapi is the public HTTP surface of the bridge: REST
// endpoints for batch transcription and synthesis, the WebSocket
// streaming endpoint, and the embedded web console.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"sttbridge/internal/config"
	"sttbridge/internal/events"
	"sttbridge/internal/observability"
	"sttbridge/internal/observability/metrics"
	"sttbridge/internal/stt"
	"sttbridge/internal/tts"
)

// Server carries the collaborators the HTTP handlers dispatch into.
type Server struct {
	cfg         *config.Config
	cache       *stt.RecognizerCache
	transcriber *stt.Transcriber
	tts         *tts.Adapter
	publisher   *events.Publisher
	metrics     *metrics.Metrics
}

// NewServer wires the handler set over its collaborators.
func NewServer(cfg *config.Config, cache *stt.RecognizerCache, transcriber *stt.Transcriber, synth *tts.Adapter, publisher *events.Publisher) *Server {
	return &Server{
		cfg:         cfg,
		cache:       cache,
		transcriber: transcriber,
		tts:         synth,
		publisher:   publisher,
		metrics:     metrics.DefaultMetrics,
	}
}

// Router constructs the HTTP router for the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestInstrumentation(s.metrics))
	r.Use(corsMiddleware)
	r.Use(rejectStrayUpgrades)

	// Embedded web console
	r.Get("/", s.handleAsset("index.html"))
	r.Get("/app.js", s.handleAsset("app.js"))
	r.Get("/styles.css", s.handleAsset("styles.css"))

	// Introspection, no auth required
	r.Get("/healthz", s.handleHealth)
	r.Get("/languages", s.handleLanguages)
	r.Get("/voices", s.handleVoices)

	// Speech endpoints behind the bearer token
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/stt", s.handleBatchSTT)
		r.Post("/tts", s.handleTTS)
	})

	// The stream path authenticates inside the handler so failures can
	// be reported as an in-protocol error frame.
	r.Get("/stt/stream", s.handleStream)

	r.NotFound(s.handleNotFound)

	return r
}

// rejectStrayUpgrades answers a WebSocket upgrade aimed at anything but
// the stream endpoint with an in-protocol invalid_path frame. Routed
// and unrouted paths alike; plain HTTP requests pass through.
func rejectStrayUpgrades(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) && r.URL.Path != "/stt/stream" {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejecting stray upgrade")
				return
			}
			defer conn.Close()
			writeStreamError(conn, nil, "invalid_path")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sttbridge/internal/assets"
	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/models"
	"sttbridge/internal/stt"
)

// maxAudioBody caps batch request payloads at 32 MiB, roughly 17
// minutes of canonical audio.
const maxAudioBody = 32 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := translateError(err)
	writeJSON(w, apiErr.Status, apiErr)
}

// translateError maps engine and codec failures onto the HTTP error
// taxonomy. Anything unrecognized becomes a generic internal error so
// raw engine text never reaches a client.
func translateError(err error) *models.APIError {
	switch {
	case errors.Is(err, engine.ErrUnsupportedLanguage):
		return models.BadRequest("unsupported language")
	case errors.Is(err, engine.ErrOnDeviceUnavailable):
		return models.PreconditionFailed("on-device recognition unavailable")
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return models.BadRequest("unsupported audio format")
	case errors.Is(err, codec.ErrConversionFailed):
		return models.Internal("audio conversion failed")
	case errors.Is(err, codec.ErrNoAudio):
		return models.Internal("no audio produced")
	}
	return models.AsAPIError(err)
}

// handleAsset serves one embedded console file.
func (s *Server) handleAsset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, contentType, err := assets.Get(name)
		if err != nil {
			log.Error().Err(err).Str("asset", name).Msg("embedded asset unavailable")
			writeError(w, models.Internal("asset unavailable"))
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	lang := s.cfg.Speech.DefaultLang
	onDevice := false
	if rec, err := s.cache.Get(lang); err == nil {
		onDevice = rec.SupportsOnDevice()
	}
	writeJSON(w, http.StatusOK, models.Health{
		Status:      "ok",
		Lang:        lang,
		OnDeviceSTT: onDevice,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := s.cache.Languages()
	sorted := make([]string, len(langs))
	copy(sorted, langs)
	sort.Strings(sorted)
	writeJSON(w, http.StatusOK, sorted)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices := s.tts.Voices()
	if voices == nil {
		voices = []models.VoiceDescriptor{}
	}
	writeJSON(w, http.StatusOK, voices)
}

// handleBatchSTT runs single-shot recognition over the request body.
// When the caller declares the payload format, decoding stays in
// memory; otherwise the body is treated as an opaque WAV container.
func (s *Server) handleBatchSTT(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBody))
	if err != nil {
		writeError(w, models.BadRequest("unreadable audio payload"))
		return
	}
	if len(payload) == 0 {
		writeError(w, models.BadRequest("empty audio payload"))
		return
	}

	sampleRate, channels := payloadHints(r)
	dec := stt.SelectDecoder(sampleRate, channels)

	lang := requestLang(r, s.cfg.Speech.DefaultLang)
	offline := queryBool(r, "offline") || s.cfg.Speech.OfflineOnly

	result, err := s.transcriber.Transcribe(r.Context(), payload, dec, lang, offline)
	if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.BatchSTTLatency.WithLabelValues("/stt").Observe(time.Since(started).Seconds())
	writeJSON(w, http.StatusOK, result)
}

// handleTTS synthesizes the request text. With speakLocal set the audio
// goes to the host output device and the client gets an immediate ack;
// otherwise the response body is a WAV stream.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req models.SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.BadRequest("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, models.BadRequest("missing text"))
		return
	}

	if req.SpeakLocal {
		s.tts.SpeakLocal(req)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	wav, err := s.tts.SynthesizeToWAV(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	s.metrics.TTSLatency.Observe(time.Since(started).Seconds())
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// payloadHints extracts the declared sample rate and channel count from
// the hint headers, falling back to audio/l16 content-type parameters.
// Both zero means no declaration was made.
func payloadHints(r *http.Request) (sampleRate, channels int) {
	sampleRate, _ = strconv.Atoi(r.Header.Get("X-Sample-Rate"))
	channels, _ = strconv.Atoi(r.Header.Get("X-Channel-Count"))
	if sampleRate > 0 && channels > 0 {
		return sampleRate, channels
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, "audio/l16") {
		return 0, 0
	}
	sampleRate = codec.CanonicalSampleRate
	channels = codec.CanonicalChannels
	if v, err := strconv.Atoi(params["rate"]); err == nil && v > 0 {
		sampleRate = v
	}
	if v, err := strconv.Atoi(params["channels"]); err == nil && v > 0 {
		channels = v
	}
	return sampleRate, channels
}

// requestLang resolves the language tag from the query, then the header,
// then the configured default.
func requestLang(r *http.Request, def string) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	if lang := r.Header.Get("X-Language"); lang != "" {
		return lang
	}
	return def
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return strings.EqualFold(v, "true") || v == "1"
}

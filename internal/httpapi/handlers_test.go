package httpapi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"sttbridge/internal/codec"
	"sttbridge/internal/config"
	"sttbridge/internal/engine/mock"
	"sttbridge/internal/events"
	"sttbridge/internal/models"
	"sttbridge/internal/stt"
	"sttbridge/internal/tts"
)

// newTestServer builds a full handler stack over the in-process engine.
func newTestServer(t *testing.T, authToken string) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{AuthToken: authToken},
		Speech: config.SpeechConfig{Provider: "mock", DefaultLang: "de-DE"},
		Kafka: config.KafkaConfig{
			TopicPartial: "stt.transcript.partial",
			TopicFinal:   "stt.transcript.final",
		},
	}

	cache := stt.NewRecognizerCache(mock.NewProvider())
	api := NewServer(
		cfg,
		cache,
		stt.NewTranscriber(cache),
		tts.NewAdapter(mock.NewSynthesizer(), tts.NopPlayer{}, cfg.Speech.DefaultLang),
		events.New(nil),
	)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv
}

func loudPCM(frames int) []byte {
	data := make([]byte, frames*2)
	for i := 0; i < len(data); i += 2 {
		data[i+1] = 0x20
	}
	return data
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	health := decodeBody[models.Health](t, resp)
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %s", health.Status)
	}
	if health.Lang != "de-DE" {
		t.Errorf("expected lang de-DE, got %s", health.Lang)
	}
	if !health.OnDeviceSTT {
		t.Error("expected on-device recognition reported for the in-process engine")
	}
}

func TestLanguages_Sorted(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/languages")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	langs := decodeBody[[]string](t, resp)
	if len(langs) == 0 {
		t.Fatal("expected a non-empty language list")
	}
	if !sort.StringsAreSorted(langs) {
		t.Errorf("expected sorted languages, got %v", langs)
	}
}

func TestVoices(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/voices")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	voices := decodeBody[[]models.VoiceDescriptor](t, resp)
	if len(voices) == 0 {
		t.Fatal("expected voices")
	}
	for _, v := range voices {
		if v.Identifier == "" || v.Language == "" {
			t.Errorf("incomplete voice descriptor: %+v", v)
		}
	}
}

func TestWebConsole_Served(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		path        string
		contentType string
	}{
		{"/", "text/html; charset=utf-8"},
		{"/app.js", "application/javascript; charset=utf-8"},
		{"/styles.css", "text/css; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.contentType {
				t.Errorf("expected content type %q, got %q", tt.contentType, got)
			}
		})
	}
}

func TestAuth_Required(t *testing.T) {
	srv := newTestServer(t, "sekrit")

	body := func() *bytes.Reader {
		payload, _ := json.Marshal(models.SpeakRequest{Text: "hallo"})
		return bytes.NewReader(payload)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic sekrit", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer sekrit", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/tts", body())
			req.Header.Set("Content-Type", "application/json")
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestAuth_HealthStaysOpen(t *testing.T) {
	srv := newTestServer(t, "sekrit")

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected health without auth, got %d", resp.StatusCode)
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{"localhost origin echoed", "http://localhost:3000", "http://localhost:3000"},
		{"foreign origin gets fallback", "https://evil.example", "http://localhost"},
		{"no origin gets fallback", "", "http://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/stt", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				t.Errorf("expected 204, got %d", resp.StatusCode)
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin: got %q, want %q", got, tt.wantOrigin)
			}
			if got := resp.Header.Get("Access-Control-Allow-Methods"); got != corsMethods {
				t.Errorf("allow-methods: got %q", got)
			}
			if got := resp.Header.Get("Access-Control-Allow-Headers"); got != corsHeaders {
				t.Errorf("allow-headers: got %q", got)
			}
			if got := resp.Header.Get("Access-Control-Max-Age"); got != corsMaxAge {
				t.Errorf("max-age: got %q", got)
			}
		})
	}
}

func TestBatchSTT_RawPCMWithHints(t *testing.T) {
	srv := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/stt", bytes.NewReader(loudPCM(1600)))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Sample-Rate", "16000")
	req.Header.Set("X-Channel-Count", "1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeBody[models.TranscriptionResult](t, resp)
	if !result.IsFinal {
		t.Error("expected a final result")
	}
	if result.Text == "" {
		t.Error("expected a transcript for loud audio")
	}
}

func TestBatchSTT_L16ContentType(t *testing.T) {
	srv := newTestServer(t, "")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/stt", bytes.NewReader(loudPCM(1600)))
	req.Header.Set("Content-Type", "audio/l16; rate=16000; channels=1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody[models.TranscriptionResult](t, resp)
	if !result.IsFinal {
		t.Error("expected a final result")
	}
}

func TestBatchSTT_WAVFallback(t *testing.T) {
	srv := newTestServer(t, "")

	wav, err := codec.EncodeWAV(codec.AudioBuffer{SampleRate: 16000, Channels: 1, Data: loudPCM(1600)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	resp, err := http.Post(srv.URL+"/stt", "audio/wav", bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody[models.TranscriptionResult](t, resp)
	if result.Text == "" {
		t.Error("expected a transcript")
	}
}

func TestBatchSTT_Errors(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name       string
		path       string
		body       []byte
		wantStatus int
	}{
		{"empty body", "/stt", nil, http.StatusBadRequest},
		{"opaque garbage", "/stt", []byte("not audio at all"), http.StatusBadRequest},
		{"unsupported language", "/stt?lang=xx-XX", loudPCM(16), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+tt.path, bytes.NewReader(tt.body))
			if tt.name == "unsupported language" {
				req.Header.Set("X-Sample-Rate", "16000")
				req.Header.Set("X-Channel-Count", "1")
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			var apiErr models.APIError
			if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
				t.Fatalf("expected JSON error body: %v", err)
			}
			if apiErr.Message == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestTTS_ReturnsWAV(t *testing.T) {
	srv := newTestServer(t, "")

	payload, _ := json.Marshal(models.SpeakRequest{Text: "hallo welt"})
	resp, err := http.Post(srv.URL+"/tts", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/wav" {
		t.Errorf("expected audio/wav, got %q", got)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	wav := buf.Bytes()
	if len(wav) <= 44 {
		t.Fatal("expected audio past the WAV header")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != codec.CanonicalSampleRate {
		t.Errorf("expected canonical sample rate, got %d", got)
	}
}

func TestTTS_SpeakLocalAck(t *testing.T) {
	srv := newTestServer(t, "")

	payload, _ := json.Marshal(models.SpeakRequest{Text: "hallo", SpeakLocal: true})
	resp, err := http.Post(srv.URL+"/tts", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	ack := decodeBody[map[string]bool](t, resp)
	if !ack["ok"] {
		t.Error("expected ok ack for local playback")
	}
}

func TestTTS_BadRequests(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"missing text", `{"voiceId":"x"}`},
		{"blank text", `{"text":"   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/tts", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestNotFound_JSON(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/no/such/path")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

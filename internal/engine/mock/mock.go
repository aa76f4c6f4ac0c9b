// Package mock provides an in-process recognition and synthesis engine
// used when no cloud credentials are configured, and by tests. It
// simulates realistic engine behavior: progressive partial transcripts,
// exactly one terminal event per task, and silence detection that
// yields an empty transcript.
package mock

import (
	"context"
	"sort"
	"strings"
	"sync"

	"sttbridge/internal/engine"
	"sttbridge/internal/models"
)

// ScriptedUtterance is one simulated recognition outcome with
// progressive partials.
type ScriptedUtterance struct {
	Partials    []string
	Final       string
	Confidences []float64
}

// DefaultScript provides sample utterances for simulation, cycled per
// task.
var DefaultScript = []ScriptedUtterance{
	{
		Partials:    []string{"schalte das", "schalte das Licht"},
		Final:       "schalte das Licht im Wohnzimmer ein",
		Confidences: []float64{0.94, 0.91, 0.96},
	},
	{
		Partials:    []string{"wie wird", "wie wird das Wetter"},
		Final:       "wie wird das Wetter morgen",
		Confidences: []float64{0.97, 0.93},
	},
	{
		Partials:    []string{"stelle einen", "stelle einen Timer auf"},
		Final:       "stelle einen Timer auf zehn Minuten",
		Confidences: []float64{0.89, 0.95, 0.92},
	},
}

var supportedLanguages = []string{
	"de-AT", "de-CH", "de-DE", "en-AU", "en-GB", "en-IN", "en-US",
	"es-ES", "fr-CA", "fr-FR", "it-IT", "nl-NL", "pt-BR",
}

// silenceThreshold is the peak int16 amplitude below which appended
// audio counts as silence.
const silenceThreshold = 64

// Provider implements engine.Provider with scripted responses.
type Provider struct {
	mu     sync.Mutex
	script []ScriptedUtterance
	next   int
}

// NewProvider creates a mock provider using DefaultScript.
func NewProvider() *Provider {
	return &Provider{script: DefaultScript}
}

// NewProviderWithScript creates a mock provider with a custom script.
func NewProviderWithScript(script []ScriptedUtterance) *Provider {
	return &Provider{script: script}
}

func (p *Provider) Recognizer(lang string) (engine.Recognizer, error) {
	for _, l := range supportedLanguages {
		if l == lang {
			return &recognizer{provider: p, lang: lang}, nil
		}
	}
	return nil, engine.ErrUnsupportedLanguage
}

func (p *Provider) Languages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	sort.Strings(out)
	return out
}

func (p *Provider) nextUtterance() ScriptedUtterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.script[p.next%len(p.script)]
	p.next++
	return u
}

type recognizer struct {
	provider *Provider
	lang     string
}

func (r *recognizer) Language() string       { return r.lang }
func (r *recognizer) SupportsOnDevice() bool { return true }

func (r *recognizer) NewTask(ctx context.Context, cfg engine.TaskConfig) (engine.RecognitionTask, error) {
	return newTask(r.provider.nextUtterance(), cfg), nil
}

type task struct {
	mu           sync.Mutex
	utterance    ScriptedUtterance
	cfg          engine.TaskConfig
	events       chan engine.Event
	partialIndex int
	peak         int16
	done         bool
}

func newTask(u ScriptedUtterance, cfg engine.TaskConfig) *task {
	return &task{
		utterance: u,
		cfg:       cfg,
		events:    make(chan engine.Event, 16),
	}
}

func (t *task) Append(pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}

	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		if s < 0 {
			s = -s
		}
		if s > t.peak {
			t.peak = s
		}
	}

	// One partial per audio chunk while the script has them, mirroring
	// interim results arriving as speech progresses.
	if t.cfg.Partials && t.peak > silenceThreshold && t.partialIndex < len(t.utterance.Partials) {
		t.events <- engine.Event{Kind: engine.EventPartial, Text: t.utterance.Partials[t.partialIndex]}
		t.partialIndex++
	}
	return nil
}

func (t *task) EndAudio() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true

	if t.peak <= silenceThreshold {
		// Silence in, empty transcript out, no confidence segments.
		t.events <- engine.Event{Kind: engine.EventFinal}
	} else {
		t.events <- engine.Event{
			Kind:        engine.EventFinal,
			Text:        t.utterance.Final,
			Confidences: t.utterance.Confidences,
			Words:       scriptWords(t.utterance.Final),
		}
	}
	close(t.events)
}

func (t *task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	close(t.events)
}

func (t *task) Events() <-chan engine.Event { return t.events }

// scriptWords fabricates evenly spaced word timings for a transcript.
func scriptWords(text string) []models.Word {
	if text == "" {
		return nil
	}
	tokens := strings.Fields(text)
	words := make([]models.Word, len(tokens))
	for i, tok := range tokens {
		start := float64(i) * 0.4
		words[i] = models.Word{Token: tok, Start: start, End: start + 0.4}
	}
	return words
}

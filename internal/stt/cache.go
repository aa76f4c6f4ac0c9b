// Package stt owns the speech-to-text side of the bridge: the shared
// recognizer cache, the streaming recognition session with transparent
// task rotation, and the batch transcriber.
package stt

import (
	"sync"

	"github.com/rs/zerolog/log"

	"sttbridge/internal/engine"
)

// RecognizerCache maps language tags to recognizer handles. Handles are
// constructed lazily, live for the process lifetime and are never
// evicted; language-tag cardinality is small and bounded. This is the
// only cross-request shared mutable state in the service.
type RecognizerCache struct {
	provider engine.Provider

	mu          sync.Mutex
	recognizers map[string]engine.Recognizer
}

// NewRecognizerCache creates an empty cache over the given provider.
func NewRecognizerCache(provider engine.Provider) *RecognizerCache {
	return &RecognizerCache{
		provider:    provider,
		recognizers: make(map[string]engine.Recognizer),
	}
}

// Get returns the cached recognizer for lang, constructing it on first
// use. At most one handle per language tag ever exists.
func (c *RecognizerCache) Get(lang string) (engine.Recognizer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.recognizers[lang]; ok {
		return rec, nil
	}
	rec, err := c.provider.Recognizer(lang)
	if err != nil {
		return nil, err
	}
	c.recognizers[lang] = rec
	return rec, nil
}

// Prewarm constructs recognizers for the given languages so the first
// request does not pay the construction cost. Unsupported tags are
// skipped.
func (c *RecognizerCache) Prewarm(langs ...string) {
	for _, lang := range langs {
		if _, err := c.Get(lang); err != nil {
			log.Debug().Str("lang", lang).Err(err).Msg("recognizer prewarm skipped")
		}
	}
}

// Languages lists the provider's supported language tags, sorted.
func (c *RecognizerCache) Languages() []string {
	return c.provider.Languages()
}

// Package engine defines the capability contracts of the external
// recognition and synthesis engines. Providers (Google Cloud Speech,
// the in-process mock) implement these interfaces; everything above
// this package treats the engines as opaque collaborators.
package engine

import (
	"context"
	"errors"

	"sttbridge/internal/codec"
	"sttbridge/internal/models"
)

var (
	// ErrUnsupportedLanguage indicates no recognizer resolves for a
	// language tag.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrOnDeviceUnavailable indicates on-device recognition was
	// required but the resolved recognizer cannot run fully on-device.
	ErrOnDeviceUnavailable = errors.New("on-device recognition unavailable")
)

// EventKind discriminates recognition events.
type EventKind int

const (
	// EventPartial is a non-terminal, revisable transcript update.
	EventPartial EventKind = iota
	// EventFinal is the terminal transcript of a task.
	EventFinal
	// EventError terminates a task with a failure.
	EventError
)

// Event is one recognition callback, delivered over the task's event
// channel in engine emission order.
type Event struct {
	Kind EventKind
	Text string
	// Confidences holds per-segment confidence scores, final events only.
	Confidences []float64
	Words       []models.Word
	Err         error
}

// TaskConfig configures one recognition task.
type TaskConfig struct {
	// OnDevice requires recognition to run without network dependency.
	OnDevice bool
	// Partials enables interim results.
	Partials bool
}

// RecognitionTask is one bounded-lifetime recognition stream. Append
// and EndAudio are called by a single producer; Events delivers zero or
// more partial events followed by exactly one final or error event,
// after which the channel is closed.
type RecognitionTask interface {
	// Append forwards canonical PCM (16 kHz mono int16) to the engine.
	Append(pcm []byte) error
	// EndAudio signals end of input; the engine finishes with a
	// terminal event.
	EndAudio()
	// Cancel abandons the task. Idempotent.
	Cancel()
	// Events is the task's outbound event channel.
	Events() <-chan Event
}

// Recognizer produces recognition tasks for one language tag.
type Recognizer interface {
	Language() string
	// SupportsOnDevice reports whether recognition can run fully
	// on-device for this language.
	SupportsOnDevice() bool
	NewTask(ctx context.Context, cfg TaskConfig) (RecognitionTask, error)
}

// Provider resolves language tags to recognizers.
type Provider interface {
	// Recognizer returns a recognizer for the tag or
	// ErrUnsupportedLanguage.
	Recognizer(lang string) (Recognizer, error)
	// Languages lists supported language tags, sorted.
	Languages() []string
}

// Utterance is a fully resolved synthesis request: voice selection and
// rate/pitch mapping have already been applied by the caller.
type Utterance struct {
	Text    string
	VoiceID string
	// Rate is the absolute speaking rate (engine units).
	Rate float64
	// Pitch is a multiplier in [0, 2]; 1 is the engine default.
	Pitch float64
}

// SynthesisChunk is one engine output buffer. A chunk with zero frames
// terminates the stream; a non-nil Err terminates it with failure.
type SynthesisChunk struct {
	Buffer codec.AudioBuffer
	Err    error
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Voices returns the engine-reported synthesis voices.
	Voices() []models.VoiceDescriptor
	// DefaultRate is the engine's default speaking rate.
	DefaultRate() float64
	// Synthesize emits a sequence of variable-length audio buffers
	// terminated by a zero-length chunk. The channel is closed after
	// the terminating chunk.
	Synthesize(ctx context.Context, utt Utterance) <-chan SynthesisChunk
}

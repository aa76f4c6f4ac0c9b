package stt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/models"
)

// PayloadDecoder turns a batch request payload into an audio buffer at
// its source format. Two implementations exist: an in-memory fast path
// used when the caller declared sample rate and channel count, and a
// scratch-file fallback for opaque WAV bodies. Selecting between them
// keeps the router free of format-specific branching.
type PayloadDecoder interface {
	Decode(payload []byte) (codec.AudioBuffer, error)
}

// SelectDecoder picks the fast path when both hints are present,
// otherwise the scratch-file fallback.
func SelectDecoder(sampleRate, channels int) PayloadDecoder {
	if sampleRate > 0 && channels > 0 {
		return hintDecoder{sampleRate: sampleRate, channels: channels}
	}
	return fileDecoder{}
}

// hintDecoder decodes directly from the in-memory payload, no file I/O.
// A payload that still carries a RIFF container is unwrapped in memory;
// anything else is raw PCM at the declared format.
type hintDecoder struct {
	sampleRate int
	channels   int
}

func (d hintDecoder) Decode(payload []byte) (codec.AudioBuffer, error) {
	if len(payload) >= 4 && string(payload[:4]) == "RIFF" {
		return codec.DecodeWAV(payload)
	}
	return codec.DecodeRawPCM(payload, d.sampleRate, d.channels)
}

// fileDecoder writes the payload to a scratch file and parses it as a
// WAV container. The scratch file is removed on every exit path.
type fileDecoder struct{}

func (fileDecoder) Decode(payload []byte) (codec.AudioBuffer, error) {
	name := filepath.Join(os.TempDir(), "stt-"+uuid.NewString()+".wav")
	if err := os.WriteFile(name, payload, 0o600); err != nil {
		return codec.AudioBuffer{}, fmt.Errorf("write scratch file: %w", err)
	}
	defer func() {
		if err := os.Remove(name); err != nil {
			log.Warn().Str("file", name).Err(err).Msg("scratch file cleanup failed")
		}
	}()

	data, err := os.ReadFile(name)
	if err != nil {
		return codec.AudioBuffer{}, fmt.Errorf("read scratch file: %w", err)
	}
	return codec.DecodeWAV(data)
}

// Transcriber runs single-shot batch recognition. Blocking engine calls
// are bounded by a weighted semaphore sized to the host core count so
// batch load never starves streaming frame delivery.
type Transcriber struct {
	cache *RecognizerCache
	sem   *semaphore.Weighted
}

// NewTranscriber creates a batch transcriber over the recognizer cache.
func NewTranscriber(cache *RecognizerCache) *Transcriber {
	return &Transcriber{
		cache: cache,
		sem:   semaphore.NewWeighted(int64(runtime.NumCPU())),
	}
}

// Transcribe decodes the payload, normalizes it to canonical form and
// runs one recognition task to completion.
func (t *Transcriber) Transcribe(ctx context.Context, payload []byte, dec PayloadDecoder, lang string, onDevice bool) (*models.TranscriptionResult, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	buf, err := dec.Decode(payload)
	if err != nil {
		return nil, err
	}
	canonical, err := codec.ToCanonical(buf)
	if err != nil {
		return nil, err
	}

	rec, err := t.cache.Get(lang)
	if err != nil {
		return nil, err
	}
	if onDevice && !rec.SupportsOnDevice() {
		return nil, engine.ErrOnDeviceUnavailable
	}

	task, err := rec.NewTask(ctx, engine.TaskConfig{OnDevice: onDevice})
	if err != nil {
		return nil, err
	}
	defer task.Cancel()

	if err := task.Append(canonical.Data); err != nil {
		return nil, fmt.Errorf("append audio: %w", err)
	}
	task.EndAudio()

	for {
		select {
		case ev, ok := <-task.Events():
			if !ok {
				return nil, fmt.Errorf("recognition ended without a result")
			}
			switch ev.Kind {
			case engine.EventFinal:
				return &models.TranscriptionResult{
					Text:       ev.Text,
					IsFinal:    true,
					Confidence: MeanConfidence(ev.Confidences),
					Words:      ev.Words,
				}, nil
			case engine.EventError:
				return nil, ev.Err
			}
			// Partials are not requested in batch mode; ignore any.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

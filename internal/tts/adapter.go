// Package tts wraps the external synthesis engine: voice selection,
// rate/pitch mapping, output stitching and normalization to canonical
// WAV bytes, plus fire-and-forget local playback.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/models"
)

const (
	minRate = 0.5
	maxRate = 2.0
	// preferredVoiceName is tried first when no voice is requested.
	preferredVoiceName = "Anna"
	// speakTimeout bounds a fire-and-forget local playback.
	speakTimeout = 2 * time.Minute
)

// Adapter drives one synthesis engine.
type Adapter struct {
	synth       engine.Synthesizer
	player      Player
	defaultLang string
	logger      zerolog.Logger
}

// NewAdapter creates a synthesis adapter. player may be a NopPlayer on
// headless hosts.
func NewAdapter(synth engine.Synthesizer, player Player, defaultLang string) *Adapter {
	return &Adapter{
		synth:       synth,
		player:      player,
		defaultLang: defaultLang,
		logger:      log.With().Str("component", "tts").Logger(),
	}
}

// Voices returns the engine-reported voice descriptors. Refreshed on
// demand, never cached.
func (a *Adapter) Voices() []models.VoiceDescriptor {
	return a.synth.Voices()
}

// SynthesizeToBuffer synthesizes text and returns canonical audio.
func (a *Adapter) SynthesizeToBuffer(ctx context.Context, req models.SpeakRequest) (codec.AudioBuffer, error) {
	utt := a.resolveUtterance(req)

	var stitched codec.AudioBuffer
	got := false
	for chunk := range a.synth.Synthesize(ctx, utt) {
		if chunk.Err != nil {
			return codec.AudioBuffer{}, fmt.Errorf("synthesis: %w", chunk.Err)
		}
		if chunk.Buffer.Frames() == 0 {
			// Zero-length buffer terminates the stream.
			break
		}
		if !got {
			stitched = codec.AudioBuffer{
				SampleRate: chunk.Buffer.SampleRate,
				Channels:   chunk.Buffer.Channels,
			}
			got = true
		} else if chunk.Buffer.SampleRate != stitched.SampleRate || chunk.Buffer.Channels != stitched.Channels {
			return codec.AudioBuffer{}, fmt.Errorf("%w: format changed mid-stream", codec.ErrConversionFailed)
		}
		stitched.Data = append(stitched.Data, chunk.Buffer.Data...)
	}
	if !got {
		return codec.AudioBuffer{}, fmt.Errorf("%w", codec.ErrNoAudio)
	}

	return codec.ToCanonical(stitched)
}

// SynthesizeToWAV synthesizes text and encodes the canonical result as
// a WAV byte stream.
func (a *Adapter) SynthesizeToWAV(ctx context.Context, req models.SpeakRequest) ([]byte, error) {
	buf, err := a.SynthesizeToBuffer(ctx, req)
	if err != nil {
		return nil, err
	}
	return codec.EncodeWAV(buf)
}

// SpeakLocal plays the synthesized audio on the local output device.
// Fire and forget: it returns immediately, playback errors are logged.
func (a *Adapter) SpeakLocal(req models.SpeakRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
		defer cancel()

		buf, err := a.SynthesizeToBuffer(ctx, req)
		if err != nil {
			a.logger.Error().Err(err).Msg("local speak synthesis failed")
			return
		}
		if err := a.player.Play(buf); err != nil {
			a.logger.Error().Err(err).Msg("local playback failed")
		}
	}()
}

// resolveUtterance applies voice selection and rate/pitch mapping.
func (a *Adapter) resolveUtterance(req models.SpeakRequest) engine.Utterance {
	utt := engine.Utterance{
		Text:    req.Text,
		VoiceID: a.selectVoice(req.VoiceID),
		Rate:    a.synth.DefaultRate(),
		Pitch:   1.0,
	}
	if req.Rate != nil {
		utt.Rate = clamp(*req.Rate, minRate, maxRate) * a.synth.DefaultRate()
	}
	if req.Pitch != nil {
		utt.Pitch = clamp(1.0+*req.Pitch, 0.0, 2.0)
	}
	return utt
}

// selectVoice resolves the voice identifier. An explicit, known id
// wins; otherwise the preferred named voice for the default language at
// the highest quality tier, else the highest-quality default-language
// voice, else the engine default (empty id).
func (a *Adapter) selectVoice(voiceID string) string {
	voices := a.synth.Voices()

	if voiceID != "" {
		for _, v := range voices {
			if v.Identifier == voiceID {
				return voiceID
			}
		}
	}

	var named, best *models.VoiceDescriptor
	for i := range voices {
		v := &voices[i]
		if v.Language != a.defaultLang {
			continue
		}
		if v.Name == preferredVoiceName && (named == nil || v.Quality > named.Quality) {
			named = v
		}
		if best == nil || v.Quality > best.Quality {
			best = v
		}
	}
	if named != nil {
		return named.Identifier
	}
	if best != nil {
		return best.Identifier
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

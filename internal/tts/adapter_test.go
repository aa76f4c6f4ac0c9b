package tts

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/engine/mock"
	"sttbridge/internal/models"
)

// fakeSynth returns scripted chunks and records the resolved utterance.
type fakeSynth struct {
	voices      []models.VoiceDescriptor
	defaultRate float64
	chunks      []engine.SynthesisChunk

	mu      sync.Mutex
	lastUtt engine.Utterance
}

func (f *fakeSynth) Voices() []models.VoiceDescriptor { return f.voices }
func (f *fakeSynth) DefaultRate() float64             { return f.defaultRate }

func (f *fakeSynth) Synthesize(ctx context.Context, utt engine.Utterance) <-chan engine.SynthesisChunk {
	f.mu.Lock()
	f.lastUtt = utt
	f.mu.Unlock()

	out := make(chan engine.SynthesisChunk, len(f.chunks)+1)
	for _, c := range f.chunks {
		out <- c
	}
	out <- engine.SynthesisChunk{Buffer: codec.AudioBuffer{SampleRate: 16000, Channels: 1}}
	close(out)
	return out
}

func (f *fakeSynth) resolved() engine.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUtt
}

func chunk(rate, channels, frames int) engine.SynthesisChunk {
	return engine.SynthesisChunk{Buffer: codec.AudioBuffer{
		SampleRate: rate,
		Channels:   channels,
		Data:       make([]byte, frames*channels*codec.BytesPerSample),
	}}
}

func TestAdapter_RateMapping(t *testing.T) {
	tests := []struct {
		name     string
		rate     *float64
		wantRate float64
	}{
		{"nil keeps engine default", nil, 0.8},
		{"in range scales default", ptr(1.5), 1.5 * 0.8},
		{"above ceiling clamps to 2x", ptr(3.0), 2.0 * 0.8},
		{"below floor clamps to 0.5x", ptr(0.1), 0.5 * 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{defaultRate: 0.8, chunks: []engine.SynthesisChunk{chunk(16000, 1, 64)}}
			a := NewAdapter(synth, NopPlayer{}, "de-DE")

			_, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo", Rate: tt.rate})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := synth.resolved().Rate
			if diff := got - tt.wantRate; diff < -1e-9 || diff > 1e-9 {
				t.Errorf("rate: got %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestAdapter_PitchMapping(t *testing.T) {
	tests := []struct {
		name      string
		pitch     *float64
		wantPitch float64
	}{
		{"nil is neutral", nil, 1.0},
		{"positive shifts up", ptr(0.5), 1.5},
		{"negative shifts down", ptr(-0.5), 0.5},
		{"far below floor clamps to 0", ptr(-5.0), 0.0},
		{"far above ceiling clamps to 2", ptr(5.0), 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{defaultRate: 1.0, chunks: []engine.SynthesisChunk{chunk(16000, 1, 64)}}
			a := NewAdapter(synth, NopPlayer{}, "de-DE")

			_, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo", Pitch: tt.pitch})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := synth.resolved().Pitch
			if diff := got - tt.wantPitch; diff < -1e-9 || diff > 1e-9 {
				t.Errorf("pitch: got %v, want %v", got, tt.wantPitch)
			}
		})
	}
}

func TestAdapter_VoiceSelection(t *testing.T) {
	voices := []models.VoiceDescriptor{
		{Name: "Anna", Identifier: "v.anna.premium", Language: "de-DE", Quality: 2},
		{Name: "Anna", Identifier: "v.anna", Language: "de-DE", Quality: 1},
		{Name: "Markus", Identifier: "v.markus", Language: "de-DE", Quality: 1},
		{Name: "Samantha", Identifier: "v.samantha", Language: "en-US", Quality: 2},
	}

	tests := []struct {
		name        string
		defaultLang string
		voiceID     string
		want        string
	}{
		{"explicit known id wins", "de-DE", "v.markus", "v.markus"},
		{"unknown id falls back to preferred", "de-DE", "v.ghost", "v.anna.premium"},
		{"no request picks preferred at best quality", "de-DE", "", "v.anna.premium"},
		{"no preferred name picks best quality", "en-US", "", "v.samantha"},
		{"no voices for language yields engine default", "fr-FR", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynth{defaultRate: 1.0, voices: voices, chunks: []engine.SynthesisChunk{chunk(16000, 1, 64)}}
			a := NewAdapter(synth, NopPlayer{}, tt.defaultLang)

			_, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo", VoiceID: tt.voiceID})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := synth.resolved().VoiceID; got != tt.want {
				t.Errorf("voice: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapter_StitchesChunks(t *testing.T) {
	synth := &fakeSynth{
		defaultRate: 1.0,
		chunks: []engine.SynthesisChunk{
			chunk(16000, 1, 100),
			chunk(16000, 1, 50),
			chunk(16000, 1, 25),
		},
	}
	a := NewAdapter(synth, NopPlayer{}, "de-DE")

	buf, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Frames() != 175 {
		t.Errorf("expected 175 stitched frames, got %d", buf.Frames())
	}
	if !buf.IsCanonical() {
		t.Errorf("expected canonical output, got %d/%d", buf.SampleRate, buf.Channels)
	}
}

func TestAdapter_FormatChangeMidStream(t *testing.T) {
	synth := &fakeSynth{
		defaultRate: 1.0,
		chunks: []engine.SynthesisChunk{
			chunk(16000, 1, 100),
			chunk(22050, 1, 100),
		},
	}
	a := NewAdapter(synth, NopPlayer{}, "de-DE")

	if _, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo"}); !errors.Is(err, codec.ErrConversionFailed) {
		t.Errorf("expected ErrConversionFailed, got %v", err)
	}
}

func TestAdapter_NoChunksIsNoAudio(t *testing.T) {
	synth := &fakeSynth{defaultRate: 1.0}
	a := NewAdapter(synth, NopPlayer{}, "de-DE")

	if _, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: "hallo"}); !errors.Is(err, codec.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestAdapter_MockEngineEndToEnd(t *testing.T) {
	a := NewAdapter(mock.NewSynthesizer(), NopPlayer{}, "de-DE")

	wav, err := a.SynthesizeToWAV(context.Background(), models.SpeakRequest{Text: "hallo welt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wav) <= 44 {
		t.Fatal("expected audio past the WAV header")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != codec.CanonicalSampleRate {
		t.Errorf("expected canonical rate in header, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != codec.CanonicalChannels {
		t.Errorf("expected mono header, got %d channels", got)
	}
}

func TestAdapter_EmptyTextIsNoAudio(t *testing.T) {
	a := NewAdapter(mock.NewSynthesizer(), NopPlayer{}, "de-DE")

	if _, err := a.SynthesizeToBuffer(context.Background(), models.SpeakRequest{Text: ""}); !errors.Is(err, codec.ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

// recordingPlayer signals when playback was invoked.
type recordingPlayer struct {
	played chan codec.AudioBuffer
}

func (p *recordingPlayer) Play(buf codec.AudioBuffer) error {
	p.played <- buf
	return nil
}

func TestAdapter_SpeakLocalFireAndForget(t *testing.T) {
	player := &recordingPlayer{played: make(chan codec.AudioBuffer, 1)}
	a := NewAdapter(mock.NewSynthesizer(), player, "de-DE")

	start := time.Now()
	a.SpeakLocal(models.SpeakRequest{Text: "hallo", SpeakLocal: true})
	if time.Since(start) > 100*time.Millisecond {
		t.Error("SpeakLocal must return without waiting for synthesis")
	}

	select {
	case buf := <-player.played:
		if !buf.IsCanonical() {
			t.Errorf("expected canonical playback buffer, got %d/%d", buf.SampleRate, buf.Channels)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playback never happened")
	}
}

func ptr(f float64) *float64 { return &f }

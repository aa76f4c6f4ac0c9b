package mock

import (
	"context"
	"math"

	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/models"
)

// Synthesizer voices. "Anna" at premium quality is the preferred
// default-language voice.
var defaultVoices = []models.VoiceDescriptor{
	{Name: "Anna", Identifier: "mock.voice.anna.premium", Language: "de-DE", Quality: 2},
	{Name: "Anna", Identifier: "mock.voice.anna", Language: "de-DE", Quality: 1},
	{Name: "Markus", Identifier: "mock.voice.markus", Language: "de-DE", Quality: 1},
	{Name: "Samantha", Identifier: "mock.voice.samantha", Language: "en-US", Quality: 1},
	{Name: "Daniel", Identifier: "mock.voice.daniel", Language: "en-GB", Quality: 1},
}

const (
	// synthRate is the mock's native output rate, deliberately not the
	// canonical rate so the adapter's resample path is exercised.
	synthRate = 22050
	// msPerChar approximates speech tempo at the default rate.
	msPerChar = 60
	toneHz    = 440.0
	chunkSize = 4096
)

// Synthesizer implements engine.Synthesizer with generated tones whose
// duration tracks the text length and rate.
type Synthesizer struct{}

// NewSynthesizer creates a mock synthesis engine.
func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

func (s *Synthesizer) Voices() []models.VoiceDescriptor {
	out := make([]models.VoiceDescriptor, len(defaultVoices))
	copy(out, defaultVoices)
	return out
}

func (s *Synthesizer) DefaultRate() float64 { return 1.0 }

// Synthesize emits tone buffers in chunks terminated by a zero-length
// chunk. Empty text yields the terminator immediately, so callers see
// "no audio produced".
func (s *Synthesizer) Synthesize(ctx context.Context, utt engine.Utterance) <-chan engine.SynthesisChunk {
	out := make(chan engine.SynthesisChunk, 4)

	go func() {
		defer close(out)

		rate := utt.Rate
		if rate <= 0 {
			rate = s.DefaultRate()
		}
		pitch := utt.Pitch
		if pitch <= 0 {
			pitch = 1.0
		}

		frames := int(float64(len(utt.Text)*msPerChar) / rate / 1000.0 * synthRate)
		freq := toneHz * pitch

		for off := 0; off < frames; off += chunkSize {
			n := chunkSize
			if off+n > frames {
				n = frames - off
			}
			data := make([]byte, n*codec.BytesPerSample)
			for i := 0; i < n; i++ {
				v := int16(math.Sin(2*math.Pi*freq*float64(off+i)/synthRate) * 12000)
				data[i*2] = byte(v)
				data[i*2+1] = byte(v >> 8)
			}
			select {
			case out <- engine.SynthesisChunk{Buffer: codec.AudioBuffer{SampleRate: synthRate, Channels: 1, Data: data}}:
			case <-ctx.Done():
				out <- engine.SynthesisChunk{Err: ctx.Err()}
				return
			}
		}

		// Zero-length terminator.
		out <- engine.SynthesisChunk{Buffer: codec.AudioBuffer{SampleRate: synthRate, Channels: 1}}
	}()

	return out
}

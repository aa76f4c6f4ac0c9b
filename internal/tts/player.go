package tts

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"sttbridge/internal/codec"
)

// framesPerBuffer is the portaudio write granularity.
const framesPerBuffer = 1024

// Player plays an audio buffer on the local output device.
type Player interface {
	Play(buf codec.AudioBuffer) error
}

// PortAudioPlayer plays buffers through the host's default output
// device. Playbacks are serialized; Initialize is performed once on
// first use.
type PortAudioPlayer struct {
	mu          sync.Mutex
	initialized bool
}

// NewPortAudioPlayer creates an uninitialized player.
func NewPortAudioPlayer() *PortAudioPlayer {
	return &PortAudioPlayer{}
}

func (p *PortAudioPlayer) Play(buf codec.AudioBuffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
		p.initialized = true
	}

	out := make([]int16, framesPerBuffer*buf.Channels)
	stream, err := portaudio.OpenDefaultStream(
		0,             // input channels
		buf.Channels,  // output channels
		float64(buf.SampleRate),
		framesPerBuffer,
		out,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	samples := make([]int16, len(buf.Data)/2)
	for i := range samples {
		samples[i] = int16(buf.Data[i*2]) | int16(buf.Data[i*2+1])<<8
	}

	for off := 0; off < len(samples); off += len(out) {
		n := copy(out, samples[off:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

// NopPlayer discards audio; used on headless hosts and in tests.
type NopPlayer struct{}

func (NopPlayer) Play(buf codec.AudioBuffer) error {
	log.Debug().
		Dur("duration", buf.Duration()).
		Msg("playback skipped, no output device configured")
	return nil
}

// Package codec converts between raw PCM byte buffers, WAV containers
// and the canonical audio form used for all recognition and synthesis
// exchange: 16 kHz, mono, 16-bit signed little-endian interleaved PCM.
package codec

import (
	"errors"
	"fmt"
	"time"
)

// Canonical audio form.
const (
	CanonicalSampleRate = 16000
	CanonicalChannels   = 1
	BytesPerSample      = 2
)

var (
	// ErrUnsupportedFormat indicates a container or sample format the
	// codec cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrConversionFailed indicates a malformed payload or a failed
	// sample-rate/channel conversion.
	ErrConversionFailed = errors.New("audio conversion failed")
	// ErrNoAudio indicates an operation that produced zero audio data.
	ErrNoAudio = errors.New("no audio produced")
)

// AudioBuffer is interleaved 16-bit signed little-endian PCM together
// with its format. The zero value is an empty buffer.
type AudioBuffer struct {
	SampleRate int
	Channels   int
	Data       []byte
}

// Frames returns the number of sample frames in the buffer.
func (b AudioBuffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / (b.Channels * BytesPerSample)
}

// Duration returns the playback duration of the buffer.
func (b AudioBuffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// IsCanonical reports whether the buffer is already in canonical form.
func (b AudioBuffer) IsCanonical() bool {
	return b.SampleRate == CanonicalSampleRate && b.Channels == CanonicalChannels
}

// DecodeRawPCM wraps caller-declared raw PCM16 bytes in an AudioBuffer.
// The byte length must be an integer multiple of channels * 2.
func DecodeRawPCM(data []byte, sampleRate, channels int) (AudioBuffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return AudioBuffer{}, fmt.Errorf("%w: rate=%d channels=%d", ErrConversionFailed, sampleRate, channels)
	}
	if len(data)%(channels*BytesPerSample) != 0 {
		return AudioBuffer{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames",
			ErrConversionFailed, len(data), channels)
	}
	return AudioBuffer{SampleRate: sampleRate, Channels: channels, Data: data}, nil
}

// samplesToFloat64 converts interleaved int16 little-endian bytes to
// normalized float64 samples in [-1, 1).
func samplesToFloat64(data []byte) []float64 {
	out := make([]float64, len(data)/2)
	for i := range out {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float64(s) / 32768.0
	}
	return out
}

// float64ToSamples converts normalized float64 samples back to
// interleaved int16 little-endian bytes, clipping out-of-range values.
func float64ToSamples(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		s := int16(f * 32767.0)
		if f > 1.0 {
			s = 32767
		} else if f < -1.0 {
			s = -32768
		}
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

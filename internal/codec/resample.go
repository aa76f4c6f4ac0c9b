package codec

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a buffer to the target sample rate and channel
// count. It is a pure function: the input buffer is never mutated and
// no state is shared between calls, so independent sessions may call it
// concurrently. When the buffer already matches the target it is
// returned unchanged.
func Resample(buf AudioBuffer, targetRate, targetChannels int) (AudioBuffer, error) {
	if targetRate <= 0 || targetChannels < 1 {
		return AudioBuffer{}, fmt.Errorf("%w: target rate=%d channels=%d", ErrConversionFailed, targetRate, targetChannels)
	}
	if buf.SampleRate == targetRate && buf.Channels == targetChannels {
		return buf, nil
	}

	data := buf.Data
	channels := buf.Channels

	switch {
	case channels == targetChannels:
	case targetChannels == 1:
		data = downmixMono(data, channels)
		channels = 1
	case channels == 1 && targetChannels == 2:
		data = monoToStereo(data)
		channels = 2
	default:
		return AudioBuffer{}, fmt.Errorf("%w: cannot convert %d channels to %d", ErrConversionFailed, channels, targetChannels)
	}

	if buf.SampleRate == targetRate {
		return AudioBuffer{SampleRate: targetRate, Channels: channels, Data: data}, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(buf.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	out, err := rs.Process(samplesToFloat64(data))
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	// Keep whole frames only.
	out = out[:len(out)/channels*channels]

	return AudioBuffer{
		SampleRate: targetRate,
		Channels:   channels,
		Data:       float64ToSamples(out),
	}, nil
}

// ToCanonical normalizes a buffer to the canonical 16 kHz mono form.
func ToCanonical(buf AudioBuffer) (AudioBuffer, error) {
	return Resample(buf, CanonicalSampleRate, CanonicalChannels)
}

// downmixMono averages all channels of each frame into one sample.
func downmixMono(data []byte, channels int) []byte {
	frameBytes := channels * BytesPerSample
	frames := len(data) / frameBytes
	out := make([]byte, frames*BytesPerSample)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			j := i*frameBytes + c*BytesPerSample
			sum += int32(int16(data[j]) | int16(data[j+1])<<8)
		}
		m := int16(sum / int32(channels))
		out[i*2] = byte(m)
		out[i*2+1] = byte(m >> 8)
	}
	return out
}

// monoToStereo duplicates each mono sample into both channels.
func monoToStereo(data []byte) []byte {
	frames := len(data) / BytesPerSample
	out := make([]byte, frames*2*BytesPerSample)
	for i := 0; i < frames; i++ {
		s0, s1 := data[i*2], data[i*2+1]
		j := i * 4
		out[j], out[j+1] = s0, s1
		out[j+2], out[j+3] = s0, s1
	}
	return out
}

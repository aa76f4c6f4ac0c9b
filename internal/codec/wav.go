package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	riffHeaderSize = 12
	wavFormatPCM   = 1
)

// DecodeWAV parses a little-endian RIFF/WAVE container holding 16-bit
// PCM and returns the sample data at its source format. Chunks other
// than "fmt " and "data" (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (AudioBuffer, error) {
	if len(data) < riffHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return AudioBuffer{}, fmt.Errorf("%w: not a RIFF/WAVE container", ErrUnsupportedFormat)
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		haveFmt       bool
		pcm           []byte
	)

	off := riffHeaderSize
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return AudioBuffer{}, fmt.Errorf("%w: fmt chunk too short", ErrUnsupportedFormat)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != wavFormatPCM {
				return AudioBuffer{}, fmt.Errorf("%w: format %d, only PCM supported", ErrUnsupportedFormat, audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		off = body + chunkSize
		if chunkSize%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return AudioBuffer{}, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedFormat)
	}
	if pcm == nil {
		return AudioBuffer{}, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
	}
	if bitsPerSample != 16 {
		return AudioBuffer{}, fmt.Errorf("%w: %d bits per sample, only 16 supported", ErrUnsupportedFormat, bitsPerSample)
	}
	if channels < 1 || sampleRate <= 0 {
		return AudioBuffer{}, fmt.Errorf("%w: invalid fmt chunk", ErrUnsupportedFormat)
	}
	if len(pcm)%(channels*BytesPerSample) != 0 {
		pcm = pcm[:len(pcm)/(channels*BytesPerSample)*(channels*BytesPerSample)]
	}

	return AudioBuffer{SampleRate: sampleRate, Channels: channels, Data: pcm}, nil
}

// EncodeWAV emits a standard little-endian PCM WAV file: RIFF header,
// "fmt " subchunk and a "data" subchunk of exactly frames*channels*2
// bytes.
func EncodeWAV(buf AudioBuffer) ([]byte, error) {
	if buf.Channels < 1 || buf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid buffer format", ErrUnsupportedFormat)
	}
	if len(buf.Data)%(buf.Channels*BytesPerSample) != 0 {
		return nil, fmt.Errorf("%w: data is not 16-bit frame aligned", ErrUnsupportedFormat)
	}

	dataSize := uint32(len(buf.Data))
	byteRate := uint32(buf.SampleRate * buf.Channels * BytesPerSample)
	blockAlign := uint16(buf.Channels * BytesPerSample)

	out := bytes.NewBuffer(make([]byte, 0, 44+len(buf.Data)))
	out.WriteString("RIFF")
	binary.Write(out, binary.LittleEndian, uint32(36+dataSize))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	binary.Write(out, binary.LittleEndian, uint32(16))
	binary.Write(out, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(out, binary.LittleEndian, uint16(buf.Channels))
	binary.Write(out, binary.LittleEndian, uint32(buf.SampleRate))
	binary.Write(out, binary.LittleEndian, byteRate)
	binary.Write(out, binary.LittleEndian, blockAlign)
	binary.Write(out, binary.LittleEndian, uint16(16))
	out.WriteString("data")
	binary.Write(out, binary.LittleEndian, dataSize)
	out.Write(buf.Data)

	return out.Bytes(), nil
}

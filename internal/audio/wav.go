package audio

import (
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps 16-bit PCM in a canonical 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const headerSize = 44
	blockAlign := channels * 2
	out := make([]byte, headerSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// WAVInfo describes the format chunk of a WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ParseWAV walks the RIFF chunks and returns the format and raw data bytes.
func ParseWAV(wav []byte) (WAVInfo, []byte, error) {
	var info WAVInfo
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return info, nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidFormat)
	}

	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8
		end := start + size
		if end > len(wav) || size < 0 {
			end = len(wav)
		}

		switch id {
		case "fmt ":
			if end-start < 16 {
				return info, nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidFormat)
			}
			if tag := binary.LittleEndian.Uint16(wav[start : start+2]); tag != 1 && tag != 0xFFFE {
				return info, nil, fmt.Errorf("%w: compressed WAV (format %d)", ErrInvalidFormat, tag)
			}
			info.Channels = int(binary.LittleEndian.Uint16(wav[start+2 : start+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(wav[start+4 : start+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(wav[start+14 : start+16]))
		case "data":
			if info.SampleRate == 0 {
				return info, nil, fmt.Errorf("%w: data before fmt chunk", ErrInvalidFormat)
			}
			return info, wav[start:end], nil
		}

		pos = end
		if size%2 != 0 {
			pos++
		}
	}
	return info, nil, fmt.Errorf("%w: data chunk not found", ErrInvalidFormat)
}

// DecodeWAV reads a 16-bit WAV file into a mono buffer, averaging channels.
func DecodeWAV(wav []byte) (*Buffer, error) {
	info, data, err := ParseWAV(wav)
	if err != nil {
		return nil, err
	}
	if info.BitsPerSample != 16 || info.Channels < 1 {
		return nil, fmt.Errorf("%w: %d-bit %d-channel audio", ErrInvalidFormat, info.BitsPerSample, info.Channels)
	}

	interleaved := DecodePCM16(data, info.SampleRate)
	if info.Channels == 1 {
		return interleaved, nil
	}

	frames := len(interleaved.Samples) / info.Channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < info.Channels; c++ {
			sum += interleaved.Samples[i*info.Channels+c]
		}
		mono[i] = sum / float32(info.Channels)
	}
	return &Buffer{Samples: mono, SampleRate: info.SampleRate}, nil
}

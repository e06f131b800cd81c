package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAV_EncodeParse(t *testing.T) {
	pcm := EncodePCM16([]float32{0, 0.25, -0.25, 0.5})
	wav := EncodeWAV(pcm, 16000, 1)
	require.Len(t, wav, 44+len(pcm))

	info, data, err := ParseWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, WAVInfo{SampleRate: 16000, Channels: 1, BitsPerSample: 16}, info)
	assert.Equal(t, pcm, data)
}

func TestDecodeWAV_DownmixesStereo(t *testing.T) {
	// two frames: (0.5, -0.5) and (0.25, 0.25)
	pcm := EncodePCM16([]float32{0.5, -0.5, 0.25, 0.25})
	buf, err := DecodeWAV(EncodeWAV(pcm, 22050, 2))
	require.NoError(t, err)

	assert.Equal(t, 22050, buf.SampleRate)
	require.Len(t, buf.Samples, 2)
	assert.InDelta(t, 0, buf.Samples[0], 1e-4)
	assert.InDelta(t, 0.25, buf.Samples[1], 1e-4)
}

func TestParseWAV_SkipsUnknownChunks(t *testing.T) {
	pcm := EncodePCM16([]float32{0.1, 0.2})
	wav := EncodeWAV(pcm, 8000, 1)

	// insert a LIST chunk with an odd size between fmt and data
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	withList := append(append(append([]byte{}, wav[:36]...), list...), wav[36:]...)

	_, data, err := ParseWAV(withList)
	require.NoError(t, err)
	assert.Equal(t, pcm, data)
}

func TestParseWAV_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("RIFX0000WAVEfmt ")},
		{"no data chunk", EncodeWAV(nil, 8000, 1)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseWAV(tt.data)
			assert.True(t, errors.Is(err, ErrInvalidFormat))
		})
	}
}

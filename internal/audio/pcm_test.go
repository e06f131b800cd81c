package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePCM16_OddLengthPadsLastSample(t *testing.T) {
	for _, n := range []int{1, 3, 5, 101} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*37 + 11)
		}

		var buf *Buffer
		require.NotPanics(t, func() { buf = DecodePCM16(data, SpeechSampleRate) })
		assert.Len(t, buf.Samples, (n+1)/2, "len %d", n)
		assert.Equal(t, SpeechSampleRate, buf.SampleRate)
	}
}

func TestDecodePCM16_Scaling(t *testing.T) {
	// -32768, 32767, 0, 1
	data := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00, 0x01, 0x00}
	buf := DecodePCM16(data, SpeechSampleRate)

	require.Len(t, buf.Samples, 4)
	assert.Equal(t, float32(-1.0), buf.Samples[0])
	assert.InDelta(t, 32767.0/32768.0, buf.Samples[1], 1e-9)
	assert.Equal(t, float32(0), buf.Samples[2])
	assert.InDelta(t, 1.0/32768.0, buf.Samples[3], 1e-9)

	for _, s := range buf.Samples {
		assert.GreaterOrEqual(t, s, float32(-1))
		assert.LessOrEqual(t, s, float32(1))
	}
}

func TestPCM16_RoundTrip(t *testing.T) {
	data := make([]byte, 0, 512)
	for v := -32768; v < 32768; v += 257 {
		s := uint16(int16(v))
		data = append(data, byte(s), byte(s>>8))
	}

	buf := DecodePCM16(data, SpeechSampleRate)
	for _, s := range buf.Samples {
		back := float64(int16(math.Round(float64(s)*32768))) / 32768
		assert.InDelta(t, float64(s), back, 1e-6)
	}
	assert.Equal(t, data, EncodePCM16(buf.Samples))
}

func TestEncodePCM16_Clamps(t *testing.T) {
	out := EncodePCM16([]float32{2, -2})
	assert.Equal(t, []byte{0xff, 0x7f, 0x00, 0x80}, out)
}

func TestResample(t *testing.T) {
	in := &Buffer{Samples: make([]float32, 16000), SampleRate: 16000}
	for i := range in.Samples {
		in.Samples[i] = 0.5
	}

	out := Resample(in, 24000)
	assert.Equal(t, 24000, out.SampleRate)
	assert.Len(t, out.Samples, 24000)
	assert.InDelta(t, 0.5, out.Samples[12345], 1e-6)
	assert.Equal(t, in.Duration(), out.Duration())

	assert.Same(t, in, Resample(in, 16000))
	assert.Nil(t, Resample(nil, 24000))
}

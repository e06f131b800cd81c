package audio

import "math"

// DecodePCM16 converts signed 16-bit little-endian mono samples into a float
// buffer scaled by 1/32768. An odd trailing byte is padded with a zero so the
// last sample is kept.
func DecodePCM16(data []byte, sampleRate int) *Buffer {
	if len(data)%2 != 0 {
		padded := make([]byte, len(data)+1)
		copy(padded, data)
		data = padded
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		samples[i] = float32(s) / 32768.0
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate}
}

// EncodePCM16 converts float samples back to 16-bit little-endian bytes,
// clamping out-of-range values.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := math.Round(float64(f) * 32768.0)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		s := uint16(int16(v))
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Resample converts b to rate using linear interpolation.
func Resample(b *Buffer, rate int) *Buffer {
	if b == nil || rate <= 0 || b.SampleRate == rate || len(b.Samples) == 0 {
		return b
	}

	ratio := float64(b.SampleRate) / float64(rate)
	n := len(b.Samples) * rate / b.SampleRate
	out := make([]float32, n)
	last := len(b.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = b.Samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = b.Samples[j]*(1-frac) + b.Samples[j+1]*frac
	}
	return &Buffer{Samples: out, SampleRate: rate}
}

// Scale multiplies every sample by gain, returning a new buffer.
func Scale(b *Buffer, gain float64) *Buffer {
	if b == nil || gain == 1 {
		return b
	}
	out := make([]float32, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = float32(float64(s) * gain)
	}
	return &Buffer{Samples: out, SampleRate: b.SampleRate}
}

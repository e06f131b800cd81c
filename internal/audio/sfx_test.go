package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOutput struct {
	mu     sync.Mutex
	played []*Buffer
}

func (o *recordingOutput) Play(buf *Buffer) (Playback, error) {
	o.mu.Lock()
	o.played = append(o.played, buf)
	o.mu.Unlock()
	pb := newDonePlayback()
	pb.finish()
	return pb, nil
}

func TestSynthesizeEffect_Shapes(t *testing.T) {
	tests := []struct {
		effect  Effect
		samples int
	}{
		{EffectCorrect, 7200},
		{EffectIncorrect, 4800},
		{EffectStreak, 14400},
	}
	for _, tt := range tests {
		t.Run(string(tt.effect), func(t *testing.T) {
			buf := SynthesizeEffect(tt.effect, 24000)
			require.NotNil(t, buf)
			assert.Len(t, buf.Samples, tt.samples)

			var peak float32
			for _, s := range buf.Samples {
				peak = max(peak, s, -s)
			}
			assert.Greater(t, peak, float32(0.005))
			assert.LessOrEqual(t, peak, float32(0.3))
		})
	}
	assert.Nil(t, SynthesizeEffect(EffectNone, 24000))
}

func TestSFX_RespectsToggle(t *testing.T) {
	out := &recordingOutput{}
	sfx := NewSFX(out, 24000, false)

	sfx.Play(EffectCorrect)
	assert.Empty(t, out.played)

	sfx.SetEnabled(true)
	sfx.Play(EffectCorrect)
	sfx.Play(EffectNone)
	assert.Len(t, out.played, 1)

	var nilSFX *SFX
	assert.NotPanics(t, func() { nilSFX.Play(EffectStreak) })
}

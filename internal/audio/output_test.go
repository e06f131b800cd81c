package audio

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTap struct{ n atomic.Int64 }

func (c *countingTap) Write(samples []float32, _ int) { c.n.Add(int64(len(samples))) }

func TestDiscardOutput_FeedsTapAndFinishes(t *testing.T) {
	tap := &countingTap{}
	out := &DiscardOutput{Tap: tap, Speed: 50}

	pb, err := out.Play(&Buffer{Samples: make([]float32, 2400), SampleRate: 24000})
	require.NoError(t, err)

	select {
	case <-pb.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not finish")
	}
	assert.Equal(t, int64(2400), tap.n.Load())
}

func TestDiscardOutput_Stop(t *testing.T) {
	out := &DiscardOutput{}
	pb, err := out.Play(&Buffer{Samples: make([]float32, 24000*10), SampleRate: 24000})
	require.NoError(t, err)

	pb.Stop()
	pb.Stop()
	select {
	case <-pb.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not end playback")
	}
}

func TestDiscardOutput_EmptyBufferIsDone(t *testing.T) {
	pb, err := (&DiscardOutput{}).Play(nil)
	require.NoError(t, err)
	<-pb.Done()
}

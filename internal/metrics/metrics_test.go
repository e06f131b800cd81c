package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/patrickJVGH/FluentFlow/internal/bus"
)

func TestObserveScoring(t *testing.T) {
	before := testutil.ToFloat64(Attempts.WithLabelValues("words", "false", "true"))
	ObserveScoring("words", 2*time.Second, false, true)
	assert.Equal(t, before+1, testutil.ToFloat64(Attempts.WithLabelValues("words", "false", "true")))
}

func TestObserveSynthesis(t *testing.T) {
	okBefore := testutil.ToFloat64(SynthesisAttempts.WithLabelValues("gemini", "ok"))
	errBefore := testutil.ToFloat64(SynthesisAttempts.WithLabelValues("local", "error"))

	ObserveSynthesis("gemini", time.Second, nil)
	ObserveSynthesis("local", time.Second, errors.New("no say"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(SynthesisAttempts.WithLabelValues("gemini", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(SynthesisAttempts.WithLabelValues("local", "error")))
}

func TestObservePlaybackDefaultsSource(t *testing.T) {
	before := testutil.ToFloat64(Playbacks.WithLabelValues("failed", "none"))
	ObservePlayback("failed", "")
	assert.Equal(t, before+1, testutil.ToFloat64(Playbacks.WithLabelValues("failed", "none")))
}

func TestSubscribeCountsEvents(t *testing.T) {
	b := bus.NewEventBus()
	Subscribe(b)

	before := testutil.ToFloat64(BatchLoads.WithLabelValues("course"))
	b.PublishSync(bus.Event{Type: bus.EventItemsLoaded, Data: map[string]any{"mode": "course", "count": 5}})

	assert.Equal(t, before+1, testutil.ToFloat64(BatchLoads.WithLabelValues("course")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(Events.WithLabelValues(string(bus.EventItemsLoaded))), 1.0)

	Subscribe(nil)
}

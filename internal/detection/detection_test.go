package detection

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateIsDeterministic(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	a := Simulate(ts)
	b := Simulate(ts)
	require.Equal(t, a, b)
	require.Len(t, a, 3)

	later := Simulate(ts.Add(500 * time.Millisecond))
	assert.NotEqual(t, a, later, "boxes should move over time")
}

func TestSimulateStaysInFrame(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	for i := 0; i < 500; i++ {
		for _, r := range Simulate(start.Add(time.Duration(i) * 137 * time.Millisecond)) {
			assert.GreaterOrEqual(t, r.BoxX, 0.0)
			assert.GreaterOrEqual(t, r.BoxY, 0.0)
			assert.LessOrEqual(t, r.BoxX+r.BoxW, 1.0)
			assert.LessOrEqual(t, r.BoxY+r.BoxH, 1.0)
			assert.GreaterOrEqual(t, r.Confidence, 0.80-1e-9)
			assert.LessOrEqual(t, r.Confidence, 0.98+1e-9)
		}
	}
}

func TestSimulateFlagsOneSubjectAtRisk(t *testing.T) {
	set := Simulate(time.Unix(42, 0))
	assert.Equal(t, 1, set.AtRiskCount())

	tags := map[string]bool{}
	for _, r := range set {
		tags[r.Tag] = true
	}
	assert.Len(t, tags, len(set), "tags unique within a set")
}

func TestPixelRectIsExact(t *testing.T) {
	r := Record{BoxX: 0.2, BoxY: 0.3, BoxW: 0.15, BoxH: 0.25}
	for _, v := range []Viewport{{640, 480}, {1920, 1080}, {333, 77}, {0, 0}} {
		w, h := float64(v.Width), float64(v.Height)
		assert.Equal(t, Rect{X: 0.2 * w, Y: 0.3 * h, W: 0.15 * w, H: 0.25 * h}, r.PixelRect(v))
	}
}

func TestPixelRectKeepsOutOfRangeBoxes(t *testing.T) {
	r := Record{BoxX: -0.1, BoxY: 0.9, BoxW: 0.5, BoxH: 0.4}
	got := r.PixelRect(Viewport{Width: 100, Height: 100})
	assert.InDelta(t, -10, got.X, 1e-9)
	assert.InDelta(t, 90, got.Y, 1e-9)
	assert.InDelta(t, 40, got.H, 1e-9)
}

func TestAtRiskBoundary(t *testing.T) {
	assert.True(t, Record{HealthScore: 0}.AtRisk())
	assert.True(t, Record{HealthScore: 69}.AtRisk())
	assert.False(t, Record{HealthScore: 70}.AtRisk())
	assert.False(t, Record{HealthScore: 100}.AtRisk())
}

func TestLabelClampsConfidence(t *testing.T) {
	assert.Equal(t, "COW-7 [87%]", Record{Tag: "COW-7", Confidence: 0.872}.Label())
	assert.Equal(t, "A [100%]", Record{Tag: "A", Confidence: 1.7}.Label())
	assert.Equal(t, "A [0%]", Record{Tag: "A", Confidence: -0.3}.Label())
	assert.Equal(t, "A [0%]", Record{Tag: "A", Confidence: math.NaN()}.Label())
}

func TestUpdateCauseText(t *testing.T) {
	assert.Empty(t, Update{Source: SourceLive}.CauseText())
	assert.Equal(t, "empty", Update{Source: SourceSimulated, Cause: errors.New("empty")}.CauseText())
}

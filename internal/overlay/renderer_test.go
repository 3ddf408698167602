package overlay

import (
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herdwatch/live-overlay/internal/detection"
)

func opsOf(ops []Op, k OpKind) []Op {
	var out []Op
	for _, op := range ops {
		if op.Kind == k {
			out = append(out, op)
		}
	}
	return out
}

func TestRenderEmptySetOnlyClears(t *testing.T) {
	rec := NewRecorder(detection.Viewport{Width: 640, Height: 480})
	rec.StrokeRect(detection.Rect{W: 1, H: 1}, Stroke{})

	NewRenderer().Render(rec, nil)

	assert.Equal(t, []Op{{Kind: OpClear}}, rec.Ops())
}

func TestRenderMapsBoxToPixels(t *testing.T) {
	v := detection.Viewport{Width: 800, Height: 600}
	rec := NewRecorder(v)
	r := NewRenderer()

	r.Render(rec, detection.Set{{Tag: "COW-1", BoxX: 0.2, BoxY: 0.3, BoxW: 0.15, BoxH: 0.25, Confidence: 0.9, HealthScore: 80}})

	rects := opsOf(rec.Ops(), OpStrokeRect)
	require.Len(t, rects, 1)
	assert.Equal(t, detection.Rect{X: 0.2 * 800, Y: 0.3 * 600, W: 0.15 * 800, H: 0.25 * 600}, rects[0].Rect)
	assert.Equal(t, r.Style.BoxDash, rects[0].Stroke.Dash)
	assert.Equal(t, r.Palette.Nominal, rects[0].Color)
}

func TestRenderStatusColorThreshold(t *testing.T) {
	rec := NewRecorder(detection.Viewport{Width: 100, Height: 100})
	r := NewRenderer()
	set := detection.Set{
		{Tag: "a", HealthScore: 69, BoxW: 0.1, BoxH: 0.1},
		{Tag: "b", HealthScore: 70, BoxW: 0.1, BoxH: 0.1},
		{Tag: "c", HealthScore: 100, BoxW: 0.1, BoxH: 0.1},
	}
	r.Render(rec, set)

	rects := opsOf(rec.Ops(), OpStrokeRect)
	require.Len(t, rects, 3)
	assert.Equal(t, r.Palette.Alert, rects[0].Color)
	assert.Equal(t, r.Palette.Nominal, rects[1].Color)
	assert.Equal(t, r.Palette.Nominal, rects[2].Color)

	labels := opsOf(rec.Ops(), OpFillRect)
	require.Len(t, labels, 3)
	assert.Equal(t, r.Palette.Alert, labels[0].Color)
	assert.Equal(t, r.Palette.Nominal, labels[1].Color)
}

func TestRenderSkeletonAndLabel(t *testing.T) {
	rec := NewRecorder(detection.Viewport{Width: 200, Height: 100})
	r := NewRenderer()
	r.Render(rec, detection.Set{{Tag: "COW-7", BoxX: 0.25, BoxY: 0.5, BoxW: 0.5, BoxH: 0.4, Confidence: 1.4, HealthScore: 50}})

	ops := rec.Ops()
	lines := opsOf(ops, OpLine)
	require.Len(t, lines, 3)
	// box is (50, 50, 100, 40)
	assert.Equal(t, Point{100, 50}, lines[0].From)
	assert.Equal(t, Point{100, 70}, lines[0].To)
	assert.Equal(t, Point{50, 90}, lines[1].To)
	assert.Equal(t, Point{150, 90}, lines[2].To)
	for _, l := range lines {
		assert.Equal(t, r.Palette.Neutral, l.Color)
	}

	circles := opsOf(ops, OpCircle)
	require.Len(t, circles, 8, "each joint is a status disc plus a neutral overlay")
	assert.Equal(t, r.Palette.Alert, circles[0].Color)
	assert.Equal(t, r.Palette.Neutral, circles[1].Color)

	texts := opsOf(ops, OpText)
	require.Len(t, texts, 1)
	assert.Equal(t, "COW-7 [100%]", texts[0].Text)
	assert.Equal(t, color.White, texts[0].Color)

	bg := opsOf(ops, OpFillRect)[0].Rect
	tw, _ := rec.MeasureText("COW-7 [100%]")
	assert.Equal(t, detection.Rect{X: 50, Y: 50 - r.Style.LabelHeight, W: tw + 2*r.Style.LabelPadding, H: r.Style.LabelHeight}, bg)
	assert.Less(t, texts[0].From.Y, 50.0, "label sits above the box")
}

func TestRenderKeepsSetOrder(t *testing.T) {
	rec := NewRecorder(detection.Viewport{Width: 10, Height: 10})
	NewRenderer().Render(rec, detection.Set{{Tag: "first"}, {Tag: "second"}})

	texts := opsOf(rec.Ops(), OpText)
	require.Len(t, texts, 2)
	assert.Equal(t, "first [0%]", texts[0].Text)
	assert.Equal(t, "second [0%]", texts[1].Text)
}

func TestRenderSimulatedSetDrawsThreeShapes(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v := detection.Viewport{Width: 1280, Height: 720}
	rec := NewRecorder(v)
	set := detection.Simulate(at)

	NewRenderer().Render(rec, set)

	rects := opsOf(rec.Ops(), OpStrokeRect)
	require.Len(t, rects, 3)
	for i, r := range set {
		assert.Equal(t, r.PixelRect(v), rects[i].Rect)
	}
}

func TestRenderDrawsOutOfFrameBoxesAsIs(t *testing.T) {
	rec := NewRecorder(detection.Viewport{Width: 100, Height: 100})
	NewRenderer().Render(rec, detection.Set{{Tag: "x", BoxX: 1.2, BoxY: -0.5, BoxW: 0.3, BoxH: 0.3}})

	rects := opsOf(rec.Ops(), OpStrokeRect)
	require.Len(t, rects, 1)
	assert.InDelta(t, 120, rects[0].Rect.X, 1e-9)
	assert.InDelta(t, -50, rects[0].Rect.Y, 1e-9)
}

func TestRasterPaintsBoxOutline(t *testing.T) {
	v := detection.Viewport{Width: 200, Height: 200}
	ras := NewRaster(v, nil)
	r := NewRenderer()
	r.Render(ras, detection.Set{{Tag: "COW-2", BoxX: 0.25, BoxY: 0.25, BoxW: 0.5, BoxH: 0.5, Confidence: 0.5, HealthScore: 10}})

	img := ras.Image()
	// top-left corner of the dashed outline falls on a dash.
	_, _, _, a := img.At(50, 50).RGBA()
	assert.NotZero(t, a)
	// inside the box, away from the skeleton, nothing is painted.
	_, _, _, a = img.At(130, 80).RGBA()
	assert.Zero(t, a)

	data, err := ras.PNG()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])

	jpg, err := ras.JPEG(80)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, jpg[:2])
}

func TestRasterResizeAndClear(t *testing.T) {
	ras := NewRaster(detection.Viewport{Width: 10, Height: 10}, color.Black)
	ras.Resize(detection.Viewport{Width: 32, Height: 24})
	assert.Equal(t, detection.Viewport{Width: 32, Height: 24}, ras.Size())

	ras.FillRect(detection.Rect{W: 32, H: 24}, color.White)
	ras.Clear()
	r, g, b, a := ras.Image().At(5, 5).RGBA()
	assert.Equal(t, [4]uint32{0, 0, 0, 0xffff}, [4]uint32{r, g, b, a})

	w, h := ras.MeasureText("COW-1 [90%]")
	assert.Greater(t, w, 0.0)
	assert.Greater(t, h, 0.0)
}

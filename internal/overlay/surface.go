// Package overlay draws detection sets onto rendering surfaces.
package overlay

import (
	"image/color"

	"github.com/herdwatch/live-overlay/internal/detection"
)

// Stroke describes how lines and outlines are drawn. An empty Dash draws a
// solid line.
type Stroke struct {
	Color color.Color
	Width float64
	Dash  []float64
}

// Surface is the drawing capability set the renderer depends on.
type Surface interface {
	Size() detection.Viewport
	Resize(v detection.Viewport)
	Clear()
	StrokeRect(r detection.Rect, s Stroke)
	FillRect(r detection.Rect, c color.Color)
	DrawLine(x1, y1, x2, y2 float64, s Stroke)
	FillCircle(x, y, radius float64, c color.Color)
	// DrawText draws text with its baseline starting at (x, y).
	DrawText(text string, x, y float64, c color.Color)
	MeasureText(text string) (w, h float64)
}

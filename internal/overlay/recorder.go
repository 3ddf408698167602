package overlay

import (
	"image/color"
	"sync"

	"github.com/herdwatch/live-overlay/internal/detection"
)

// OpKind names a recorded drawing operation.
type OpKind string

const (
	OpClear      OpKind = "clear"
	OpStrokeRect OpKind = "strokeRect"
	OpFillRect   OpKind = "fillRect"
	OpLine       OpKind = "line"
	OpCircle     OpKind = "circle"
	OpText       OpKind = "text"
)

// Op is one recorded drawing call. Only the fields relevant to Kind are set.
type Op struct {
	Kind   OpKind
	Rect   detection.Rect
	From   Point
	To     Point
	Radius float64
	Text   string
	Color  color.Color
	Stroke Stroke
}

// Recorder is a Surface that remembers drawing calls instead of painting.
// Text is measured with a fixed advance per rune.
type Recorder struct {
	mu        sync.Mutex
	size      detection.Viewport
	ops       []Op
	CharWidth float64
	LineH     float64
}

// NewRecorder returns a recorder of the given size.
func NewRecorder(v detection.Viewport) *Recorder {
	return &Recorder{size: v, CharWidth: 7, LineH: 12}
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// Ops returns a copy of the operations since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Count returns how many recorded operations are of kind k.
func (r *Recorder) Count(k OpKind) int {
	n := 0
	for _, op := range r.Ops() {
		if op.Kind == k {
			n++
		}
	}
	return n
}

func (r *Recorder) Size() detection.Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *Recorder) Resize(v detection.Viewport) {
	r.mu.Lock()
	r.size = v
	r.mu.Unlock()
}

// Clear drops everything recorded so far and records the clear itself.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.ops = []Op{{Kind: OpClear}}
	r.mu.Unlock()
}

func (r *Recorder) StrokeRect(rect detection.Rect, s Stroke) {
	r.add(Op{Kind: OpStrokeRect, Rect: rect, Color: s.Color, Stroke: s})
}

func (r *Recorder) FillRect(rect detection.Rect, c color.Color) {
	r.add(Op{Kind: OpFillRect, Rect: rect, Color: c})
}

func (r *Recorder) DrawLine(x1, y1, x2, y2 float64, s Stroke) {
	r.add(Op{Kind: OpLine, From: Point{x1, y1}, To: Point{x2, y2}, Color: s.Color, Stroke: s})
}

func (r *Recorder) FillCircle(x, y, radius float64, c color.Color) {
	r.add(Op{Kind: OpCircle, From: Point{x, y}, Radius: radius, Color: c})
}

func (r *Recorder) DrawText(text string, x, y float64, c color.Color) {
	r.add(Op{Kind: OpText, Text: text, From: Point{x, y}, Color: c})
}

func (r *Recorder) MeasureText(text string) (float64, float64) {
	return float64(len([]rune(text))) * r.CharWidth, r.LineH
}

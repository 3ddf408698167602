package overlay

import (
	"image/color"

	"github.com/herdwatch/live-overlay/internal/detection"
)

// Palette holds the overlay colors.
type Palette struct {
	Alert   color.Color
	Nominal color.Color
	Neutral color.Color
	Text    color.Color
}

// DefaultPalette returns red/green status colors with a translucent white
// skeleton and white label text.
func DefaultPalette() Palette {
	return Palette{
		Alert:   color.RGBA{R: 239, G: 68, B: 68, A: 255},
		Nominal: color.RGBA{R: 34, G: 197, B: 94, A: 255},
		Neutral: color.NRGBA{R: 255, G: 255, B: 255, A: 153},
		Text:    color.White,
	}
}

// Status returns the alert color for at-risk records, nominal otherwise.
func (p Palette) Status(r detection.Record) color.Color {
	if r.AtRisk() {
		return p.Alert
	}
	return p.Nominal
}

// Style holds the overlay geometry.
type Style struct {
	BoxWidth      float64
	BoxDash       []float64
	SkeletonWidth float64
	JointRadius   float64
	LabelPadding  float64
	LabelHeight   float64
}

// DefaultStyle returns the stock overlay geometry.
func DefaultStyle() Style {
	return Style{
		BoxWidth:      2,
		BoxDash:       []float64{6, 4},
		SkeletonWidth: 2,
		JointRadius:   4,
		LabelPadding:  4,
		LabelHeight:   18,
	}
}

// Renderer redraws a whole detection set onto a surface.
type Renderer struct {
	Palette Palette
	Style   Style
}

// NewRenderer returns a renderer with the default palette and style.
func NewRenderer() *Renderer {
	return &Renderer{Palette: DefaultPalette(), Style: DefaultStyle()}
}

// Render clears s and draws every record in set order, so later records
// paint over earlier ones.
func (r *Renderer) Render(s Surface, set detection.Set) {
	s.Clear()
	v := s.Size()
	for _, rec := range set {
		r.drawRecord(s, rec, v)
	}
}

func (r *Renderer) drawRecord(s Surface, rec detection.Record, v detection.Viewport) {
	box := rec.PixelRect(v)
	status := r.Palette.Status(rec)

	s.StrokeRect(box, Stroke{Color: status, Width: r.Style.BoxWidth, Dash: r.Style.BoxDash})

	bone := Stroke{Color: r.Palette.Neutral, Width: r.Style.SkeletonWidth}
	joints := Skeleton(box)
	for _, seg := range skeletonBones {
		a, b := joints[seg[0]], joints[seg[1]]
		s.DrawLine(a.X, a.Y, b.X, b.Y, bone)
	}
	for _, j := range joints {
		s.FillCircle(j.X, j.Y, r.Style.JointRadius, status)
		s.FillCircle(j.X, j.Y, r.Style.JointRadius/2, r.Palette.Neutral)
	}

	label := rec.Label()
	tw, _ := s.MeasureText(label)
	pad := r.Style.LabelPadding
	bg := detection.Rect{
		X: box.X,
		Y: box.Y - r.Style.LabelHeight,
		W: tw + 2*pad,
		H: r.Style.LabelHeight,
	}
	s.FillRect(bg, status)
	s.DrawText(label, bg.X+pad, box.Y-pad-1, r.Palette.Text)
}

// Point is a pixel-space point.
type Point struct {
	X, Y float64
}

// Joint indexes into the array returned by Skeleton.
const (
	JointHead = iota
	JointHip
	JointLeftFoot
	JointRightFoot
)

var skeletonBones = [][2]int{
	{JointHead, JointHip},
	{JointHip, JointLeftFoot},
	{JointHip, JointRightFoot},
}

// Skeleton returns the four pose joints for a box: the spine runs from the
// top center to the center, and the limbs from there to the bottom corners.
func Skeleton(box detection.Rect) [4]Point {
	cx := box.X + box.W/2
	return [4]Point{
		JointHead:      {X: cx, Y: box.Y},
		JointHip:       {X: cx, Y: box.Y + box.H/2},
		JointLeftFoot:  {X: box.X, Y: box.Y + box.H},
		JointRightFoot: {X: box.X + box.W, Y: box.Y + box.H},
	}
}

package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/herdwatch/live-overlay/internal/detection"
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// LabelFontSize is the point size of label text on raster surfaces.
const LabelFontSize = 12

// Raster is a Surface backed by an in-memory RGBA image.
type Raster struct {
	mu         sync.Mutex
	dc         *gg.Context
	face       font.Face
	background color.Color
}

// NewRaster returns a raster of size v cleared to background. A nil
// background means fully transparent.
func NewRaster(v detection.Viewport, background color.Color) *Raster {
	if background == nil {
		background = color.Transparent
	}
	r := &Raster{
		face:       truetype.NewFace(labelFont, &truetype.Options{Size: LabelFontSize}),
		background: background,
	}
	r.dc = r.newContext(v)
	return r
}

func (r *Raster) newContext(v detection.Viewport) *gg.Context {
	dc := gg.NewContext(max(v.Width, 1), max(v.Height, 1))
	dc.SetFontFace(r.face)
	dc.SetColor(r.background)
	dc.Clear()
	return dc
}

func (r *Raster) Size() detection.Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return detection.Viewport{Width: r.dc.Width(), Height: r.dc.Height()}
}

// Resize reallocates the backing image. Existing content is discarded.
func (r *Raster) Resize(v detection.Viewport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.Width == r.dc.Width() && v.Height == r.dc.Height() {
		return
	}
	r.dc = r.newContext(v)
}

func (r *Raster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.SetColor(r.background)
	r.dc.Clear()
}

func (r *Raster) stroke(s Stroke) {
	r.dc.SetColor(s.Color)
	r.dc.SetLineWidth(s.Width)
	r.dc.SetDash(s.Dash...)
	r.dc.Stroke()
	r.dc.SetDash()
}

func (r *Raster) StrokeRect(rect detection.Rect, s Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.DrawRectangle(rect.X, rect.Y, rect.W, rect.H)
	r.stroke(s)
}

func (r *Raster) FillRect(rect detection.Rect, c color.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.DrawRectangle(rect.X, rect.Y, rect.W, rect.H)
	r.dc.SetColor(c)
	r.dc.Fill()
}

func (r *Raster) DrawLine(x1, y1, x2, y2 float64, s Stroke) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.DrawLine(x1, y1, x2, y2)
	r.stroke(s)
}

func (r *Raster) FillCircle(x, y, radius float64, c color.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.DrawCircle(x, y, radius)
	r.dc.SetColor(c)
	r.dc.Fill()
}

func (r *Raster) DrawText(text string, x, y float64, c color.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc.SetColor(c)
	r.dc.DrawString(text, x, y)
}

func (r *Raster) MeasureText(text string) (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.MeasureString(text)
}

// Image returns a copy of the current pixels.
func (r *Raster) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.dc.Image().(*image.RGBA)
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// PNG encodes the current pixels as PNG.
func (r *Raster) PNG() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var buf bytes.Buffer
	if err := r.dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JPEG encodes the current pixels as JPEG. Transparency is lost.
func (r *Raster) JPEG(quality int) ([]byte, error) {
	img := r.Image()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

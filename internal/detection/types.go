// Package detection defines the detection records exchanged between the
// feed poller and the overlay renderer.
package detection

import (
	"fmt"
	"math"
	"time"
)

// AtRiskThreshold is the health score below which a subject is flagged.
const AtRiskThreshold = 70

// Record is one observed subject in the current frame. Box coordinates are
// normalized to the source frame with the origin at the top-left corner.
type Record struct {
	Tag         string  `json:"tag"`
	BoxX        float64 `json:"boxX"`
	BoxY        float64 `json:"boxY"`
	BoxW        float64 `json:"boxW"`
	BoxH        float64 `json:"boxH"`
	Confidence  float64 `json:"confidence"`
	HealthScore int     `json:"healthScore"`
}

// Set is an ordered detection set. Sets are replaced wholesale and never
// mutated after publication.
type Set []Record

// Viewport is the pixel size of a rendering surface.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a pixel-space rectangle.
type Rect struct {
	X, Y, W, H float64
}

// AtRisk reports whether the record's health score is below AtRiskThreshold.
func (r Record) AtRisk() bool {
	return r.HealthScore < AtRiskThreshold
}

// PixelRect maps the normalized box onto the viewport. Out-of-range
// coordinates are passed through unchanged.
func (r Record) PixelRect(v Viewport) Rect {
	w, h := float64(v.Width), float64(v.Height)
	return Rect{
		X: r.BoxX * w,
		Y: r.BoxY * h,
		W: r.BoxW * w,
		H: r.BoxH * h,
	}
}

// Label returns "<tag> [<confidence%>]" with the confidence clamped to [0,1].
func (r Record) Label() string {
	return fmt.Sprintf("%s [%d%%]", r.Tag, int(math.Round(ClampConfidence(r.Confidence)*100)))
}

// ClampConfidence clamps c into [0,1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// AtRiskCount returns the number of at-risk records in the set.
func (s Set) AtRiskCount() int {
	n := 0
	for _, r := range s {
		if r.AtRisk() {
			n++
		}
	}
	return n
}

// Source tells where a published set came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceSimulated Source = "simulated"
)

// Update is a detection set as published by the poller.
type Update struct {
	Set    Set
	Source Source
	// Cause is nil for live sets and explains the fallback otherwise.
	Cause error
	At    time.Time
	// Version is assigned by the store on publication, starting at 1.
	Version uint64
}

// CauseText returns the fallback cause as text, or "" for live sets.
func (u Update) CauseText() string {
	if u.Cause == nil {
		return ""
	}
	return u.Cause.Error()
}

package detection

import (
	"math"
	"time"
)

// simTrack describes one simulated subject: a resting box plus the
// amplitude and angular speed of its oscillation.
type simTrack struct {
	tag            string
	x, y, w, h     float64
	ampX, ampY     float64
	speedX, speedY float64
	phase          float64
	confSpeed      float64
	health         int
}

var simTracks = []simTrack{
	{tag: "COW-101", x: 0.20, y: 0.30, w: 0.15, h: 0.25, ampX: 0.05, ampY: 0.03, speedX: 0.8, speedY: 0.6, phase: 0, confSpeed: 1.3, health: 94},
	{tag: "COW-205", x: 0.55, y: 0.25, w: 0.18, h: 0.28, ampX: 0.04, ampY: 0.04, speedX: 0.5, speedY: 0.7, phase: 2.1, confSpeed: 1.1, health: 62},
	{tag: "COW-317", x: 0.35, y: 0.55, w: 0.16, h: 0.24, ampX: 0.06, ampY: 0.03, speedX: 0.4, speedY: 0.9, phase: 4.2, confSpeed: 0.9, health: 81},
}

// Simulate returns the synthetic detection set for wall-clock time t. The
// result depends only on t, so equal timestamps yield equal sets.
func Simulate(t time.Time) Set {
	s := float64(t.UnixMilli()) / 1000

	set := make(Set, len(simTracks))
	for i, tr := range simTracks {
		set[i] = Record{
			Tag:         tr.tag,
			BoxX:        tr.x + tr.ampX*math.Sin(s*tr.speedX+tr.phase),
			BoxY:        tr.y + tr.ampY*math.Cos(s*tr.speedY+tr.phase),
			BoxW:        tr.w,
			BoxH:        tr.h,
			Confidence:  0.89 + 0.09*math.Sin(s*tr.confSpeed+tr.phase),
			HealthScore: tr.health,
		}
	}
	return set
}

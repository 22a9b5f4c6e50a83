package track

import (
	"math"

	"backend-trailtrace/internal/shared/geo"
)

// Accumulator is the incremental form of the pipeline for live ingestion.
// Each accepted fix extends the retained sequence, distance and elevation
// in O(1); the polyline stages run only when a snapshot is requested.
type Accumulator struct {
	cfg Config

	fixes        []Fix
	lastAccepted *Fix
	rejected     int
	interpolated int
	distanceM    float64
	gainM        float64
	lossM        float64
}

func NewAccumulator(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg}
}

// Add runs the outlier gate against the last accepted fix and, on
// acceptance, splices in any synthetic gap fixes before extending the
// running totals. Reports whether the fix was accepted.
func (a *Accumulator) Add(fix Fix) bool {
	p := Processor{cfg: a.cfg}
	if !p.acceptable(fix, a.lastAccepted) {
		a.rejected++
		return false
	}

	if a.lastAccepted != nil && a.cfg.Interpolate {
		for _, synth := range synthesize(*a.lastAccepted, fix) {
			a.extend(synth)
			a.interpolated++
		}
	}
	a.extend(fix)
	a.lastAccepted = &a.fixes[len(a.fixes)-1]
	return true
}

func (a *Accumulator) extend(fix Fix) {
	if n := len(a.fixes); n > 0 {
		prev := a.fixes[n-1]
		a.distanceM += geo.HaversineM(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
		if prev.AltitudeM != nil && fix.AltitudeM != nil {
			delta := *fix.AltitudeM - *prev.AltitudeM
			if math.Abs(delta) >= a.cfg.ElevationThresholdM {
				if delta > 0 {
					a.gainM += delta
				} else {
					a.lossM -= delta
				}
			}
		}
	}
	a.fixes = append(a.fixes, fix)
}

func (a *Accumulator) DistanceM() float64      { return a.distanceM }
func (a *Accumulator) ElevationGainM() float64 { return a.gainM }
func (a *Accumulator) ElevationLossM() float64 { return a.lossM }
func (a *Accumulator) Count() int              { return len(a.fixes) }

func (a *Accumulator) LastFix() *Fix {
	return a.lastAccepted
}

// Reset clears all state; the only path by which totals may decrease.
func (a *Accumulator) Reset() {
	*a = Accumulator{cfg: a.cfg}
}

// Snapshot materializes the full ProcessedPath from the retained sequence.
func (a *Accumulator) Snapshot() ProcessedPath {
	p := Processor{cfg: a.cfg}
	return ProcessedPath{
		Filtered:          a.fixes,
		Interpolated:      a.fixes,
		Polyline:          EncodePolyline(a.fixes),
		Simplified:        EncodePolyline(p.Simplify(a.fixes)),
		DistanceM:         a.distanceM,
		ElevationGainM:    a.gainM,
		ElevationLossM:    a.lossM,
		RejectedCount:     a.rejected,
		InterpolatedCount: a.interpolated,
	}
}

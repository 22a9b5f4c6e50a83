package track

import (
	"math"

	"backend-trailtrace/internal/shared/geo"
)

// Processor runs the cleaning pipeline over raw fix sequences. All stages
// are pure and independently callable; Process composes them.
type Processor struct {
	cfg Config
}

func NewProcessor(cfg Config) *Processor {
	return &Processor{cfg: cfg}
}

// SetConfig swaps the pipeline tuning; it takes effect on the next call.
func (p *Processor) SetConfig(cfg Config) {
	p.cfg = cfg
}

func (p *Processor) Config() Config {
	return p.cfg
}

// FilterOutliers drops fixes whose accuracy breaches the ceiling or whose
// implied speed against the last accepted fix breaches the speed ceiling.
// Rejection is judged against the last accepted fix, not the raw previous
// one, so a single bad fix cannot poison acceptance of the next good one.
func (p *Processor) FilterOutliers(fixes []Fix) ([]Fix, int) {
	if len(fixes) <= 1 {
		return fixes, 0
	}

	accepted := make([]Fix, 0, len(fixes))
	rejected := 0
	for _, fix := range fixes {
		if !p.acceptable(fix, last(accepted)) {
			rejected++
			continue
		}
		accepted = append(accepted, fix)
	}
	return accepted, rejected
}

func (p *Processor) acceptable(fix Fix, prev *Fix) bool {
	// Negative accuracy is the sensor error sentinel.
	if fix.AccuracyM < 0 || fix.AccuracyM > p.cfg.AccuracyCeilingM {
		return false
	}
	if prev == nil {
		return true
	}
	dist := geo.HaversineM(prev.Lat, prev.Lng, fix.Lat, fix.Lng)
	elapsed := fix.RecordedAt.Sub(prev.RecordedAt).Seconds()
	if elapsed <= 0 {
		return dist == 0
	}
	return dist/elapsed <= p.cfg.SpeedCeilingMps
}

// InterpolateGaps expands time/distance holes between adjacent fixes with
// linearly interpolated synthetic fixes. Holes outside the 5s..120s window
// are left as-is; very large gaps cannot be trusted to be linear.
func (p *Processor) InterpolateGaps(fixes []Fix) ([]Fix, int) {
	if len(fixes) <= 1 {
		return fixes, 0
	}

	out := make([]Fix, 0, len(fixes))
	out = append(out, fixes[0])
	count := 0
	for i := 1; i < len(fixes); i++ {
		synth := synthesize(fixes[i-1], fixes[i])
		out = append(out, synth...)
		out = append(out, fixes[i])
		count += len(synth)
	}
	return out, count
}

func synthesize(a, b Fix) []Fix {
	gap := b.RecordedAt.Sub(a.RecordedAt)
	dist := geo.HaversineM(a.Lat, a.Lng, b.Lat, b.Lng)
	if gap <= gapTimeThreshold && dist <= gapDistanceM {
		return nil
	}
	if gap < interpolateMinGap || gap > interpolateMaxGap {
		return nil
	}

	accuracy := interpolateAccuracyF * math.Max(a.AccuracyM, b.AccuracyM)
	speed := dist / gap.Seconds()
	heading := geo.BearingDeg(a.Lat, a.Lng, b.Lat, b.Lng)

	var synth []Fix
	for offset := interpolateStep; offset < gap; offset += interpolateStep {
		f := float64(offset) / float64(gap)
		fix := Fix{
			Lat:        a.Lat + (b.Lat-a.Lat)*f,
			Lng:        a.Lng + (b.Lng-a.Lng)*f,
			AccuracyM:  accuracy,
			SpeedMps:   ptr(speed),
			HeadingDeg: ptr(heading),
			RecordedAt: a.RecordedAt.Add(offset),
			Source:     a.Source,
		}
		if a.AltitudeM != nil && b.AltitudeM != nil {
			fix.AltitudeM = ptr(*a.AltitudeM + (*b.AltitudeM-*a.AltitudeM)*f)
		}
		synth = append(synth, fix)
	}
	return synth
}

// ElevationChanges accumulates consecutive-pair altitude deltas into gain
// and loss. Deltas below the threshold are barometric/GPS jitter and are
// discarded entirely, not carried forward.
func (p *Processor) ElevationChanges(fixes []Fix) (gain, loss float64) {
	for i := 1; i < len(fixes); i++ {
		prev, cur := fixes[i-1].AltitudeM, fixes[i].AltitudeM
		if prev == nil || cur == nil {
			continue
		}
		delta := *cur - *prev
		if math.Abs(delta) < p.cfg.ElevationThresholdM {
			continue
		}
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	return gain, loss
}

// TotalDistanceM is the pairwise Haversine sum over the sequence.
func TotalDistanceM(fixes []Fix) float64 {
	var total float64
	for i := 1; i < len(fixes); i++ {
		total += geo.HaversineM(fixes[i-1].Lat, fixes[i-1].Lng, fixes[i].Lat, fixes[i].Lng)
	}
	return total
}

// Process runs filter, interpolation and the derived stages in order and
// returns all artifacts and counters together.
func (p *Processor) Process(fixes []Fix) ProcessedPath {
	filtered, rejected := p.FilterOutliers(fixes)

	interpolated := filtered
	interpCount := 0
	if p.cfg.Interpolate {
		interpolated, interpCount = p.InterpolateGaps(filtered)
	}

	gain, loss := p.ElevationChanges(interpolated)

	return ProcessedPath{
		Filtered:          filtered,
		Interpolated:      interpolated,
		Polyline:          EncodePolyline(interpolated),
		Simplified:        EncodePolyline(p.Simplify(interpolated)),
		DistanceM:         TotalDistanceM(interpolated),
		ElevationGainM:    gain,
		ElevationLossM:    loss,
		RejectedCount:     rejected,
		InterpolatedCount: interpCount,
	}
}

func last(fixes []Fix) *Fix {
	if len(fixes) == 0 {
		return nil
	}
	return &fixes[len(fixes)-1]
}

func ptr(v float64) *float64 {
	return &v
}

package track

import "time"

type Source string

const (
	SourceGPS     Source = "gps"
	SourceNetwork Source = "network"
	SourcePassive Source = "passive"
	SourceError   Source = "error"
)

// Fix is a single raw location sample. Optional sensor readings are
// pointers so absence survives JSON round-trips.
type Fix struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	AccuracyM  float64   `json:"accuracy_m"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	HeadingDeg *float64  `json:"heading_deg,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Source     Source    `json:"source"`
}

// ProcessedPath is the derived record for a fix sequence. Distance and
// elevation never decrease as fixes are appended, except on a full reset.
type ProcessedPath struct {
	Filtered          []Fix   `json:"-"`
	Interpolated      []Fix   `json:"-"`
	Polyline          string  `json:"polyline"`
	Simplified        string  `json:"simplified_polyline"`
	DistanceM         float64 `json:"distance_m"`
	ElevationGainM    float64 `json:"elevation_gain_m"`
	ElevationLossM    float64 `json:"elevation_loss_m"`
	RejectedCount     int     `json:"rejected_count"`
	InterpolatedCount int     `json:"interpolated_count"`
}

type Config struct {
	AccuracyCeilingM    float64
	SpeedCeilingMps     float64
	Interpolate         bool
	SimplifyToleranceM  float64
	ElevationThresholdM float64
}

func DefaultConfig() Config {
	return Config{
		AccuracyCeilingM:    100,
		SpeedCeilingMps:     10,
		Interpolate:         true,
		SimplifyToleranceM:  5,
		ElevationThresholdM: 3,
	}
}

const (
	gapTimeThreshold     = 30 * time.Second
	gapDistanceM         = 200.0
	interpolateStep      = 5 * time.Second
	interpolateMinGap    = 5 * time.Second
	interpolateMaxGap    = 120 * time.Second
	interpolateAccuracyF = 1.5
)

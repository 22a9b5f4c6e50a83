package session

import "time"

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
	DistanceM      float64   `json:"distance_m"`
	ElevationGainM float64   `json:"elevation_gain_m"`
	ElevationLossM float64   `json:"elevation_loss_m"`
	CreatedAt      time.Time `json:"created_at"`
}

// FixResult is the per-fix ingestion receipt: whether the outlier gate kept
// the fix and the running totals afterwards.
type FixResult struct {
	Accepted       bool    `json:"accepted"`
	Paused         bool    `json:"paused"`
	FixCount       int     `json:"fix_count"`
	DistanceM      float64 `json:"distance_m"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	ElevationLossM float64 `json:"elevation_loss_m"`
}

type Summary struct {
	SessionID       string  `json:"session_id"`
	Status          Status  `json:"status"`
	FixCount        int     `json:"fix_count"`
	DistanceM       float64 `json:"distance_m"`
	ElevationGainM  float64 `json:"elevation_gain_m"`
	ElevationLossM  float64 `json:"elevation_loss_m"`
	DurationSec     int64   `json:"duration_sec"`
	AverageSpeedMps float64 `json:"average_speed_mps"`
}

package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"backend-trailtrace/internal/activity"
	"backend-trailtrace/internal/db"
	"backend-trailtrace/internal/motion"
	"backend-trailtrace/internal/stream"
	"backend-trailtrace/internal/track"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Recorder turns a finished session into a committed activity record.
type Recorder interface {
	Create(ctx context.Context, input activity.Activity) (activity.Activity, error)
}

// Service orchestrates live tracking: each active session owns a track
// accumulator and a motion gate, and its events fan out on the stream hub.
type Service struct {
	db       db.Querier
	hub      *stream.Hub
	recorder Recorder
	trackCfg track.Config
	gateCfg  motion.Config

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	mu        sync.Mutex
	userID    string
	startedAt time.Time
	acc       *track.Accumulator
	gate      *motion.Gate
	paused    bool
}

func NewService(querier db.Querier, hub *stream.Hub, recorder Recorder, trackCfg track.Config, gateCfg motion.Config) *Service {
	return &Service{
		db:       querier,
		hub:      hub,
		recorder: recorder,
		trackCfg: trackCfg,
		gateCfg:  gateCfg,
		live:     map[string]*liveSession{},
	}
}

func (s *Service) StartSession(ctx context.Context, input Session) (Session, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.StartedAt.IsZero() {
		input.StartedAt = time.Now()
	}
	input.Status = StatusActive

	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, title, status, started_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, input.ID, input.UserID, input.Title, input.Status, input.StartedAt)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Session{}, err
	}

	ls := &liveSession{
		userID:    input.UserID,
		startedAt: input.StartedAt,
		acc:       track.NewAccumulator(s.trackCfg),
		gate:      motion.NewGate(s.gateCfg),
	}
	sessionID := input.ID
	ls.gate.Subscribe(func(sig motion.Signal) {
		s.onSignal(sessionID, ls, sig)
	})
	ls.gate.Start()

	s.mu.Lock()
	s.live[sessionID] = ls
	s.mu.Unlock()
	return input, nil
}

// AddFix feeds one raw fix through the motion gate and, unless the session
// is paused, the outlier gate and running totals. Accepted fixes update the
// session row and are broadcast to watchers.
func (s *Service) AddFix(ctx context.Context, sessionID string, fix track.Fix) (FixResult, error) {
	ls, err := s.liveFor(sessionID)
	if err != nil {
		return FixResult{}, err
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = time.Now()
	}

	ls.gate.Observe(fix)

	ls.mu.Lock()
	result := FixResult{Paused: ls.paused}
	if !ls.paused {
		result.Accepted = ls.acc.Add(fix)
	}
	result.FixCount = ls.acc.Count()
	result.DistanceM = ls.acc.DistanceM()
	result.ElevationGainM = ls.acc.ElevationGainM()
	result.ElevationLossM = ls.acc.ElevationLossM()
	ls.mu.Unlock()

	if result.Accepted {
		_, _ = s.db.Exec(ctx, `
			UPDATE sessions
			SET distance_m=$2, elevation_gain_m=$3, elevation_loss_m=$4
			WHERE id=$1
		`, sessionID, result.DistanceM, result.ElevationGainM, result.ElevationLossM)

		if s.hub != nil {
			s.hub.Publish(sessionID, stream.EventPoint, fix)
		}
	}
	return result, nil
}

func (s *Service) Pause(sessionID string) error {
	ls, err := s.liveFor(sessionID)
	if err != nil {
		return err
	}
	ls.gate.TriggerPause()
	return nil
}

func (s *Service) Resume(sessionID string) error {
	ls, err := s.liveFor(sessionID)
	if err != nil {
		return err
	}
	ls.gate.TriggerResume()
	return nil
}

// EndSession stops the gate, materializes the final path and commits it both
// to the session row and, through the recorder, as a synced activity.
func (s *Service) EndSession(ctx context.Context, sessionID string) (Session, error) {
	s.mu.Lock()
	ls := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()
	if ls == nil {
		return Session{}, ErrSessionNotFound
	}
	ls.gate.Stop()

	ls.mu.Lock()
	path := ls.acc.Snapshot()
	ls.mu.Unlock()

	endedAt := time.Now()
	out := Session{
		ID:             sessionID,
		Status:         StatusEnded,
		EndedAt:        endedAt,
		DistanceM:      path.DistanceM,
		ElevationGainM: path.ElevationGainM,
		ElevationLossM: path.ElevationLossM,
	}
	row := s.db.QueryRow(ctx, `
		UPDATE sessions
		SET status=$2, ended_at=$3, distance_m=$4, elevation_gain_m=$5, elevation_loss_m=$6
		WHERE id=$1
		RETURNING user_id, title, started_at, created_at
	`, sessionID, out.Status, out.EndedAt, out.DistanceM, out.ElevationGainM, out.ElevationLossM)
	if err := row.Scan(&out.UserID, &out.Title, &out.StartedAt, &out.CreatedAt); err != nil {
		return Session{}, err
	}

	if s.recorder != nil {
		_, err := s.recorder.Create(ctx, activity.Activity{
			UserID:         out.UserID,
			Title:          out.Title,
			Polyline:       path.Polyline,
			Simplified:     path.Simplified,
			DistanceM:      path.DistanceM,
			ElevationGainM: path.ElevationGainM,
			ElevationLossM: path.ElevationLossM,
			StartedAt:      out.StartedAt,
			EndedAt:        endedAt,
		})
		if err != nil {
			log.Printf("record session %s activity error: %v", sessionID, err)
		}
	}
	return out, nil
}

// Summary reads the live totals when the session is active and falls back
// to the persisted row otherwise.
func (s *Service) Summary(ctx context.Context, sessionID string) (Summary, error) {
	s.mu.Lock()
	ls := s.live[sessionID]
	s.mu.Unlock()

	if ls != nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		status := StatusActive
		if ls.paused {
			status = StatusPaused
		}
		return summarize(sessionID, status, ls.acc.Count(), ls.acc.DistanceM(),
			ls.acc.ElevationGainM(), ls.acc.ElevationLossM(), ls.startedAt, time.Now()), nil
	}

	var row Session
	err := s.db.QueryRow(ctx, `
		SELECT user_id, status, started_at, ended_at, distance_m, elevation_gain_m, elevation_loss_m
		FROM sessions WHERE id=$1
	`, sessionID).Scan(&row.UserID, &row.Status, &row.StartedAt, &row.EndedAt,
		&row.DistanceM, &row.ElevationGainM, &row.ElevationLossM)
	if err != nil {
		return Summary{}, err
	}
	return summarize(sessionID, row.Status, 0, row.DistanceM,
		row.ElevationGainM, row.ElevationLossM, row.StartedAt, row.EndedAt), nil
}

func summarize(sessionID string, status Status, fixes int, distanceM, gainM, lossM float64, startedAt, endedAt time.Time) Summary {
	duration := endedAt.Sub(startedAt)
	avgSpeed := 0.0
	if duration.Seconds() > 0 {
		avgSpeed = distanceM / duration.Seconds()
	}
	return Summary{
		SessionID:       sessionID,
		Status:          status,
		FixCount:        fixes,
		DistanceM:       distanceM,
		ElevationGainM:  gainM,
		ElevationLossM:  lossM,
		DurationSec:     int64(duration.Seconds()),
		AverageSpeedMps: avgSpeed,
	}
}

func (s *Service) liveFor(sessionID string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

func (s *Service) onSignal(sessionID string, ls *liveSession, sig motion.Signal) {
	ls.mu.Lock()
	switch sig.Kind {
	case motion.SignalPause:
		ls.paused = true
	case motion.SignalResume:
		ls.paused = false
	}
	status := StatusActive
	if ls.paused {
		status = StatusPaused
	}
	ls.mu.Unlock()

	_, _ = s.db.Exec(context.Background(), `UPDATE sessions SET status=$2 WHERE id=$1`, sessionID, status)
	if s.hub != nil {
		s.hub.Publish(sessionID, stream.EventMotion, sig)
	}
}

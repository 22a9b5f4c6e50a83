package activity

import (
	"context"
	"encoding/json"
	"time"

	"backend-trailtrace/internal/db"
	"backend-trailtrace/internal/syncer"

	"github.com/google/uuid"
)

// Outbox is the slice of the sync queue this service needs: committed
// records go out through it.
type Outbox interface {
	Enqueue(ctx context.Context, kind syncer.Kind, op syncer.Op, entityID string, payload json.RawMessage) syncer.Item
}

type Service struct {
	db     db.Querier
	outbox Outbox
}

func NewService(querier db.Querier, outbox Outbox) *Service {
	return &Service{db: querier, outbox: outbox}
}

func (s *Service) Create(ctx context.Context, input Activity) (Activity, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.StartedAt.IsZero() {
		input.StartedAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO activities (id, user_id, title, polyline, simplified_polyline, distance_m, elevation_gain_m, elevation_loss_m, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, input.ID, input.UserID, input.Title, input.Polyline, input.Simplified,
		input.DistanceM, input.ElevationGainM, input.ElevationLossM, input.StartedAt, input.EndedAt)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Activity{}, err
	}

	s.enqueue(ctx, syncer.KindActivity, syncer.OpCreate, input.ID, input)
	return input, nil
}

func (s *Service) Update(ctx context.Context, id string, input Activity) (Activity, error) {
	input.ID = id
	row := s.db.QueryRow(ctx, `
		UPDATE activities
		SET title=$2, polyline=$3, simplified_polyline=$4, distance_m=$5, elevation_gain_m=$6, elevation_loss_m=$7, ended_at=$8
		WHERE id=$1
		RETURNING user_id, started_at, created_at
	`, id, input.Title, input.Polyline, input.Simplified,
		input.DistanceM, input.ElevationGainM, input.ElevationLossM, input.EndedAt)
	if err := row.Scan(&input.UserID, &input.StartedAt, &input.CreatedAt); err != nil {
		return Activity{}, err
	}

	s.enqueue(ctx, syncer.KindActivity, syncer.OpUpdate, id, input)
	return input, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id); err != nil {
		return err
	}
	s.enqueue(ctx, syncer.KindActivity, syncer.OpDelete, id, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Activity, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, polyline, simplified_polyline, distance_m, elevation_gain_m, elevation_loss_m, started_at, ended_at, created_at
		FROM activities WHERE id=$1
	`, id)

	var a Activity
	if err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Polyline, &a.Simplified,
		&a.DistanceM, &a.ElevationGainM, &a.ElevationLossM, &a.StartedAt, &a.EndedAt, &a.CreatedAt); err != nil {
		return Activity{}, err
	}
	return a, nil
}

func (s *Service) AddPhoto(ctx context.Context, input Photo) (Photo, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.TakenAt.IsZero() {
		input.TakenAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO photos (id, activity_id, user_id, url, lat, lng, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, input.ID, input.ActivityID, input.UserID, input.URL, input.Lat, input.Lng, input.TakenAt)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Photo{}, err
	}

	s.enqueue(ctx, syncer.KindPhoto, syncer.OpCreate, input.ID, input)
	return input, nil
}

func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM photos WHERE id=$1`, id); err != nil {
		return err
	}
	s.enqueue(ctx, syncer.KindPhoto, syncer.OpDelete, id, nil)
	return nil
}

func (s *Service) enqueue(ctx context.Context, kind syncer.Kind, op syncer.Op, id string, record any) {
	if s.outbox == nil {
		return
	}
	var payload json.RawMessage
	if record != nil {
		payload, _ = json.Marshal(record)
	}
	s.outbox.Enqueue(ctx, kind, op, id, payload)
}

package activity

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"backend-trailtrace/internal/syncer"

	"github.com/pashagolub/pgxmock/v3"
)

type fakeOutbox struct {
	items []syncer.Item
}

func (f *fakeOutbox) Enqueue(_ context.Context, kind syncer.Kind, op syncer.Op, entityID string, payload json.RawMessage) syncer.Item {
	item := syncer.Item{Kind: kind, Op: op, EntityID: entityID, Payload: payload}
	f.items = append(f.items, item)
	return item
}

func TestCreateEnqueuesSync(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO activities`).
		WithArgs(pgxmock.AnyArg(), "user-1", "Morning run", "abc", "ab", 22.2, 0.0, 0.0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	outbox := &fakeOutbox{}
	svc := NewService(mock, outbox)

	created, err := svc.Create(context.Background(), Activity{
		UserID:    "user-1",
		Title:     "Morning run",
		Polyline:  "abc",
		Simplified: "ab",
		DistanceM: 22.2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	if len(outbox.items) != 1 {
		t.Fatalf("expected 1 enqueued item, got %d", len(outbox.items))
	}
	item := outbox.items[0]
	if item.Kind != syncer.KindActivity || item.Op != syncer.OpCreate || item.EntityID != created.ID {
		t.Fatalf("unexpected item: %+v", item)
	}
	var payload Activity
	if err := json.Unmarshal(item.Payload, &payload); err != nil || payload.Title != "Morning run" {
		t.Fatalf("payload: %v %s", err, item.Payload)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateErrorDoesNotEnqueue(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO activities`).
		WithArgs(pgxmock.AnyArg(), "user-1", "", "", "", 0.0, 0.0, 0.0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errActivity)

	outbox := &fakeOutbox{}
	svc := NewService(mock, outbox)

	_, err = svc.Create(context.Background(), Activity{UserID: "user-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(outbox.items) != 0 {
		t.Fatalf("failed commit must not enqueue")
	}
}

func TestUpdateEnqueuesSync(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`UPDATE activities`).
		WithArgs("act-1", "Renamed", "abc", "ab", 30.0, 1.0, 2.0, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "started_at", "created_at"}).
			AddRow("user-1", time.Now(), time.Now()))

	outbox := &fakeOutbox{}
	svc := NewService(mock, outbox)

	updated, err := svc.Update(context.Background(), "act-1", Activity{
		Title: "Renamed", Polyline: "abc", Simplified: "ab",
		DistanceM: 30, ElevationGainM: 1, ElevationLossM: 2,
	})
	if err != nil || updated.UserID != "user-1" {
		t.Fatalf("update: %v %+v", err, updated)
	}
	if len(outbox.items) != 1 || outbox.items[0].Op != syncer.OpUpdate {
		t.Fatalf("expected update enqueued: %+v", outbox.items)
	}
}

func TestDeleteEnqueuesSync(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM activities`).
		WithArgs("act-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	outbox := &fakeOutbox{}
	svc := NewService(mock, outbox)

	if err := svc.Delete(context.Background(), "act-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	item := outbox.items[0]
	if item.Op != syncer.OpDelete || item.Payload != nil {
		t.Fatalf("unexpected delete item: %+v", item)
	}
}

func TestAddAndDeletePhoto(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO photos`).
		WithArgs(pgxmock.AnyArg(), "act-1", "user-1", "https://cdn.example/p.jpg", 37.7749, -122.4194, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	outbox := &fakeOutbox{}
	svc := NewService(mock, outbox)

	photo, err := svc.AddPhoto(context.Background(), Photo{
		ActivityID: "act-1", UserID: "user-1", URL: "https://cdn.example/p.jpg",
		Lat: 37.7749, Lng: -122.4194,
	})
	if err != nil || photo.ID == "" {
		t.Fatalf("add photo: %v", err)
	}
	if outbox.items[0].Kind != syncer.KindPhoto || outbox.items[0].Op != syncer.OpCreate {
		t.Fatalf("unexpected photo item: %+v", outbox.items[0])
	}

	mock.ExpectExec(`DELETE FROM photos`).
		WithArgs(photo.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := svc.DeletePhoto(context.Background(), photo.ID); err != nil {
		t.Fatalf("delete photo: %v", err)
	}
	if len(outbox.items) != 2 || outbox.items[1].Op != syncer.OpDelete {
		t.Fatalf("expected photo delete enqueued")
	}
}

func TestGetActivity(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, title, polyline, simplified_polyline`).
		WithArgs("act-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "polyline", "simplified_polyline", "distance_m", "elevation_gain_m", "elevation_loss_m", "started_at", "ended_at", "created_at"}).
			AddRow("act-1", "user-1", "Run", "abc", "ab", 22.2, 0.0, 0.0, time.Now(), time.Now(), time.Now()))

	svc := NewService(mock, nil)
	a, err := svc.Get(context.Background(), "act-1")
	if err != nil || a.ID != "act-1" {
		t.Fatalf("get: %v %+v", err, a)
	}
}

var errActivity = errors.New("activity error")

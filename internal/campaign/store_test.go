package campaign

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func campaignColumns() []string {
	return []string{"id", "name", "template_id", "target_groups", "schedule", "batch",
		"status", "launched_at", "next_dispatch_at", "created_at", "updated_at"}
}

func TestStore_Create(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO phish_campaigns").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	c := &Campaign{
		Name:         "Q1 Awareness",
		TemplateID:   "tmpl-1",
		TargetGroups: []string{"engineering"},
		Schedule:     ScheduleConfig{Type: ScheduleImmediate},
	}
	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.ID == uuid.Nil {
		t.Error("Create() did not assign an ID")
	}
	if c.Status != StatusDraft {
		t.Errorf("status = %q, want draft", c.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStore_Get(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(campaignColumns()).AddRow(
		id.String(), "Q1 Awareness", "tmpl-1", "{engineering,sales}",
		[]byte(`{"type":"immediate"}`), []byte(`{"batch_size":50,"batch_delay_seconds":60}`),
		StatusDraft, nil, nil, now, now)

	mock.ExpectQuery("SELECT (.+) FROM phish_campaigns WHERE id").
		WithArgs(id).
		WillReturnRows(rows)

	store := NewStore(db)
	c, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if c == nil {
		t.Fatal("Get() returned nil for existing row")
	}
	if c.Name != "Q1 Awareness" || len(c.TargetGroups) != 2 {
		t.Errorf("campaign = %+v", c)
	}
	if c.Schedule.Type != ScheduleImmediate {
		t.Errorf("schedule type = %q", c.Schedule.Type)
	}
	if c.Batch == nil || c.Batch.Size != 50 || c.Batch.DelaySeconds != 60 {
		t.Errorf("batch = %+v", c.Batch)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM phish_campaigns WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	store := NewStore(db)
	c, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v, want nil for missing row", err)
	}
	if c != nil {
		t.Errorf("Get() = %+v, want nil", c)
	}
}

func TestStore_Due(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	id := uuid.New()
	next := now.Add(-time.Minute)
	rows := sqlmock.NewRows(campaignColumns()).AddRow(
		id.String(), "Weekly Drill", "tmpl-2", "{all}",
		[]byte(`{"type":"recurring","pattern":"daily"}`), nil,
		StatusActive, now.Add(-24*time.Hour), next, now, now)

	mock.ExpectQuery("SELECT (.+) FROM phish_campaigns").
		WithArgs(StatusScheduled, StatusActive, sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	store := NewStore(db)
	due, err := store.Due(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("Due() error = %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d campaigns, want 1", len(due))
	}
	if !due[0].TargetsAll() {
		t.Error("target parsing lost the all-users token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStore_SaveDispatchState(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	next := time.Now().Add(time.Hour)
	launched := time.Now()
	mock.ExpectExec("UPDATE phish_campaigns SET status").
		WithArgs(StatusScheduled, sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	c := &Campaign{ID: id, Status: StatusScheduled, LaunchedAt: &launched, NextDispatchAt: &next}
	if err := store.SaveDispatchState(context.Background(), c); err != nil {
		t.Fatalf("SaveDispatchState() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStore_Exists(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT 1 FROM phish_campaigns").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM phish_campaigns").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	store := NewStore(db)
	ok, err := store.Exists(context.Background(), id)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("Exists() = false for a stored campaign")
	}

	ok, err = store.Exists(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if ok {
		t.Error("Exists() = true for an unknown campaign")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

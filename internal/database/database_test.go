package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vincentbai/pagebeacon/internal/models"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	// Create temporary directory for test database
	tmpDir, err := os.MkdirTemp("", "pagebeacon-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDatabase(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return db, cleanup
}

func strPtr(s string) *string { return &s }

func pageView(id string, tsUTC int64) models.Event {
	return models.Event{
		ID:    id,
		Type:  models.TypePageView,
		Path:  "blog/post-1",
		TSUTC: tsUTC,
		TSISO: "2024-07-01T12:34:56.000Z",
	}
}

func TestNewDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if db == nil {
		t.Fatal("Expected non-nil database")
	}
	if db.db == nil {
		t.Fatal("Expected non-nil sql.DB")
	}
}

func TestValidateEvent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	tests := []struct {
		name      string
		mutate    func(*models.Event)
		wantError bool
	}{
		{name: "valid page_view", mutate: func(*models.Event) {}},
		{name: "empty path is root", mutate: func(e *models.Event) { e.Path = "" }},
		{name: "empty ID", mutate: func(e *models.Event) { e.ID = "" }, wantError: true},
		{name: "empty type", mutate: func(e *models.Event) { e.Type = "" }, wantError: true},
		{name: "invalid event type", mutate: func(e *models.Event) { e.Type = "navigate" }, wantError: true},
		{name: "zero timestamp", mutate: func(e *models.Event) { e.TSUTC = 0 }, wantError: true},
		{name: "negative timestamp", mutate: func(e *models.Event) { e.TSUTC = -1 }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := pageView("id-1", 1719837296000)
			tt.mutate(&event)
			err := db.ValidateEvent(event)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateEvent() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestInsertEvents(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	maxScroll := 70
	events := []models.Event{
		pageView("id-1", 1719837296000),
		{
			ID:        "id-2",
			Type:      models.TypeScrollDepth,
			Path:      "blog/post-1",
			TSUTC:     1719837297000,
			TSISO:     "2024-07-01T12:34:57.000Z",
			MaxScroll: &maxScroll,
		},
	}

	if err := db.InsertEvents(context.Background(), events); err != nil {
		t.Fatalf("Failed to insert events: %v", err)
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	if count != len(events) {
		t.Errorf("Expected %d events, got %d", len(events), count)
	}
}

func TestInsertEventsInvalidEvent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	events := []models.Event{
		pageView("id-1", 1719837296000),
		pageView("", 1719837296000), // Invalid: empty ID
	}

	if err := db.InsertEvents(context.Background(), events); err == nil {
		t.Fatal("Expected error for invalid event, got nil")
	}

	// Verify transaction was rolled back
	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("Failed to query count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 events after rollback, got %d", count)
	}
}

func TestRecordAllEventTypes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i, eventType := range models.EventTypes {
		t.Run(eventType, func(t *testing.T) {
			event := pageView(eventType+"-id", int64(1719837296000+i))
			event.Type = eventType
			if err := db.Record(context.Background(), event); err != nil {
				t.Errorf("Failed to insert %s event: %v", eventType, err)
			}
		})
	}

	counts, err := db.CountByType(context.Background())
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	for _, eventType := range models.EventTypes {
		if counts[eventType] != 1 {
			t.Errorf("Expected 1 %s event, got %d", eventType, counts[eventType])
		}
	}
}

func TestCountByTypeIncludesEmptyTypes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := db.Record(ctx, pageView("a", 1)); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := db.Record(ctx, pageView("b", 2)); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	counts, err := db.CountByType(ctx)
	if err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if counts[models.TypePageView] != 2 {
		t.Errorf("Expected 2 page views, got %d", counts[models.TypePageView])
	}
	if count, ok := counts[models.TypeClick]; !ok || count != 0 {
		t.Errorf("Expected click present with zero count, got %d (present=%v)", count, ok)
	}
}

func TestRecentRoundTripsOptionalColumns(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	click := models.Event{
		ID:        "click-1",
		Type:      models.TypeClick,
		Path:      "landing",
		TSUTC:     2000,
		TSISO:     "1970-01-01T00:00:02.000Z",
		Element:   strPtr("button"),
		ElementID: strPtr(""),
		ClassName: strPtr("btn primary"),
	}
	if err := db.Record(ctx, pageView("view-1", 1000)); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}
	if err := db.Record(ctx, click); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	events, err := db.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to read recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}

	got := events[0]
	if got.ID != "click-1" {
		t.Fatalf("Expected newest event first, got %s", got.ID)
	}
	if got.ElementID == nil || *got.ElementID != "" {
		t.Errorf("Expected empty element_id to survive, got %v", got.ElementID)
	}
	if got.ClassName == nil || *got.ClassName != "btn primary" {
		t.Errorf("class_name mismatch: got %v", got.ClassName)
	}
	if got.MaxScroll != nil || got.Duration != nil || got.UserAgent != nil {
		t.Errorf("Expected unset columns to be nil, got %+v", got)
	}
	if events[1].Element != nil {
		t.Errorf("Expected nil element on page_view, got %v", *events[1].Element)
	}

	limited, err := db.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to read recent events: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d events", len(limited))
	}
}

func TestInsertEventsRollsBackOnExecFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	db := &Database{db: sqlDB}

	mock.ExpectBegin()
	prepared := mock.ExpectPrepare("INSERT INTO events")
	prepared.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = db.Record(context.Background(), pageView("id-1", 1))
	if err == nil {
		t.Fatal("Expected error when exec fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestCountByTypeQueryFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	db := &Database{db: sqlDB}
	mock.ExpectQuery("SELECT type, COUNT").WillReturnError(errors.New("no such table"))

	if _, err := db.CountByType(context.Background()); err == nil {
		t.Fatal("Expected error when query fails")
	}
}

func TestDatabaseClose(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vincentbai/pagebeacon/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type Database struct {
	db *sql.DB
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Requests share one connection and serialize on it.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	quoted := make([]string, len(models.EventTypes))
	for i, t := range models.EventTypes {
		quoted[i] = "'" + t + "'"
	}

	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id          TEXT    PRIMARY KEY,
	  ts_utc      INTEGER NOT NULL,
	  ts_iso      TEXT    NOT NULL,
	  type        TEXT    NOT NULL CHECK (type IN (` + strings.Join(quoted, ",") + `)),
	  path        TEXT    NOT NULL,
	  element     TEXT,
	  element_id  TEXT,
	  class_name  TEXT,
	  max_scroll  INTEGER,
	  user_agent  TEXT,
	  duration_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts   ON events(ts_utc);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ValidateEvent(event models.Event) error {
	if event.ID == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if event.Type == "" {
		return fmt.Errorf("Type cannot be empty")
	}
	if !models.IsKnownType(event.Type) {
		return fmt.Errorf("invalid event type: %s", event.Type)
	}
	if event.TSUTC <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	return nil
}

// Record stores a single event.
func (d *Database) Record(ctx context.Context, event models.Event) error {
	return d.InsertEvents(ctx, []models.Event{event})
}

func (d *Database) InsertEvents(ctx context.Context, events []models.Event) error {
	transaction, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.PrepareContext(ctx, `INSERT INTO events(id, ts_utc, ts_iso, type, path, element, element_id, class_name, max_scroll, user_agent, duration_ms) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, event := range events {
		if err := d.ValidateEvent(event); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid event: %w", err)
		}

		if _, err := statement.ExecContext(ctx,
			event.ID, event.TSUTC, event.TSISO, event.Type, event.Path,
			event.Element, event.ElementID, event.ClassName,
			event.MaxScroll, event.UserAgent, event.Duration,
		); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountByType returns the number of stored events per type. Types with no
// events are present with a zero count.
func (d *Database) CountByType(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.EventTypes))
	for _, t := range models.EventTypes {
		counts[t] = 0
	}

	rows, err := d.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM events GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     int64
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}
	return counts, nil
}

// Recent returns up to limit events, newest first.
func (d *Database) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := d.db.QueryContext(ctx, `
	SELECT id, ts_utc, ts_iso, type, path, element, element_id, class_name, max_scroll, user_agent, duration_ms
	FROM events ORDER BY ts_utc DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			event     models.Event
			element   sql.NullString
			elementID sql.NullString
			className sql.NullString
			maxScroll sql.NullInt64
			userAgent sql.NullString
			duration  sql.NullInt64
		)
		if err := rows.Scan(&event.ID, &event.TSUTC, &event.TSISO, &event.Type, &event.Path,
			&element, &elementID, &className, &maxScroll, &userAgent, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Element = nullString(element)
		event.ElementID = nullString(elementID)
		event.ClassName = nullString(className)
		event.UserAgent = nullString(userAgent)
		if maxScroll.Valid {
			v := int(maxScroll.Int64)
			event.MaxScroll = &v
		}
		if duration.Valid {
			v := duration.Int64
			event.Duration = &v
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is a local audit log of telemetry calls backed by SQLite.
// Entries are never replayed.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled telemetry call
type Entry struct {
	ID        int64
	SessionID string
	Kind      Kind
	SubjectID int64
	Delivered bool
	Error     string
	CreatedAt time.Time
}

// NewJournal opens (or creates) the journal database at dbPath
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases consistent across calls
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS telemetry_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			subject_id INTEGER NOT NULL,
			delivered BOOLEAN DEFAULT 0,
			error TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_kind_created ON telemetry_events(kind, created_at);
		CREATE INDEX IF NOT EXISTS idx_session ON telemetry_events(session_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Add appends an entry. A zero CreatedAt is set to now.
func (j *Journal) Add(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var errMsg any
	if e.Error != "" {
		errMsg = e.Error
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO telemetry_events (session_id, kind, subject_id, delivered, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.SessionID,
		string(e.Kind),
		e.SubjectID,
		e.Delivered,
		errMsg,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert telemetry event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// Recent returns the newest entries first. An empty kind matches all kinds
// and a non-positive limit returns everything.
func (j *Journal) Recent(ctx context.Context, limit int, kind Kind) ([]Entry, error) {
	query := `
		SELECT id, session_id, kind, subject_id, delivered, COALESCE(error, ''), created_at
		FROM telemetry_events
	`
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kindStr string
		var createdMillis int64

		if err := rows.Scan(&e.ID, &e.SessionID, &kindStr, &e.SubjectID, &e.Delivered, &e.Error, &createdMillis); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry event: %w", err)
		}

		e.Kind = Kind(kindStr)
		e.CreatedAt = time.UnixMilli(createdMillis)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating telemetry events: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries of kind (all kinds if empty).
// With deliveredOnly set, failed calls are excluded.
func (j *Journal) Count(ctx context.Context, kind Kind, deliveredOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM telemetry_events WHERE 1 = 1"
	var args []any
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	if deliveredOnly {
		query += " AND delivered = 1"
	}

	var count int
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count telemetry events: %w", err)
	}

	return count, nil
}

// Cleanup removes entries older than maxAge
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	result, err := j.db.ExecContext(ctx, "DELETE FROM telemetry_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup telemetry events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

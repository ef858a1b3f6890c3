// Package journal persists applied operations and fix attempts in SQLite
// so a session's effects can be audited after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prestige-dev/prestige/internal/directive"
)

// Database handles SQLite operations for the journal.
type Database struct {
	db     *sql.DB
	dbPath string
}

// OperationEntry is one recorded operation.
type OperationEntry struct {
	ID          int64
	SessionID   string
	Kind        string
	Position    int
	Path        string
	FromPath    string
	ToPath      string
	Packages    []string
	CommandType string
	Provider    string
	Summary     string
	AppliedAt   time.Time
}

// FixAttemptEntry is one recorded auto-fix attempt.
type FixAttemptEntry struct {
	ID           int64
	SessionID    string
	Attempt      int
	ErrorsBefore int
	ErrorsAfter  int
	Outcome      string
	RecordedAt   time.Time
}

// New opens (creating if needed) the journal database at dbPath.
func New(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	database := &Database{db: db, dbPath: dbPath}
	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return database, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		path TEXT,
		from_path TEXT,
		to_path TEXT,
		packages TEXT,
		command_type TEXT,
		provider TEXT,
		summary TEXT,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS fix_attempts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		errors_before INTEGER NOT NULL DEFAULT 0,
		errors_after INTEGER NOT NULL DEFAULT 0,
		outcome TEXT,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operations_session ON operations(session_id);
	CREATE INDEX IF NOT EXISTS idx_fix_attempts_session ON fix_attempts(session_id);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create journal schema: %w", err)
	}
	return nil
}

// RecordOperation persists one applied operation. Content is not stored;
// the project tree already holds it.
func (d *Database) RecordOperation(ctx context.Context, sessionID string, op *directive.Operation) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO operations
		(session_id, kind, position, path, from_path, to_path, packages, command_type, provider, summary, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, string(op.Kind), op.Position, op.Path, op.From, op.To,
		strings.Join(op.Packages, " "), op.CommandType, op.Provider, op.Summary(), time.Now())
	return err
}

// Operations returns every recorded operation for a session in apply order.
func (d *Database) Operations(ctx context.Context, sessionID string) ([]OperationEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, session_id, kind, position, path, from_path, to_path, packages, command_type, provider, summary, applied_at
		FROM operations WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []OperationEntry
	for rows.Next() {
		var e OperationEntry
		var packages sql.NullString
		var path, from, to, cmd, provider, summary sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Position,
			&path, &from, &to, &packages, &cmd, &provider, &summary, &e.AppliedAt); err != nil {
			return nil, err
		}
		e.Path = path.String
		e.FromPath = from.String
		e.ToPath = to.String
		e.CommandType = cmd.String
		e.Provider = provider.String
		e.Summary = summary.String
		if packages.Valid && packages.String != "" {
			e.Packages = strings.Fields(packages.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordFixAttempt persists the outcome of one auto-fix attempt.
func (d *Database) RecordFixAttempt(ctx context.Context, sessionID string, attempt, errorsBefore, errorsAfter int, outcome string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO fix_attempts (session_id, attempt, errors_before, errors_after, outcome, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, attempt, errorsBefore, errorsAfter, outcome, time.Now())
	return err
}

// FixAttempts returns the recorded attempts for a session in order.
func (d *Database) FixAttempts(ctx context.Context, sessionID string) ([]FixAttemptEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, session_id, attempt, errors_before, errors_after, outcome, recorded_at
		FROM fix_attempts WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []FixAttemptEntry
	for rows.Next() {
		var e FixAttemptEntry
		var outcome sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Attempt, &e.ErrorsBefore, &e.ErrorsAfter, &outcome, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Outcome = outcome.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

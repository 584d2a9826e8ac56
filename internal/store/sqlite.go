// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides ticket and transcript archiving with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Writers wait instead of failing while another connection holds the lock
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tickets (
			id                  TEXT PRIMARY KEY,
			session_id          TEXT NOT NULL,
			priority            TEXT NOT NULL,
			status              TEXT NOT NULL,
			reason              TEXT NOT NULL,
			customer_issue      TEXT NOT NULL,
			assigned_agent_id   TEXT NOT NULL DEFAULT '',
			assigned_agent_name TEXT NOT NULL DEFAULT '',
			eta_seconds         INTEGER NOT NULL,
			summary_json        TEXT,
			notes_json          TEXT,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,

			CHECK (priority IN ('low', 'medium', 'high', 'critical')),
			CHECK (status IN ('open', 'in_progress', 'resolved', 'cancelled'))
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_session ON tickets(session_id);
		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets(created_at);

		CREATE TABLE IF NOT EXISTS transcripts (
			session_id       TEXT PRIMARY KEY,
			current_issue    TEXT NOT NULL,
			turn_count       INTEGER NOT NULL,
			escalation_count INTEGER NOT NULL,
			steps_json       TEXT,
			messages_json    TEXT NOT NULL,
			started_at       TEXT NOT NULL,
			archived_at      TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveTicket inserts or replaces the archived snapshot of a ticket
func (s *SQLiteStore) SaveTicket(ctx context.Context, t *TicketRecord) error {
	notes, err := json.Marshal(t.Notes)
	if err != nil {
		return fmt.Errorf("encoding notes: %w", err)
	}

	query := `
		INSERT INTO tickets (
			id, session_id, priority, status, reason, customer_issue,
			assigned_agent_id, assigned_agent_name, eta_seconds,
			summary_json, notes_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			priority = excluded.priority,
			status = excluded.status,
			reason = excluded.reason,
			assigned_agent_id = excluded.assigned_agent_id,
			assigned_agent_name = excluded.assigned_agent_name,
			eta_seconds = excluded.eta_seconds,
			summary_json = excluded.summary_json,
			notes_json = excluded.notes_json,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		t.ID,
		t.SessionID,
		t.Priority,
		t.Status,
		t.Reason,
		t.CustomerIssue,
		t.AssignedAgentID,
		t.AssignedAgentName,
		int64(t.EstimatedResponseTime/time.Second),
		nullableJSON(t.Summary),
		string(notes),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving ticket: %w", err)
	}

	s.logger.Debug("saved ticket", "ticket_id", t.ID, "status", t.Status)
	return nil
}

const ticketColumns = `
	id, session_id, priority, status, reason, customer_issue,
	assigned_agent_id, assigned_agent_name, eta_seconds,
	summary_json, notes_json, created_at, updated_at
`

// GetTicket retrieves an archived ticket by ID
func (s *SQLiteStore) GetTicket(ctx context.Context, id string) (*TicketRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying ticket: %w", err)
	}
	return t, nil
}

// ListTickets returns archived tickets, oldest first
func (s *SQLiteStore) ListTickets(ctx context.Context, filter TicketFilter) ([]*TicketRecord, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*TicketRecord
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tickets: %w", err)
	}
	return tickets, nil
}

// SaveTranscript inserts or replaces a session transcript
func (s *SQLiteStore) SaveTranscript(ctx context.Context, t *Transcript) error {
	steps, err := json.Marshal(t.AttemptedSteps)
	if err != nil {
		return fmt.Errorf("encoding steps: %w", err)
	}
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO transcripts (
			session_id, current_issue, turn_count, escalation_count,
			steps_json, messages_json, started_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		t.SessionID,
		t.CurrentIssue,
		t.TurnCount,
		t.EscalationCount,
		string(steps),
		string(messages),
		formatTime(t.StartedAt),
		formatTime(t.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}

	s.logger.Debug("saved transcript", "session_id", t.SessionID, "messages", len(t.Messages))
	return nil
}

// GetTranscript retrieves the transcript of a session
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*Transcript, error) {
	query := `
		SELECT session_id, current_issue, turn_count, escalation_count,
		       steps_json, messages_json, started_at, archived_at
		FROM transcripts WHERE session_id = ?
	`

	var t Transcript
	var stepsJSON sql.NullString
	var messagesJSON, startedAt, archivedAt string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&t.SessionID,
		&t.CurrentIssue,
		&t.TurnCount,
		&t.EscalationCount,
		&stepsJSON,
		&messagesJSON,
		&startedAt,
		&archivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}

	if stepsJSON.Valid && stepsJSON.String != "" {
		if err := json.Unmarshal([]byte(stepsJSON.String), &t.AttemptedSteps); err != nil {
			return nil, fmt.Errorf("decoding steps: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(messagesJSON), &t.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	if t.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if t.ArchivedAt, err = parseTime(archivedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*TicketRecord, error) {
	var t TicketRecord
	var etaSeconds int64
	var summaryJSON, notesJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID,
		&t.SessionID,
		&t.Priority,
		&t.Status,
		&t.Reason,
		&t.CustomerIssue,
		&t.AssignedAgentID,
		&t.AssignedAgentName,
		&etaSeconds,
		&summaryJSON,
		&notesJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.EstimatedResponseTime = time.Duration(etaSeconds) * time.Second
	if summaryJSON.Valid && summaryJSON.String != "" {
		t.Summary = json.RawMessage(summaryJSON.String)
	}
	if notesJSON.Valid && notesJSON.String != "" {
		if err := json.Unmarshal([]byte(notesJSON.String), &t.Notes); err != nil {
			return nil, fmt.Errorf("decoding notes: %w", err)
		}
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Package audit records one metadata row per webhook request. Bodies,
// signatures and response content are never stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Entry is one audited request.
type Entry struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	RequestID  string    `json:"request_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Command    string    `json:"command,omitempty"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status"`
	DurationMS int64     `json:"duration_ms"`
}

// Filter narrows Recent.
type Filter struct {
	Limit   int
	Outcome string
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store writes and reads the interaction_log table.
type Store struct {
	db *sql.DB
}

// New wraps an already bootstrapped database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts e and returns its ID. A zero ReceivedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.Outcome == "" {
		return "", fmt.Errorf("outcome is empty")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO interaction_log(
  id, received_at, request_id, kind, command, outcome, status, duration_ms
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.ReceivedAt.UTC().Format(time.RFC3339Nano), nullable(e.RequestID), nullable(e.Kind),
		nullable(e.Command), e.Outcome, e.Status, e.DurationMS)
	if err != nil {
		return "", fmt.Errorf("insert interaction_log: %w", err)
	}
	return e.ID, nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := `
SELECT id, received_at, request_id, kind, command, outcome, status, duration_ms
FROM interaction_log`
	args := []any{}
	if f.Outcome != "" {
		query += "\nWHERE outcome = ?"
		args = append(args, f.Outcome)
	}
	query += "\nORDER BY received_at DESC, id DESC\nLIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interaction_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                        Entry
			receivedAt               string
			requestID, kind, command sql.NullString
		)
		if err := rows.Scan(&e.ID, &receivedAt, &requestID, &kind, &command, &e.Outcome, &e.Status, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan interaction_log: %w", err)
		}
		e.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parse received_at %q: %w", receivedAt, err)
		}
		e.RequestID = requestID.String
		e.Kind = kind.String
		e.Command = command.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction_log: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than retention and returns how many went.
// A non-positive retention keeps everything.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM interaction_log WHERE received_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune interaction_log: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RunPruner prunes once immediately and then every interval until ctx ends.
func (s *Store) RunPruner(ctx context.Context, retention, interval time.Duration, logger *slog.Logger) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	prune := func() {
		n, err := s.Prune(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("audit prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			logger.Info("audit log pruned", "deleted", n, "retention", retention.String())
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

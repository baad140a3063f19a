package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal state of a merge attempt.
type Outcome string

const (
	OutcomePublished Outcome = "published"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one recorded merge attempt.
type Entry struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	Sources     []string  `json:"sources"`
	Outcome     Outcome   `json:"outcome"`
	ResultID    string    `json:"result_id,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorDetail string    `json:"error_detail,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	BLAKE3      string    `json:"blake3,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns how long the attempt ran.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() || e.StartedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

const entryColumns = "id, request_id, run_id, source_ids, outcome, result_id, error_kind, error_detail, size_bytes, blake3, started_at, finished_at"

// Record appends an entry and returns its row id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Outcome == "" {
		return 0, errors.New("ledger entry requires an outcome")
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO merges (request_id, run_id, source_ids, outcome, result_id, error_kind, error_detail, size_bytes, blake3, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.RequestID, e.RunID, strings.Join(e.Sources, ","), string(e.Outcome), e.ResultID,
			e.ErrorKind, e.ErrorDetail, e.SizeBytes, e.BLAKE3,
			formatTime(e.StartedAt), formatTime(e.FinishedAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("record merge: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM merges ORDER BY started_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query merges: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindByResult returns the entry that published resultID.
func (s *Store) FindByResult(ctx context.Context, resultID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM merges WHERE result_id = ? ORDER BY id DESC LIMIT 1", resultID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Counts returns the number of entries per outcome.
func (s *Store) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM merges GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count merges: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Prune deletes entries that finished before cutoff and reports how many.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM merges WHERE finished_at < ?", formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune merges: %w", err)
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                   Entry
		sources, outcome    string
		startedAt, finished string
	)
	if err := row.Scan(&e.ID, &e.RequestID, &e.RunID, &sources, &outcome, &e.ResultID,
		&e.ErrorKind, &e.ErrorDetail, &e.SizeBytes, &e.BLAKE3, &startedAt, &finished); err != nil {
		return Entry{}, err
	}
	if sources != "" {
		e.Sources = strings.Split(sources, ",")
	}
	e.Outcome = Outcome(outcome)
	e.StartedAt = parseTime(startedAt)
	e.FinishedAt = parseTime(finished)
	return e, nil
}

// Times are stored as fixed-width UTC text so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

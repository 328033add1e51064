package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/migueljbento/percenseo/internal/domain"
	"github.com/migueljbento/percenseo/internal/repository"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS call_results (
	sid            TEXT PRIMARY KEY,
	destination    TEXT NOT NULL,
	duration       INTEGER NOT NULL DEFAULT 0,
	status         INTEGER NOT NULL,
	called_at      TIMESTAMPTZ NULL,
	human_answered BOOLEAN NOT NULL DEFAULT FALSE,
	direction      INTEGER NOT NULL,
	digits         TEXT NULL
)`,
	`CREATE INDEX IF NOT EXISTS call_results_status_idx ON call_results (status)`,
}

// ResultStore persists call results in Postgres.
type ResultStore struct {
	db      *sqlx.DB
	closeFn func() error
}

type resultRow struct {
	SID           string         `db:"sid"`
	Destination   string         `db:"destination"`
	Duration      int            `db:"duration"`
	Status        int            `db:"status"`
	CalledAt      sql.NullTime   `db:"called_at"`
	HumanAnswered bool           `db:"human_answered"`
	Direction     int            `db:"direction"`
	Digits        sql.NullString `db:"digits"`
}

// NewResultStore bootstraps the schema on db. closeFn, when set, runs on Close.
func NewResultStore(ctx context.Context, db *sqlx.DB, closeFn func() error) (*ResultStore, error) {
	s := &ResultStore{db: db, closeFn: closeFn}
	if err := withTx(ctx, db, func(tx *sqlx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("result store: init schema: %w: %w", repository.ErrStore, err)
	}
	return s, nil
}

// Destinations lists destinations stored with status.
func (s *ResultStore) Destinations(ctx context.Context, status domain.CallStatus) ([]string, error) {
	var destinations []string
	if err := s.db.SelectContext(ctx, &destinations,
		`SELECT destination FROM call_results WHERE status = $1`, status.Code()); err != nil {
		return nil, fmt.Errorf("result store: destinations by status: %w: %w", repository.ErrStore, err)
	}
	return destinations, nil
}

// Save upserts a result keyed by call id.
func (s *ResultStore) Save(ctx context.Context, result domain.Result) error {
	if err := repository.CheckSavable(result); err != nil {
		return fmt.Errorf("result store: %w", err)
	}

	row := toRow(result)
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO call_results (sid, destination, duration, status, called_at, human_answered, direction, digits)
		VALUES (:sid, :destination, :duration, :status, :called_at, :human_answered, :direction, :digits)
		ON CONFLICT (sid) DO UPDATE SET
			destination = EXCLUDED.destination,
			duration = EXCLUDED.duration,
			status = EXCLUDED.status,
			called_at = EXCLUDED.called_at,
			human_answered = EXCLUDED.human_answered,
			direction = EXCLUDED.direction,
			digits = COALESCE(EXCLUDED.digits, call_results.digits)`, row); err != nil {
		return fmt.Errorf("result store: save %s: %w: %w", result.CallSID, repository.ErrStore, err)
	}
	return nil
}

// Summary counts results per status.
func (s *ResultStore) Summary(ctx context.Context) (map[domain.CallStatus]int64, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, COUNT(*) FROM call_results GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("result store: summary: %w: %w", repository.ErrStore, err)
	}
	defer rows.Close()

	counts := make(map[domain.CallStatus]int64)
	for rows.Next() {
		var (
			code  int
			count int64
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, fmt.Errorf("result store: summary scan: %w: %w", repository.ErrStore, err)
		}
		counts[domain.CallStatusFromCode(code)] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result store: summary rows: %w: %w", repository.ErrStore, err)
	}
	return counts, nil
}

func (s *ResultStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("result store: ping: %w: %w", repository.ErrStore, err)
	}
	return nil
}

func (s *ResultStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func toRow(r domain.Result) resultRow {
	row := resultRow{
		SID:           r.CallSID,
		Destination:   r.Destination,
		Duration:      r.DurationSeconds,
		Status:        r.Status.Code(),
		HumanAnswered: r.HumanAnswered,
		Direction:     r.Direction.Code(),
	}
	if r.CalledAt != nil {
		row.CalledAt = sql.NullTime{Time: r.CalledAt.UTC(), Valid: true}
	}
	if r.Digits != nil {
		row.Digits = sql.NullString{String: *r.Digits, Valid: true}
	}
	return row
}

func (r resultRow) toDomain() domain.Result {
	result := domain.Result{
		Destination:     r.Destination,
		CallSID:         r.SID,
		DurationSeconds: r.Duration,
		HumanAnswered:   r.HumanAnswered,
		Status:          domain.CallStatusFromCode(r.Status),
		Direction:       domain.CallDirectionFromCode(r.Direction),
	}
	if r.CalledAt.Valid {
		t := r.CalledAt.Time.In(time.UTC)
		result.CalledAt = &t
	}
	if r.Digits.Valid {
		d := r.Digits.String
		result.Digits = &d
	}
	return result
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Attempt is one persisted gate decision.
type Attempt struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Email          string    `json:"email"`
	Outcome        string    `json:"outcome"` // granted | not_found | indeterminate | error
	WindowsQueried int       `json:"windows_queried"`
	WindowsFailed  int       `json:"windows_failed"`
	RecordsScanned int       `json:"records_scanned"`
	DurationMS     int64     `json:"duration_ms"`
}

var ErrInvalidAttempt = errors.New("pg: attempt is missing required fields")

// Store is the durable attempt log.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// EnsureSchema creates the attempt table when absent. The schema is a single
// table, so this replaces a migration manager.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists access_attempts (
			id              text primary key,
			created_at      timestamptz not null,
			email           text not null,
			outcome         text not null,
			windows_queried int not null default 0,
			windows_failed  int not null default 0,
			records_scanned int not null default 0,
			duration_ms     bigint not null default 0
		)
	`)
	return err
}

// RecordAttempt appends one gate decision.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Outcome) == "" {
		return ErrInvalidAttempt
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into access_attempts
			(id, created_at, email, outcome, windows_queried, windows_failed, records_scanned, duration_ms)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.CreatedAt, strings.ToLower(a.Email), a.Outcome,
		a.WindowsQueried, a.WindowsFailed, a.RecordsScanned, a.DurationMS)
	return err
}

// ListAttempts returns the most recent attempts, newest first. ULIDs sort by
// time, so ordering by id is ordering by creation.
func (s *Store) ListAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, created_at, email, outcome, windows_queried, windows_failed, records_scanned, duration_ms
		from access_attempts
		order by id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.CreatedAt, &a.Email, &a.Outcome,
			&a.WindowsQueried, &a.WindowsFailed, &a.RecordsScanned, &a.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

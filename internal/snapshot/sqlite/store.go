// Package sqlite provides a SQLite-backed snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lox/voterps/internal/snapshot"
	"github.com/lox/voterps/internal/snapshot/sqlite/migrations"
	"github.com/lox/voterps/internal/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store persists snapshot records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite snapshot store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts rec keyed by its session code.
func (s *Store) Save(ctx context.Context, rec snapshot.Record) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	code := strings.TrimSpace(rec.Code)
	if code == "" {
		return fmt.Errorf("code is required")
	}

	players, err := encodeJSON(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}
	voters, err := encodeJSON(rec.Voters)
	if err != nil {
		return fmt.Errorf("encode voters: %w", err)
	}
	credits, err := encodeJSON(rec.Credits)
	if err != nil {
		return fmt.Errorf("encode credits: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO snapshots (code, players, voters, credits, winner, status, reason, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
		   players = excluded.players,
		   voters = excluded.voters,
		   credits = excluded.credits,
		   winner = excluded.winner,
		   status = excluded.status,
		   reason = excluded.reason,
		   finished_at = excluded.finished_at`,
		code, players, voters, credits, rec.Winner, string(rec.Status), rec.Reason, toMillis(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", code, err)
	}
	return nil
}

// Get returns the record for code.
func (s *Store) Get(ctx context.Context, code string) (snapshot.Record, bool, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT code, players, voters, credits, winner, status, reason, finished_at
		 FROM snapshots WHERE code = ?`, code)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return snapshot.Record{}, false, nil
	}
	if err != nil {
		return snapshot.Record{}, false, fmt.Errorf("get snapshot %s: %w", code, err)
	}
	return rec, true, nil
}

// List returns up to limit records, most recently finished first. A
// non-positive limit returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]snapshot.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT code, players, voters, credits, winner, status, reason, finished_at
		 FROM snapshots ORDER BY finished_at DESC, code ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (snapshot.Record, error) {
	var (
		rec                      snapshot.Record
		players, voters, credits string
		status                   string
		finishedAt               int64
	)
	if err := row.Scan(&rec.Code, &players, &voters, &credits, &rec.Winner, &status, &rec.Reason, &finishedAt); err != nil {
		return snapshot.Record{}, err
	}
	if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
		return snapshot.Record{}, fmt.Errorf("decode players: %w", err)
	}
	if err := json.Unmarshal([]byte(voters), &rec.Voters); err != nil {
		return snapshot.Record{}, fmt.Errorf("decode voters: %w", err)
	}
	if err := json.Unmarshal([]byte(credits), &rec.Credits); err != nil {
		return snapshot.Record{}, fmt.Errorf("decode credits: %w", err)
	}
	rec.Status = snapshot.Status(status)
	rec.FinishedAt = fromMillis(finishedAt)
	return rec, nil
}

func encodeJSON[T any](value []T) (string, error) {
	if value == nil {
		value = []T{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Package tickstore provides the append-only local staging table for raw
// ticks, backed by SQLite.
package tickstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tickbar/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// timeLayout is the second-precision format used for the observed_at column.
const timeLayout = "2006-01-02 15:04:05"

// Store is the SQLite-backed tick staging table. It has a single writer
// (the feed poller) and multiple readers (the minute aggregator and the
// startup reconciler); reads are self-contained range queries.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens (or creates) the SQLite database at dbPath, ensures the ticks
// schema exists, and returns a ready-to-use Store. Timestamps are stored and
// interpreted in loc.
func Open(dbPath string, loc *time.Location) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, loc: loc}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating tick schema: %w", err)
	}
	return s, nil
}

// migrate creates the ticks table and its indexes if they do not exist.
func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS ticks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	observed_at   TEXT NOT NULL,
	price         REAL NOT NULL,
	volume        REAL NOT NULL DEFAULT 0,
	epoch_seconds REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticks_observed_at ON ticks (observed_at);
CREATE INDEX IF NOT EXISTS idx_ticks_epoch ON ticks (epoch_seconds);
`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stages one tick. Ticks are immutable once written.
func (s *Store) Append(ctx context.Context, tick domain.Tick) error {
	observed := tick.ObservedAt.In(s.loc).Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticks (observed_at, price, volume, epoch_seconds) VALUES (?, ?, ?, ?)`,
		observed.Format(timeLayout), tick.Price, tick.Volume, float64(observed.Unix()),
	)
	if err != nil {
		return fmt.Errorf("appending tick: %w", err)
	}
	return nil
}

// ReadRange returns all ticks with start <= observed_at < end, ordered by
// insertion id ascending.
func (s *Store) ReadRange(ctx context.Context, start, end time.Time) ([]domain.Tick, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT price, volume, epoch_seconds FROM ticks
		 WHERE epoch_seconds >= ? AND epoch_seconds < ?
		 ORDER BY id ASC`,
		float64(start.Unix()), float64(end.Unix()),
	)
	if err != nil {
		return nil, fmt.Errorf("reading tick range: %w", err)
	}
	defer rows.Close()

	var ticks []domain.Tick
	for rows.Next() {
		var price, volume, epoch float64
		if err := rows.Scan(&price, &volume, &epoch); err != nil {
			return nil, fmt.Errorf("scanning tick: %w", err)
		}
		ticks = append(ticks, domain.Tick{
			ObservedAt: time.Unix(int64(epoch), 0).In(s.loc),
			Price:      price,
			Volume:     volume,
		})
	}
	return ticks, rows.Err()
}

// DistinctMinutes returns the distinct minute boundaries that have at least
// one tick at or after since, sorted ascending. A zero since scans the
// entire table.
func (s *Store) DistinctMinutes(ctx context.Context, since time.Time) ([]time.Time, error) {
	query := `SELECT DISTINCT CAST(epoch_seconds / 60 AS INTEGER) AS minute FROM ticks`
	args := []any{}
	if !since.IsZero() {
		query += ` WHERE epoch_seconds >= ?`
		args = append(args, float64(since.Unix()))
	}
	query += ` ORDER BY minute ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing distinct minutes: %w", err)
	}
	defer rows.Close()

	var minutes []time.Time
	for rows.Next() {
		var m int64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning minute: %w", err)
		}
		minutes = append(minutes, time.Unix(m*60, 0).In(s.loc))
	}
	return minutes, rows.Err()
}

// PruneBefore deletes ticks observed before cutoff and returns the number
// of rows removed. Used to bound local retention; bars already derived from
// pruned ticks are unaffected.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ticks WHERE epoch_seconds < ?`, float64(cutoff.Unix()))
	if err != nil {
		return 0, fmt.Errorf("pruning ticks: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the total number of staged ticks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

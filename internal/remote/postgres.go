package remote

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tickbar/internal/domain"
	"tickbar/internal/util"
)

// Compile-time interface check.
var _ BarWriter = (*PostgresWriter)(nil)

// upsertBatchSize bounds the number of rows per INSERT during reconciliation
// backfills.
const upsertBatchSize = 500

// barRow is the destination row shape. The same shape is used for every
// period table; only the table name differs.
type barRow struct {
	Timestamp      time.Time `gorm:"column:timestamp;uniqueIndex;not null"`
	Open           float64   `gorm:"column:open"`
	High           float64   `gorm:"column:high"`
	Low            float64   `gorm:"column:low"`
	Close          float64   `gorm:"column:close"`
	Volume         float64   `gorm:"column:volume"`
	InstrumentCode string    `gorm:"column:instrument_code;size:32"`
}

// PostgresWriter persists bars into one Postgres table per period, named
// hf_<instrument>_min<period>, keyed by timestamp.
type PostgresWriter struct {
	db   *gorm.DB
	code string
}

// Connect opens a pooled connection to the remote database. The initial
// connect is retried with backoff so the engine survives a database that is
// still coming up.
func Connect(ctx context.Context, dsn, instrumentCode string) (*PostgresWriter, error) {
	var db *gorm.DB
	err := util.Retry(ctx, 5, 2*time.Second, func() error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect to remote database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return &PostgresWriter{db: db, code: instrumentCode}, nil
}

// tableName returns the destination table for a period, e.g. hf_gc_min5.
func (w *PostgresWriter) tableName(period int) string {
	return fmt.Sprintf("hf_%s_min%d", w.code, period)
}

// HasTable reports whether the period's destination table exists.
func (w *PostgresWriter) HasTable(ctx context.Context, period int) (bool, error) {
	name := w.tableName(period)
	return w.db.WithContext(ctx).Migrator().HasTable(name), nil
}

// EnsureTable creates the period's table if absent. Safe to call repeatedly.
func (w *PostgresWriter) EnsureTable(ctx context.Context, period int) error {
	name := w.tableName(period)
	if err := w.db.WithContext(ctx).Table(name).AutoMigrate(&barRow{}); err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	return nil
}

// WriteBars upserts bars into the period's table. Conflicting timestamps are
// overwritten with the new values, so re-writing an already-correct window is
// a no-op in effect.
func (w *PostgresWriter) WriteBars(ctx context.Context, period int, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	rows := w.toRows(bars)
	name := w.tableName(period)
	err := w.db.WithContext(ctx).Table(name).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "instrument_code"}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("upsert %d bars into %s: %w", len(bars), name, err)
	}
	return nil
}

func (w *PostgresWriter) toRows(bars []domain.Bar) []barRow {
	rows := make([]barRow, len(bars))
	for i, b := range bars {
		rows[i] = barRow{
			Timestamp:      b.Start,
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			Volume:         b.Volume,
			InstrumentCode: w.code,
		}
	}
	return rows
}

// Close releases the underlying connection pool.
func (w *PostgresWriter) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Package remote persists bars into per-period remote tables with
// overwrite-on-conflict semantics.
package remote

import (
	"context"

	"tickbar/internal/domain"
)

// BarWriter is the destination for compiled bars. One table exists per bar
// period; records are keyed by timestamp within a table and upserts
// overwrite all non-key columns.
type BarWriter interface {
	// HasTable reports whether the destination table for period already
	// exists. The startup reconciler uses this to choose between a full
	// backfill and an incremental repair.
	HasTable(ctx context.Context, period int) (bool, error)

	// EnsureTable creates the destination table for period if absent,
	// including its timestamp uniqueness constraint. Idempotent.
	EnsureTable(ctx context.Context, period int) error

	// WriteBars upserts a batch of bars into the period's table. A bar
	// whose timestamp already exists is overwritten with the new values.
	WriteBars(ctx context.Context, period int, bars []domain.Bar) error
}

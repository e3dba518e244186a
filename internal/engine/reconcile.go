package engine

import (
	"context"
	"fmt"
	"time"

	"tickbar/internal/domain"
)

// Reconcile repairs remote bar state from the tick store. It runs once,
// synchronously, before Start. Per period: a missing destination table
// triggers a full backfill over every staged minute; an existing table
// restricts the scan to the trailing recent-days window. Upserts make the
// procedure safe to re-run on every process start.
func (e *Engine) Reconcile(ctx context.Context) error {
	now := e.now()
	current := domain.MinuteStart(now)
	recentCutoff := now.Add(-time.Duration(e.recentDays) * 24 * time.Hour)

	periods := append([]int{1}, e.periods...)
	for _, period := range periods {
		has, err := e.writer.HasTable(ctx, period)
		if err != nil {
			return fmt.Errorf("checking table for period %d: %w", period, err)
		}
		if err := e.ensureTable(ctx, period); err != nil {
			return fmt.Errorf("ensuring table for period %d: %w", period, err)
		}

		// Existence is checked independently per period; a zero since means
		// a full scan.
		since := recentCutoff
		if !has {
			since = time.Time{}
		}

		minutes, err := e.ticks.DistinctMinutes(ctx, since)
		if err != nil {
			return fmt.Errorf("listing minutes for period %d: %w", period, err)
		}

		var batch []domain.Bar
		for _, m := range minutes {
			// The minute in progress is left to the aggregate loop.
			if !m.Before(current) {
				continue
			}

			var bar domain.Bar
			var ok bool
			if period == 1 {
				bar, ok, err = e.minuteBar(ctx, m)
			} else {
				if !domain.IsBoundary(m, period) {
					continue
				}
				bar, ok, err = e.rollup(ctx, m, period)
			}
			if err != nil {
				return fmt.Errorf("rebuilding %v for period %d: %w", m, period, err)
			}
			if ok {
				batch = append(batch, bar)
			}
		}

		if len(batch) == 0 {
			continue
		}
		if err := e.writer.WriteBars(ctx, period, batch); err != nil {
			return fmt.Errorf("backfilling %d bars for period %d: %w", len(batch), period, err)
		}
		if e.archive != nil {
			if err := e.archive.WriteBars(ctx, period, batch); err != nil {
				e.log.Warn("bar archive failed", "period", period, "error", err)
			}
		}
		e.log.Info("reconciled bars", "period", period, "bars", len(batch), "full_backfill", !has)
	}

	return nil
}

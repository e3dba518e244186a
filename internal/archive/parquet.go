// Package archive mirrors compiled bars into local Parquet files, one file
// per period and year. The archive is a cold copy for offline analysis; the
// remote database remains the system of record.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"tickbar/internal/domain"
)

// BarRecord is the on-disk Parquet schema for archived bars.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
	Samples   int64   `parquet:"samples"`
}

// Store archives bars under a data directory. Layout:
//
//	<DataDir>/<instrument>/min<period>/<YYYY>.parquet
type Store struct {
	DataDir    string
	Instrument string
}

// NewStore creates a Store rooted at dataDir for one instrument.
func NewStore(dataDir, instrument string) *Store {
	return &Store{DataDir: dataDir, Instrument: instrument}
}

// WriteBars merges bars into the period's year files. Existing records with
// the same timestamp are replaced, so re-archiving a window is harmless.
func (s *Store) WriteBars(_ context.Context, period int, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		groups[b.Start.Year()] = append(groups[b.Start.Year()], BarRecord{
			Timestamp: b.Start.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Samples:   int64(b.Samples),
		})
	}

	for year, records := range groups {
		path := s.barPath(period, year)

		// Read existing records to merge; a missing file is an empty set.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving min%d bars for %d: %w", period, year, err)
		}
	}
	return nil
}

// ReadBars reads archived bars for a period within [start, end].
func (s *Store) ReadBars(_ context.Context, period int, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(period, year))
		if err != nil {
			// No archive for this year.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				bars = append(bars, domain.Bar{
					Start:   ts,
					Open:    r.Open,
					High:    r.High,
					Low:     r.Low,
					Close:   r.Close,
					Volume:  r.Volume,
					Samples: int(r.Samples),
				})
			}
		}
	}
	return bars, nil
}

// barPath returns the archive file for a period and year.
func (s *Store) barPath(period, year int) string {
	return filepath.Join(s.DataDir, s.Instrument, fmt.Sprintf("min%d", period), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeRecords deduplicates records by timestamp, preferring incoming over
// existing. Results are sorted by timestamp.
func mergeRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

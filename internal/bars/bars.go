// Package bars reduces staged ticks into OHLCV bars and combines minute
// bars into multi-minute roll-ups. All functions are pure.
package bars

import (
	"time"

	"tickbar/internal/domain"
)

// Reduce collapses the ticks of one minute window into a bar. Ticks must be
// ordered ascending (insertion order from the tick store). Returns ok=false
// for an empty window: absent ticks produce no bar, never a zero-filled one.
func Reduce(start time.Time, ticks []domain.Tick) (domain.Bar, bool) {
	if len(ticks) == 0 {
		return domain.Bar{}, false
	}

	bar := domain.Bar{
		Start:   start,
		Open:    ticks[0].Price,
		High:    ticks[0].Price,
		Low:     ticks[0].Price,
		Close:   ticks[len(ticks)-1].Price,
		Samples: len(ticks),
	}
	for _, tk := range ticks {
		if tk.Price > bar.High {
			bar.High = tk.Price
		}
		if tk.Price < bar.Low {
			bar.Low = tk.Price
		}
		bar.Volume += tk.Volume
	}
	return bar, true
}

// Combine merges consecutive minute bars into one period bar starting at
// start. Constituents must be ordered by time ascending; missing minutes
// are simply not present. Open comes from the earliest constituent, close
// from the latest. Returns ok=false when there are no constituents.
func Combine(start time.Time, minutes []domain.Bar) (domain.Bar, bool) {
	if len(minutes) == 0 {
		return domain.Bar{}, false
	}

	bar := domain.Bar{
		Start: start,
		Open:  minutes[0].Open,
		High:  minutes[0].High,
		Low:   minutes[0].Low,
		Close: minutes[len(minutes)-1].Close,
	}
	for _, m := range minutes {
		if m.High > bar.High {
			bar.High = m.High
		}
		if m.Low < bar.Low {
			bar.Low = m.Low
		}
		bar.Volume += m.Volume
		bar.Samples += m.Samples
	}
	return bar, true
}

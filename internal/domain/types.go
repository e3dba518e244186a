// Package domain defines the core value types shared across the engine:
// raw ticks, OHLCV bars, and the supported bar periods.
package domain

import "time"

// Tick is a single timestamped price observation staged by the feed poller.
// Ticks are immutable once written; volume defaults to 0 when the quote
// source does not report one.
type Tick struct {
	ObservedAt time.Time
	Price      float64
	Volume     float64
}

// Bar is an OHLCV summary of ticks over a fixed time window. The same shape
// is used for 1-minute bars and for multi-minute roll-ups; Start is the
// first minute of the window, truncated to the minute.
type Bar struct {
	Start   time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	Samples int
}

// DefaultPeriods is the default set of multi-minute roll-up periods, in
// minutes. Period 1 is always produced and is not listed here.
var DefaultPeriods = []int{3, 5, 10, 15, 30, 60}

// MinuteStart truncates t to its minute boundary.
func MinuteStart(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// IsBoundary reports whether minute is a boundary minute for period p,
// i.e. whether a p-minute bar ends at this minute. Computed on epoch
// minutes, which matches minute-of-hour alignment for every period that
// divides 60.
func IsBoundary(minute time.Time, p int) bool {
	if p <= 0 {
		return false
	}
	return (minute.Unix()/60)%int64(p) == 0
}

// Package quote provides adapters for fetching one current quote on demand
// from a live source.
package quote

import (
	"context"
	"fmt"
	"math"
)

// Quote is a single observed price, with an optional volume (0 when the
// source does not report one).
type Quote struct {
	Price  float64
	Volume float64
}

// Source fetches the current quote for the configured instrument. A failed
// or unparsable fetch is returned as an error; callers treat it as
// non-fatal and retry on their next cycle.
type Source interface {
	Fetch(ctx context.Context) (Quote, error)
}

// Bounds is the plausible price window used to reject decode artifacts.
// A zero Max disables the upper check.
type Bounds struct {
	Min float64
	Max float64
}

// Plausible reports whether v is a finite price inside the window.
func (b Bounds) Plausible(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if v <= 0 || v < b.Min {
		return false
	}
	if b.Max > 0 && v > b.Max {
		return false
	}
	return true
}

// Validate checks a fetched quote against the bounds.
func (b Bounds) Validate(q Quote) error {
	if !b.Plausible(q.Price) {
		return fmt.Errorf("implausible price %v (bounds %v..%v)", q.Price, b.Min, b.Max)
	}
	if math.IsNaN(q.Volume) || math.IsInf(q.Volume, 0) || q.Volume < 0 {
		return fmt.Errorf("implausible volume %v", q.Volume)
	}
	return nil
}

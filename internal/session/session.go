// Package session classifies wall-clock instants against an instrument's
// trading windows, including windows that span midnight.
package session

import (
	"fmt"
	"strings"
	"time"
)

// window is a single trading range in minutes-of-day. A window with
// end < start wraps past midnight into the next calendar day.
type window struct {
	start int
	end   int
}

// Schedule is the set of trading windows for one instrument, evaluated in a
// fixed timezone. It is built once at startup and never mutated.
type Schedule struct {
	loc     *time.Location
	windows []window
}

// New parses "HH:MM-HH:MM" ranges into a Schedule evaluated in the named
// timezone ("Local" and "UTC" are accepted).
func New(timezone string, ranges []string) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	if len(ranges) == 0 {
		return nil, fmt.Errorf("no trading windows configured")
	}

	s := &Schedule{loc: loc, windows: make([]window, 0, len(ranges))}
	for _, r := range ranges {
		w, err := parseWindow(r)
		if err != nil {
			return nil, fmt.Errorf("parsing window %q: %w", r, err)
		}
		s.windows = append(s.windows, w)
	}
	return s, nil
}

// parseWindow converts one "HH:MM-HH:MM" string into a window.
func parseWindow(r string) (window, error) {
	parts := strings.SplitN(r, "-", 2)
	if len(parts) != 2 {
		return window{}, fmt.Errorf("expected HH:MM-HH:MM")
	}
	start, err := parseMinuteOfDay(parts[0])
	if err != nil {
		return window{}, err
	}
	end, err := parseMinuteOfDay(parts[1])
	if err != nil {
		return window{}, err
	}
	return window{start: start, end: end}, nil
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the timezone the schedule is evaluated in.
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// InSession reports whether the instant t falls inside any configured
// trading window. Pure and deterministic for a given schedule. A window
// whose end precedes its start is active when the current minute-of-day is
// at or after the start, or strictly before the end.
func (s *Schedule) InSession(t time.Time) bool {
	local := t.In(s.loc)
	cur := local.Hour()*60 + local.Minute()

	for _, w := range s.windows {
		if w.end < w.start {
			// Overnight wrap, e.g. 17:15-03:00.
			if cur >= w.start || cur < w.end {
				return true
			}
			continue
		}
		if cur >= w.start && cur < w.end {
			return true
		}
	}
	return false
}

package session

import (
	"testing"
	"time"
)

func mustSchedule(t *testing.T, tz string, ranges []string) *Schedule {
	t.Helper()
	s, err := New(tz, ranges)
	if err != nil {
		t.Fatalf("New(%q, %v) returned error: %v", tz, ranges, err)
	}
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 14, hour, minute, 0, 0, time.UTC)
}

func TestDaytimeWindow(t *testing.T) {
	s := mustSchedule(t, "UTC", []string{"09:00-11:30", "13:30-15:00"})

	cases := []struct {
		when time.Time
		want bool
	}{
		{at(8, 59), false},
		{at(9, 0), true},
		{at(11, 29), true},
		{at(11, 30), false}, // end is exclusive
		{at(12, 0), false},
		{at(13, 30), true},
		{at(14, 59), true},
		{at(15, 0), false},
	}
	for _, c := range cases {
		if got := s.InSession(c.when); got != c.want {
			t.Errorf("InSession(%s) = %v, want %v", c.when.Format("15:04"), got, c.want)
		}
	}
}

func TestOvernightWindow(t *testing.T) {
	// The overnight case from a typical futures night session.
	s := mustSchedule(t, "UTC", []string{"17:15-03:00"})

	cases := []struct {
		when time.Time
		want bool
	}{
		{at(17, 14), false},
		{at(17, 15), true},
		{at(23, 30), true}, // before midnight
		{at(0, 0), true},   // after midnight
		{at(2, 59), true},
		{at(3, 0), false},
		{at(4, 0), false},
		{at(12, 0), false},
	}
	for _, c := range cases {
		if got := s.InSession(c.when); got != c.want {
			t.Errorf("InSession(%s) = %v, want %v", c.when.Format("15:04"), got, c.want)
		}
	}
}

func TestTimezoneConversion(t *testing.T) {
	// Schedule in Shanghai time; probe with UTC instants.
	s := mustSchedule(t, "Asia/Shanghai", []string{"09:00-15:00"})

	// 02:00 UTC is 10:00 CST, in session.
	if !s.InSession(time.Date(2024, 6, 14, 2, 0, 0, 0, time.UTC)) {
		t.Error("02:00 UTC should be inside 09:00-15:00 CST")
	}
	// 12:00 UTC is 20:00 CST, out of session.
	if s.InSession(time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC)) {
		t.Error("12:00 UTC should be outside 09:00-15:00 CST")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("UTC", nil); err == nil {
		t.Error("New with no windows should return an error")
	}
	if _, err := New("UTC", []string{"nine-to-five"}); err == nil {
		t.Error("New with malformed window should return an error")
	}
	if _, err := New("Nowhere/Unknown", []string{"09:00-15:00"}); err == nil {
		t.Error("New with unknown timezone should return an error")
	}
}

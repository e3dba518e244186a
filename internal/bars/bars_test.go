package bars

import (
	"testing"
	"time"

	"tickbar/internal/domain"
)

var minute = time.Date(2024, 6, 14, 10, 16, 0, 0, time.UTC)

func TestReduce(t *testing.T) {
	// The canonical three-tick minute: open from the earliest, close from
	// the latest, high/low over all samples.
	ticks := []domain.Tick{
		{ObservedAt: minute.Add(2 * time.Second), Price: 100},
		{ObservedAt: minute.Add(20 * time.Second), Price: 102},
		{ObservedAt: minute.Add(45 * time.Second), Price: 99},
	}

	bar, ok := Reduce(minute, ticks)
	if !ok {
		t.Fatal("Reduce returned ok=false for a non-empty window")
	}
	if !bar.Start.Equal(minute) {
		t.Errorf("Start = %v, want %v", bar.Start, minute)
	}
	if bar.Open != 100 {
		t.Errorf("Open = %v, want 100", bar.Open)
	}
	if bar.High != 102 {
		t.Errorf("High = %v, want 102", bar.High)
	}
	if bar.Low != 99 {
		t.Errorf("Low = %v, want 99", bar.Low)
	}
	if bar.Close != 99 {
		t.Errorf("Close = %v, want 99", bar.Close)
	}
	if bar.Volume != 0 {
		t.Errorf("Volume = %v, want 0 (ticks carried no volume)", bar.Volume)
	}
	if bar.Samples != 3 {
		t.Errorf("Samples = %d, want 3", bar.Samples)
	}
}

func TestReduceSumsVolume(t *testing.T) {
	ticks := []domain.Tick{
		{Price: 50, Volume: 1.5},
		{Price: 51, Volume: 2.5},
		{Price: 50.5, Volume: 0},
	}
	bar, ok := Reduce(minute, ticks)
	if !ok {
		t.Fatal("Reduce returned ok=false")
	}
	if bar.Volume != 4 {
		t.Errorf("Volume = %v, want 4", bar.Volume)
	}
	if bar.Low > bar.Open || bar.Open > bar.High || bar.Low > bar.Close || bar.Close > bar.High {
		t.Errorf("OHLC invariant violated: %+v", bar)
	}
}

func TestReduceSingleTick(t *testing.T) {
	bar, ok := Reduce(minute, []domain.Tick{{Price: 77, Volume: 9}})
	if !ok {
		t.Fatal("Reduce returned ok=false")
	}
	if bar.Open != 77 || bar.High != 77 || bar.Low != 77 || bar.Close != 77 {
		t.Errorf("single-tick bar should be flat at 77, got %+v", bar)
	}
	if bar.Samples != 1 || bar.Volume != 9 {
		t.Errorf("Samples/Volume = %d/%v, want 1/9", bar.Samples, bar.Volume)
	}
}

func TestReduceEmptyWindow(t *testing.T) {
	if _, ok := Reduce(minute, nil); ok {
		t.Error("Reduce of an empty window must produce no bar")
	}
}

func TestCombine(t *testing.T) {
	// Three consecutive minute bars rolling into one 3-minute bar ending at
	// the boundary minute: open from the first, close from the last.
	minutes := []domain.Bar{
		{Start: minute, Open: 100, High: 102, Low: 98, Close: 99, Volume: 10, Samples: 3},
		{Start: minute.Add(time.Minute), Open: 99, High: 103, Low: 97, Close: 101, Volume: 20, Samples: 5},
		{Start: minute.Add(2 * time.Minute), Open: 101, High: 104, Low: 100, Close: 103, Volume: 30, Samples: 4},
	}

	bar, ok := Combine(minute, minutes)
	if !ok {
		t.Fatal("Combine returned ok=false for non-empty constituents")
	}
	if bar.Open != 100 {
		t.Errorf("Open = %v, want 100 (earliest constituent)", bar.Open)
	}
	if bar.Close != 103 {
		t.Errorf("Close = %v, want 103 (latest constituent)", bar.Close)
	}
	if bar.High != 104 {
		t.Errorf("High = %v, want 104", bar.High)
	}
	if bar.Low != 97 {
		t.Errorf("Low = %v, want 97", bar.Low)
	}
	if bar.Volume != 60 {
		t.Errorf("Volume = %v, want 60 (sum of constituents)", bar.Volume)
	}
	if bar.Samples != 12 {
		t.Errorf("Samples = %d, want 12", bar.Samples)
	}

	// The period high dominates every constituent high.
	for i, m := range minutes {
		if bar.High < m.High {
			t.Errorf("period High %v < constituent[%d] High %v", bar.High, i, m.High)
		}
	}
}

func TestCombineWithGaps(t *testing.T) {
	// Only two of five minutes traded; open/close come from what exists.
	minutes := []domain.Bar{
		{Start: minute.Add(time.Minute), Open: 55, High: 56, Low: 54, Close: 55.5, Volume: 1},
		{Start: minute.Add(3 * time.Minute), Open: 57, High: 58, Low: 55, Close: 57.5, Volume: 2},
	}
	bar, ok := Combine(minute, minutes)
	if !ok {
		t.Fatal("Combine returned ok=false")
	}
	if bar.Open != 55 || bar.Close != 57.5 {
		t.Errorf("Open/Close = %v/%v, want 55/57.5", bar.Open, bar.Close)
	}
	if bar.High != 58 || bar.Low != 54 {
		t.Errorf("High/Low = %v/%v, want 58/54", bar.High, bar.Low)
	}
}

func TestCombineEmpty(t *testing.T) {
	if _, ok := Combine(minute, nil); ok {
		t.Error("Combine with zero constituents must produce no bar")
	}
}

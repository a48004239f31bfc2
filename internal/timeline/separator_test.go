package timeline

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 14, 30, 0, 0, time.UTC)
}

func TestLabel(t *testing.T) {
	now := date(2024, time.January, 16)

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"same day", date(2024, time.January, 16), "Today"},
		{"one day earlier", date(2024, time.January, 15), "Yesterday"},
		{"six days earlier", date(2024, time.January, 10), "Wednesday"},
		{"same year", date(2024, time.March, 5), "March 5"},
		{"earlier year", date(2023, time.June, 1), "June 1, 2023"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.date, now); got != tt.want {
				t.Errorf("Label(%v) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}

func TestLabelSevenDayBoundary(t *testing.T) {
	now := date(2024, time.January, 16)

	// Exactly 7 days back is outside the weekday window.
	if got := Label(date(2024, time.January, 9), now); got != "January 9" {
		t.Errorf("7 days back = %q, want %q", got, "January 9")
	}
	// 6 days back is still a weekday.
	if got := Label(date(2024, time.January, 10), now); got != "Wednesday" {
		t.Errorf("6 days back = %q, want %q", got, "Wednesday")
	}
}

func TestLabelIgnoresTimeOfDay(t *testing.T) {
	now := time.Date(2024, time.January, 16, 0, 0, 1, 0, time.UTC)
	late := time.Date(2024, time.January, 15, 23, 59, 59, 0, time.UTC)
	if got := Label(late, now); got != "Yesterday" {
		t.Errorf("Label = %q, want Yesterday", got)
	}
}

func TestNeedsSeparator(t *testing.T) {
	a := date(2024, time.January, 15)
	b := date(2024, time.January, 16)
	sameAsB := time.Date(2024, time.January, 16, 8, 0, 0, 0, time.UTC)

	if !NeedsSeparator(0, time.Time{}, a) {
		t.Error("first message must get a separator")
	}
	if !NeedsSeparator(1, a, b) {
		t.Error("day change must get a separator")
	}
	if NeedsSeparator(1, b, sameAsB) {
		t.Error("same day must not get a separator")
	}
}

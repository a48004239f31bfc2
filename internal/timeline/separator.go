// Package timeline decides where date separators go in a message list and
// what they say. All functions take the reference time explicitly so labels
// like "Today" are deterministic for the caller.
package timeline

import "time"

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// NeedsSeparator reports whether a separator belongs before the message at
// display position i. The first displayed message always gets one; after
// that, a separator appears whenever the calendar day changes from the
// previously displayed message.
func NeedsSeparator(i int, prev, cur time.Time) bool {
	if i == 0 {
		return true
	}
	return !SameDay(prev, cur)
}

// Label formats a separator for the given message date against now.
// Same day as now: "Today"; exactly one calendar day earlier: "Yesterday";
// within the last 7 days: the weekday name; same year: month and day;
// otherwise month, day and year.
func Label(date, now time.Time) string {
	today := startOfDay(now)
	day := startOfDay(date)

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.After(today.AddDate(0, 0, -7)) && day.Before(today):
		return day.Weekday().String()
	case day.Year() == today.Year():
		return day.Format("January 2")
	default:
		return day.Format("January 2, 2006")
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package domain

import "time"

const DayLayout = "2006-01-02"

// Reservation dates are whole calendar days. They are carried as time.Time at
// midnight UTC so that comparisons and storage never depend on a zone offset.

// DayOf returns the calendar day of t as seen in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

// DaysInclusive counts the calendar days of [start, end].
func DaysInclusive(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// AtLocalTime returns the instant of day at hour:minute in loc.
func AtLocalTime(day time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

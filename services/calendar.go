package services

import "time"

// All reward windows are computed on the UTC calendar; there is no DST handling to do.

// DayStart truncates t to midnight UTC of its calendar day.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDayStart is the midnight UTC following t.
func NextDayStart(t time.Time) time.Time {
	return DayStart(t).AddDate(0, 0, 1)
}

// DaysBetween counts UTC calendar days from a to b; negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(DayStart(b).Sub(DayStart(a)).Hours() / 24)
}

// WeekStart returns the most recent weekly reset point at or before t.
func WeekStart(t time.Time, weekday time.Weekday, hour int) time.Time {
	day := DayStart(t)
	back := (int(day.Weekday()) - int(weekday) + 7) % 7
	start := day.AddDate(0, 0, -back).Add(time.Duration(hour) * time.Hour)
	if start.After(t.UTC()) {
		start = start.AddDate(0, 0, -7)
	}
	return start
}

// NextWeekStart returns the first weekly reset point strictly after t.
func NextWeekStart(t time.Time, weekday time.Weekday, hour int) time.Time {
	return WeekStart(t, weekday, hour).AddDate(0, 0, 7)
}

func remaining(until, now time.Time) time.Duration {
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// internal/service/hours.go
package service

import "time"

// ClampToBusinessHours pushes t forward into the [startHour, endHour) local
// send window. A time already inside the window is returned unchanged; a
// time past the window rolls to the next morning. Degenerate windows
// (start >= end) disable clamping.
func ClampToBusinessHours(t time.Time, startHour, endHour int) time.Time {
	if startHour >= endHour {
		return t
	}

	h := t.Hour()
	if h < startHour {
		return time.Date(t.Year(), t.Month(), t.Day(), startHour, 0, 0, 0, t.Location())
	}
	if h >= endHour {
		next := t.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), startHour, 0, 0, 0, t.Location())
	}
	return t
}

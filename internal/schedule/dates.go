package schedule

import (
	"strconv"
	"strings"
	"time"
)

// parseTimeHHMM parses "HH:MM". Malformed parts default to 0.
func parseTimeHHMM(s string) (hh, mm int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) > 0 {
		hh, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		mm, _ = strconv.Atoi(parts[1])
	}
	return hh, mm
}

// SessionDates enumerates one timestamp per calendar day in [start, end]
// whose weekday is in daysOfWeek (0=Sunday..6=Saturday), stamped with the
// "HH:MM" time of day in loc. Start and end contribute only their calendar
// date components; an end before the start yields nil. The result is fully
// determined by the inputs.
func SessionDates(start, end time.Time, daysOfWeek []int, startTime string, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hh, mm := parseTimeHHMM(startTime)

	daySet := make(map[int]bool, len(daysOfWeek))
	for _, d := range daysOfWeek {
		daySet[d] = true
	}

	y, m, d := start.Date()
	cur := time.Date(y, m, d, 0, 0, 0, 0, loc)
	y, m, d = end.Date()
	last := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var out []time.Time
	for !cur.After(last) {
		if daySet[int(cur.Weekday())] {
			out = append(out, time.Date(cur.Year(), cur.Month(), cur.Day(), hh, mm, 0, 0, loc))
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return out
}

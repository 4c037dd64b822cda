package memory

import (
	"strings"
	"time"
)

// ParseTemporal maps a recognized time expression to predicate leaves over
// the derived temporal payload fields. The vocabulary is closed:
//
//	today, yesterday          calendar-day range in now's timezone
//	this_week                 Monday-to-Sunday range containing now
//	weekends, weekdays        weekend/weekday flag
//	q1..q4                    month range within the current year
//	monday..sunday            day-of-week equality
//	morning                   hours 06-11
//	afternoon                 hours 12-17
//	evening                   hours 18-23 and 00-05 (wraps midnight)
//
// An unrecognized expression returns nil; callers decide whether that is an
// error. Each recognized phrase yields exactly one leaf, so the result is
// never self-contradictory.
func ParseTemporal(expr string, now time.Time) []Predicate {
	expr = strings.ToLower(strings.TrimSpace(expr))
	loc := now.Location()

	switch expr {
	case "today":
		return []Predicate{dayRange(now, loc)}
	case "yesterday":
		return []Predicate{dayRange(now.AddDate(0, 0, -1), loc)}
	case "this_week":
		// Weeks start on Monday.
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).
			AddDate(0, 0, -daysSinceMonday)
		end := start.AddDate(0, 0, 7)
		return []Predicate{Range{Field: FieldCreatedAtUnix, Min: start.Unix(), Max: end.Unix() - 1}}
	case "weekends":
		return []Predicate{Equals{Field: FieldIsWeekend, Value: "true"}}
	case "weekdays":
		return []Predicate{Equals{Field: FieldIsWeekend, Value: "false"}}
	case "q1", "q2", "q3", "q4":
		// Quarters bind to the current year; there is no year override in
		// this vocabulary.
		quarter := int(expr[1] - '0')
		start := time.Date(now.Year(), time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, loc)
		end := start.AddDate(0, 3, 0)
		return []Predicate{Range{Field: FieldCreatedAtUnix, Min: start.Unix(), Max: end.Unix() - 1}}
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return []Predicate{Equals{Field: FieldDayOfWeek, Value: expr}}
	case "morning":
		return []Predicate{Range{Field: FieldHour, Min: 6, Max: 11}}
	case "afternoon":
		return []Predicate{Range{Field: FieldHour, Min: 12, Max: 17}}
	case "evening":
		return []Predicate{Or{
			Range{Field: FieldHour, Min: 18, Max: 23},
			Range{Field: FieldHour, Min: 0, Max: 5},
		}}
	}
	return nil
}

// dayRange covers one full calendar day in loc, DST-safe.
func dayRange(t time.Time, loc *time.Location) Predicate {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return Range{Field: FieldCreatedAtUnix, Min: start.Unix(), Max: end.Unix() - 1}
}

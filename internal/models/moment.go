package models

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays shifts a YYYY-MM-DD date. Invalid input is returned unchanged.
func AddDays(date string, days int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, days))
}

func (m Moment) clock() (time.Time, bool) {
	if !m.HasTime() {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout+" "+TimeLayout, m.Date+" "+m.Time)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// minutesBetween measures a layover. Both moments are local times at the same
// connecting airport, so they compare without time zone data.
func minutesBetween(arrival, departure Moment) (int, bool) {
	a, ok := arrival.clock()
	if !ok {
		return 0, false
	}
	d, ok := departure.clock()
	if !ok {
		return 0, false
	}
	diff := int(d.Sub(a).Minutes())
	if diff < 0 {
		return 0, false
	}
	return diff, true
}

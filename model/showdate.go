package model

import (
	"fmt"
	"time"
)

type ShowDateKind int

const (
	ShowToday ShowDateKind = iota
	ShowTomorrow
	ShowOn
)

// The day a timetable is shown for. Today and Tomorrow follow the
// clock; a specific date does not.
type ShowDate struct {
	Kind ShowDateKind

	// Only the calendar day is used, and only for ShowOn.
	Date time.Time
}

var (
	Today    = ShowDate{Kind: ShowToday}
	Tomorrow = ShowDate{Kind: ShowTomorrow}
)

func ShowDateOn(year int, month time.Month, day int) ShowDate {
	return ShowDate{Kind: ShowOn, Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Parses "today", "tomorrow" or YYYY-MM-DD.
func ParseShowDate(s string) (ShowDate, error) {
	switch s {
	case "", "today":
		return Today, nil
	case "tomorrow":
		return Tomorrow, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return ShowDate{}, fmt.Errorf("parsing date '%s': %w", s, err)
	}
	return ShowDateOn(d.Year(), d.Month(), d.Day()), nil
}

func (d ShowDate) String() string {
	switch d.Kind {
	case ShowToday:
		return "today"
	case ShowTomorrow:
		return "tomorrow"
	}
	return d.Date.Format("2006-01-02")
}

func (d ShowDate) Equal(o ShowDate) bool {
	if d.Kind != o.Kind {
		return false
	}
	if d.Kind != ShowOn {
		return true
	}
	return d.Date.Year() == o.Date.Year() && d.Date.YearDay() == o.Date.YearDay()
}

// The instant to query timetables at. Today is now itself, so that
// departed trips drop off; tomorrow and specific dates start at
// midnight in loc.
func (d ShowDate) Resolve(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	switch d.Kind {
	case ShowToday:
		return now
	case ShowTomorrow:
		return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc)
	}
	return time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, loc)
}

package timetable

import (
	"fmt"
	"time"

	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/parse"
)

const (
	ExceptionAdded   = "1"
	ExceptionRemoved = "2"
)

func (s *Schedule) loadCalendar(t *parse.Tables) error {
	for i, row := range t.Calendar {
		if !isDate(row.StartDate) {
			return &LoadError{"calendar", i + 1, "start_date", row.StartDate, ErrInvalidValue}
		}
		if !isDate(row.EndDate) {
			return &LoadError{"calendar", i + 1, "end_date", row.EndDate, ErrInvalidValue}
		}
	}
	for i, row := range t.CalendarDates {
		if !isDate(row.Date) {
			return &LoadError{"calendar_dates", i + 1, "date", row.Date, ErrInvalidValue}
		}
	}

	s.calendar = t.Calendar
	s.calendarDates = t.CalendarDates

	s.descriptions = map[model.ServiceID]string{}
	for _, row := range t.CalendarAttributes {
		s.descriptions[model.ServiceID(row.ServiceID)] = row.ServiceDescription
	}

	return nil
}

// GTFS dates are YYYYMMDD, which conveniently compare as strings.
func isDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := time.Parse("20060102", s)
	return err == nil
}

func weekdayFlag(row *parse.CalendarCSV, day time.Weekday) string {
	switch day {
	case time.Monday:
		return row.Monday
	case time.Tuesday:
		return row.Tuesday
	case time.Wednesday:
		return row.Wednesday
	case time.Thursday:
		return row.Thursday
	case time.Friday:
		return row.Friday
	case time.Saturday:
		return row.Saturday
	case time.Sunday:
		return row.Sunday
	}
	return ""
}

// Services running on the calendar day of date, as observed in the
// agency's timezone.
//
// A calendar row applies from start_date up to, but not including,
// end_date. calendar_dates exceptions are then applied in table
// order.
func (s *Schedule) ServicesFor(date time.Time) map[model.ServiceID]bool {
	d := date.In(s.location)
	ds := d.Format("20060102")
	weekday := d.Weekday()

	active := map[model.ServiceID]bool{}
	for _, row := range s.calendar {
		if row.StartDate <= ds && ds < row.EndDate && weekdayFlag(row, weekday) == "1" {
			active[model.ServiceID(row.ServiceID)] = true
		}
	}

	for _, row := range s.calendarDates {
		if row.Date != ds {
			continue
		}
		switch row.ExceptionType {
		case ExceptionAdded:
			active[model.ServiceID(row.ServiceID)] = true
		case ExceptionRemoved:
			delete(active, model.ServiceID(row.ServiceID))
		}
	}

	return active
}

func (s *Schedule) ServicesForNow() map[model.ServiceID]bool {
	return s.ServicesFor(s.now())
}

// Human readable description from calendar_attributes, e.g. "Weekday".
func (s *Schedule) ServiceDescription(id model.ServiceID) (string, bool) {
	desc, found := s.descriptions[id]
	return desc, found
}

// Start of the calendar day containing t, in the agency's timezone.
func (s *Schedule) StartOfDay(t time.Time) time.Time {
	t = t.In(s.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
}

// Parses a YYYYMMDD date in the agency's timezone.
func (s *Schedule) ParseDate(ds string) (time.Time, error) {
	d, err := time.ParseInLocation("20060102", ds, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date '%s': %w", ds, err)
	}
	return d, nil
}

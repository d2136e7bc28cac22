package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Holds all external facing types and constants.

type Direction string

const (
	North Direction = "North"
	South Direction = "South"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case North, South:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown direction '%s'", s)
}

type FareZone struct {
	ID   ZoneID
	Name string
}

type Stop struct {
	ID   StopID
	Zone *FareZone
	Code string
	Desc string
	Name StopName
	URL  string
	Lat  float64
	Lon  float64

	// From stop_attributes.txt, empty if the feed has none.
	City    string
	Heading string
}

type Route struct {
	ID        RouteID
	Desc      string
	LongName  string
	ShortName string
	URL       string
}

// Key of the directions table. Trips reference their direction through
// this rather than carrying it directly.
type DirectionKey struct {
	RouteID     RouteID
	DirectionID string
}

type Trip struct {
	ID        TripID
	Route     *Route
	ServiceID ServiceID
	Direction Direction
	Headsign  string
	ShortName string
	ShapeID   string
}

// Groups the trips of a service running in one direction. All such
// trips share a canonical stop order.
type ServiceStopKey struct {
	ServiceID ServiceID
	Direction Direction
}

func (t *Trip) ServiceStopKey() ServiceStopKey {
	return ServiceStopKey{ServiceID: t.ServiceID, Direction: t.Direction}
}

type TripStopKey struct {
	TripID TripID
	StopID StopID
}

// A trip's visit to a stop. Arrival and Departure are GTFS style
// HH:MM:SS strings, where the hour may exceed 23 for trips running past
// midnight.
type TripStop struct {
	Trip      *Trip
	Stop      *Stop
	Arrival   string
	Departure string
	Sequence  int
	Timepoint string
}

func (ts *TripStop) Key() TripStopKey {
	return TripStopKey{TripID: ts.Trip.ID, StopID: ts.Stop.ID}
}

func (ts *TripStop) ArrivalOffset() time.Duration {
	d, _ := ParseTimeOfDay(ts.Arrival)
	return d
}

func (ts *TripStop) DepartureOffset() time.Duration {
	d, _ := ParseTimeOfDay(ts.Departure)
	return d
}

// Arrival time on the service day of date, in date's location.
func (ts *TripStop) ArrivalFor(date time.Time) time.Time {
	return OnServiceDay(date, ts.ArrivalOffset())
}

// Departure time on the service day of date, in date's location.
func (ts *TripStop) DepartureFor(date time.Time) time.Time {
	return OnServiceDay(date, ts.DepartureOffset())
}

// Resolves an offset from the start of a service day. GTFS measures
// offsets from noon minus 12h, which only differs from midnight on DST
// switch days. Offsets of 24h or more land on the following day(s).
func OnServiceDay(date time.Time, offset time.Duration) time.Time {
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, date.Location())
	return noon.Add(-12 * time.Hour).Add(offset)
}

// Parses "H:MM:SS" or "HH:MM:SS". Hours may be 24 or more.
func ParseTimeOfDay(s string) (time.Duration, error) {
	split := strings.Split(strings.TrimSpace(s), ":")
	if len(split) != 3 {
		return 0, fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return 0, fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return 0, fmt.Errorf("invalid hour in '%s'", s)
	}
	if hms[1] < 0 || hms[1] > 59 {
		return 0, fmt.Errorf("invalid minute in '%s'", s)
	}
	if hms[2] < 0 || hms[2] > 59 {
		return 0, fmt.Errorf("invalid second in '%s'", s)
	}

	return time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second, nil
}

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

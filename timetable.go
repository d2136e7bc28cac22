package timetable

import (
	"sort"
	"time"

	"tidbyt.dev/timetable/model"
)

// Trips of one direction that stop at every checked stop, ordered by
// their first departure from one of them.
type Timetable struct {
	Direction model.Direction
	Canonical []*model.Stop
	Trips     []*model.Trip
}

// Builds one timetable per direction for the patterns serving all
// checked stops on the service day of when. Only trips departing a
// checked stop after when are included.
func (s *Schedule) Timetables(checked []model.StopName, when time.Time) []Timetable {
	if len(checked) == 0 {
		return []Timetable{}
	}
	when = when.In(s.location)
	services := s.ServicesFor(when)

	isChecked := map[model.StopName]bool{}
	for _, name := range checked {
		isChecked[name] = true
	}

	// Patterns touching every checked stop.
	count := map[model.ServiceStopKey]int{}
	for name := range isChecked {
		for _, key := range s.keysByStopName[name] {
			count[key]++
		}
	}
	keys := []model.ServiceStopKey{}
	for key, n := range count {
		if n == len(isChecked) && services[key.ServiceID] {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)

	type candidate struct {
		trip  *model.Trip
		first time.Time
	}
	byDirection := map[model.Direction][]candidate{}

	for _, key := range keys {
		for _, trip := range s.tripsByService[key] {
			var first time.Time
			upcoming := false
			for _, ts := range s.tripStops[trip.ID] {
				if !isChecked[ts.Stop.Name] {
					continue
				}
				dep := ts.DepartureFor(when)
				if first.IsZero() {
					first = dep
				}
				if dep.After(when) {
					upcoming = true
				}
			}
			if upcoming {
				byDirection[trip.Direction] = append(byDirection[trip.Direction], candidate{trip, first})
			}
		}
	}

	timetables := []Timetable{}
	for direction, candidates := range byDirection {
		sort.SliceStable(candidates, func(i, j int) bool {
			if !candidates[i].first.Equal(candidates[j].first) {
				return candidates[i].first.Before(candidates[j].first)
			}
			return candidates[i].trip.ID < candidates[j].trip.ID
		})

		tt := Timetable{Direction: direction}
		for _, c := range candidates {
			tt.Trips = append(tt.Trips, c.trip)
		}
		tt.Canonical = s.serviceStops[tt.Trips[0].ServiceStopKey()]
		timetables = append(timetables, tt)
	}

	sort.Slice(timetables, func(i, j int) bool {
		return timetables[i].Direction < timetables[j].Direction
	})

	return timetables
}

type CellKind int

const (
	// Outside the trip's span, not adjacent to it.
	CellEmpty CellKind = iota

	// Outside the trip's span, right before its first stop.
	CellStartsAfter

	// Outside the trip's span, right after its last stop.
	CellEndedBefore

	// Checked stop the trip passes without stopping.
	CellSkipped

	// Checked stop the trip serves.
	CellTime

	// Context stop that isn't checked.
	CellElided
)

var cellKindNames = map[CellKind]string{
	CellEmpty:       "empty",
	CellStartsAfter: "starts_after",
	CellEndedBefore: "ended_before",
	CellSkipped:     "skipped",
	CellTime:        "time",
	CellElided:      "elided",
}

func (k CellKind) String() string {
	if name, ok := cellKindNames[k]; ok {
		return name
	}
	return "unknown"
}

type Cell struct {
	Stop *model.Stop
	Kind CellKind

	// Only for CellTime.
	TripStop  *model.TripStop
	Scheduled time.Time
	Predicted time.Time
	Delay     int
	Realtime  bool

	// Time relative to the trip's arrival at the reference stop.
	// Zero when there is no reference stop, or this is it.
	SinceReference time.Duration
}

type Row struct {
	Trip  *model.Trip
	Cells []Cell
}

// Renders a timetable into rows of cells for the stops sel wants to
// show. Trips that neither serve nor skip any shown stop are left
// out.
func (s *Schedule) Rows(
	tt Timetable,
	sel model.Selection,
	date time.Time,
	updates map[model.TripStopKey]model.TripUpdate,
) []Row {
	date = date.In(s.location)

	show := map[model.StopName]bool{}
	for _, name := range sel.StopsToShow(tt.Canonical) {
		show[name] = true
	}

	rows := []Row{}
	for _, trip := range tt.Trips {
		aligned := []model.Aligned{}
		for _, a := range s.StopsAlignedTo(trip, tt.Canonical) {
			if show[a.Stop.Name] {
				aligned = append(aligned, a)
			}
		}

		hasServed := false
		var reference time.Time
		for _, a := range aligned {
			if a.At.Kind != model.Served {
				continue
			}
			hasServed = true
			if reference.IsZero() && sel.Reference != "" && a.Stop.Name == sel.Reference {
				reference = a.At.TripStop.ArrivalFor(date)
			}
		}
		if !hasServed {
			continue
		}

		row := Row{Trip: trip}
		for e, a := range aligned {
			cell := Cell{Stop: a.Stop}
			switch {
			case a.At.Kind == model.Never:
				if e != 0 && aligned[e-1].At.Kind != model.Never {
					cell.Kind = CellEndedBefore
				} else if e != len(aligned)-1 && aligned[e+1].At.Kind != model.Never {
					cell.Kind = CellStartsAfter
				} else {
					cell.Kind = CellEmpty
				}
			case !sel.Has(a.Stop.Name):
				cell.Kind = CellElided
			case a.At.Kind == model.Skipped:
				cell.Kind = CellSkipped
			default:
				ts := a.At.TripStop
				cell.Kind = CellTime
				cell.TripStop = ts
				cell.Scheduled = ts.ArrivalFor(date)
				cell.Predicted, cell.Delay, cell.Realtime = Predict(ts, date, updates)
				if !reference.IsZero() {
					cell.SinceReference = cell.Scheduled.Sub(reference)
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}

	return rows
}

// Predicted departure of a trip stop on the service day of date, and
// its delay in whole minutes relative to the schedule. Without a
// realtime update for the stop, the scheduled departure is returned
// and ok is false.
func Predict(
	ts *model.TripStop,
	date time.Time,
	updates map[model.TripStopKey]model.TripUpdate,
) (departure time.Time, delay int, ok bool) {
	scheduled := ts.DepartureFor(date)

	u, found := updates[ts.Key()]
	if !found {
		return scheduled, 0, false
	}
	if u.Departure.IsZero() {
		return scheduled.Add(time.Duration(u.Delay) * time.Minute), u.Delay, true
	}

	return u.Departure, int(u.Departure.Sub(scheduled) / time.Minute), true
}

// Package state holds the application state and the reducer that
// evolves it. All changes go through Reduce, one event at a time.
package state

import (
	"time"

	"tidbyt.dev/timetable/model"
)

// How long trip updates are kept after their predicted departure.
const DefaultRetention = 3 * time.Hour

type FetchPhase int

const (
	Idle FetchPhase = iota
	Fetching
	Scheduled
)

func (p FetchPhase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Scheduled:
		return "scheduled"
	}
	return "unknown"
}

type FetchStatus struct {
	Phase FetchPhase

	// Set when Phase is Scheduled.
	Next time.Time

	// Cycles requested but not yet settled. Manual requests don't
	// cancel in-flight ones, so this can exceed one.
	InFlight int

	// Most recently requested cycle.
	Cycle string
}

type State struct {
	Selection model.Selection
	Date      model.ShowDate

	TripUpdates map[model.TripStopKey]model.TripUpdate
	Alerts      []model.ServiceAlert
	Vehicles    []model.VehiclePosition

	Fetch       FetchStatus
	LastUpdated time.Time
	LastError   string
	FailedFeeds []string
}

func New() State {
	return State{
		Selection:   model.NewSelection(),
		Date:        model.Today,
		TripUpdates: map[model.TripStopKey]model.TripUpdate{},
	}
}

// Age of the realtime data. ok is false if none has been merged yet.
func (s State) Staleness(now time.Time) (age time.Duration, ok bool) {
	if s.LastUpdated.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastUpdated), true
}

type Event interface {
	isEvent()
}

type ToggleStop struct {
	Stop model.StopName
}

type SelectReference struct {
	Stop model.StopName
}

type SetDate struct {
	Date model.ShowDate
}

type RealtimeRequested struct {
	Cycle string
	At    time.Time
}

type RealtimeFetched struct {
	Cycle string
	Batch model.Batch
}

type RealtimeFailed struct {
	Cycle string
	Err   string
	At    time.Time
}

type RealtimeScheduled struct {
	At time.Time
}

func (ToggleStop) isEvent()        {}
func (SelectReference) isEvent()   {}
func (SetDate) isEvent()           {}
func (RealtimeRequested) isEvent() {}
func (RealtimeFetched) isEvent()   {}
func (RealtimeFailed) isEvent()    {}
func (RealtimeScheduled) isEvent() {}

// Applies ev to s. Never mutates s; maps and slices that change are
// copied.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case ToggleStop:
		s.Selection = s.Selection.Toggle(e.Stop)

	case SelectReference:
		s.Selection = s.Selection.WithReference(e.Stop)

	case SetDate:
		s.Date = e.Date

	case RealtimeRequested:
		s.Fetch = FetchStatus{
			Phase:    Fetching,
			InFlight: s.Fetch.InFlight + 1,
			Cycle:    e.Cycle,
		}

	case RealtimeFetched:
		s.TripUpdates = MergeTripUpdates(s.TripUpdates, e.Batch, DefaultRetention)
		s.Alerts = append([]model.ServiceAlert{}, e.Batch.Alerts...)
		s.Vehicles = append([]model.VehiclePosition{}, e.Batch.Vehicles...)
		if e.Batch.Timestamp.After(s.LastUpdated) {
			s.LastUpdated = e.Batch.Timestamp
		}
		s.LastError = ""
		s.FailedFeeds = append([]string{}, e.Batch.Failed...)
		s.Fetch = settle(s.Fetch)

	case RealtimeFailed:
		s.LastError = e.Err
		s.Fetch = settle(s.Fetch)

	case RealtimeScheduled:
		if s.Fetch.InFlight == 0 {
			s.Fetch.Phase = Scheduled
			s.Fetch.Next = e.At
		}
	}

	return s
}

func settle(f FetchStatus) FetchStatus {
	if f.InFlight > 0 {
		f.InFlight--
	}
	if f.InFlight == 0 {
		f.Phase = Idle
	}
	f.Next = time.Time{}
	return f
}

// Overlays a batch onto the current trip updates, last write wins per
// key. Updates departing more than retention before the batch
// timestamp are dropped. Merging the same batch twice gives the same
// result as merging it once.
func MergeTripUpdates(
	current map[model.TripStopKey]model.TripUpdate,
	batch model.Batch,
	retention time.Duration,
) map[model.TripStopKey]model.TripUpdate {
	cutoff := batch.Timestamp.Add(-retention)

	merged := make(map[model.TripStopKey]model.TripUpdate, len(current)+len(batch.TripUpdates))
	for k, u := range current {
		if retention > 0 && u.Departure.Before(cutoff) {
			continue
		}
		merged[k] = u
	}
	for _, u := range batch.TripUpdates {
		if retention > 0 && u.Departure.Before(cutoff) {
			continue
		}
		merged[u.Key] = u
	}
	return merged
}

package model

import "time"

// Predicted departure of a trip from a stop. Delay is in whole minutes,
// negative when early.
type TripUpdate struct {
	Key       TripStopKey
	Departure time.Time
	Delay     int
}

type ServiceAlert struct {
	ID          string
	ActiveSince time.Time
	ActiveUntil time.Time
	Cause       string
	Effect      string
	Header      string
	Description string
	URL         string
	RouteIDs    []RouteID
	StopIDs     []StopID
}

// Decoded but not merged onto the schedule.
type VehiclePosition struct {
	TripID    TripID
	StopID    StopID
	Lat       float64
	Lon       float64
	Timestamp time.Time
}

// Realtime records gathered in one polling cycle. Timestamp is the
// newest feed header timestamp seen. Failed names the feeds that could
// not be fetched, if some but not all failed.
type Batch struct {
	ID          string
	Timestamp   time.Time
	TripUpdates []TripUpdate
	Alerts      []ServiceAlert
	Vehicles    []VehiclePosition
	Failed      []string
}

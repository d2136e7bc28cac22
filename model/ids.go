package model

// Identifiers are distinct string types so that stop, route, trip and
// service ids can't be mixed up. Convert explicitly, e.g. StopID("70011")
// and string(id).

type ZoneID string

type StopID string

type RouteID string

type ServiceID string

type TripID string

// Display name of a stop. Several stop records (one per platform) share
// the same name, so this is not interchangeable with StopID.
type StopName string

package timetable

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/rtree"

	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/parse"
)

const (
	DefaultStopIDLength   = 5
	DefaultStopNameSuffix = " Caltrain"
)

var (
	ErrUnknownReference = errors.New("unknown reference")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidValue     = errors.New("invalid value")
)

// Raised when a table row can't be turned into an entity. Row is the
// 1-based index of the data row within its table.
type LoadError struct {
	Table string
	Row   int
	Field string
	Value string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s row %d: %s '%s': %v", e.Table, e.Row, e.Field, e.Value, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type options struct {
	stopIDLength   int
	stopNameSuffix string
	location       *time.Location
	logger         *slog.Logger
	now            func() time.Time
}

type Option func(*options)

// Only stops with ids of exactly n characters take part in ordering.
// Zero disables the filter.
func WithStopIDLength(n int) Option {
	return func(o *options) { o.stopIDLength = n }
}

// Suffix trimmed from stop_name to form the display name.
func WithStopNameSuffix(suffix string) Option {
	return func(o *options) { o.stopNameSuffix = suffix }
}

// Overrides agency_timezone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type Fare struct {
	ID       string
	Price    float64
	Currency string
}

type fareRule struct {
	fareID      string
	routeID     model.RouteID
	origin      model.ZoneID
	destination model.ZoneID
}

type shapePoint struct {
	seq int
	lat float64
	lon float64
}

// A static schedule, fully resolved and indexed. Immutable once
// loaded; safe for concurrent use.
type Schedule struct {
	agency   model.Agency
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time

	zones  map[model.ZoneID]*model.FareZone
	stops  map[model.StopID]*model.Stop
	routes map[model.RouteID]*model.Route
	trips  map[model.TripID]*model.Trip

	zoneList  []*model.FareZone
	stopList  []*model.Stop
	routeList []*model.Route
	tripList  []*model.Trip

	tripStops      map[model.TripID][]*model.TripStop
	serviceStops   map[model.ServiceStopKey][]*model.Stop
	tripsByService map[model.ServiceStopKey][]*model.Trip
	keysByStopName map[model.StopName][]model.ServiceStopKey
	stopNames      []model.StopName

	calendar      []*parse.CalendarCSV
	calendarDates []*parse.CalendarDateCSV
	descriptions  map[model.ServiceID]string

	realtimeRoutes map[model.RouteID]bool
	shapes         map[string][]shapePoint
	fares          map[string]Fare
	fareRules      []fareRule
	stopIndex      rtree.RTreeGN[float64, *model.Stop]
}

// Builds a schedule from parsed tables. Every reference between
// tables must resolve; the first that doesn't aborts the load with a
// *LoadError. A pattern whose stops can't be ordered aborts it with a
// *SequenceError.
func Load(tables *parse.Tables, opts ...Option) (*Schedule, error) {
	o := options{
		stopIDLength:   DefaultStopIDLength,
		stopNameSuffix: DefaultStopNameSuffix,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if len(tables.Agency) == 0 {
		return nil, fmt.Errorf("loading agency: no agency record found")
	}
	a := tables.Agency[0]

	s := &Schedule{
		agency: model.Agency{
			ID:       a.ID,
			Name:     a.Name,
			URL:      a.URL,
			Timezone: a.Timezone,
		},
		location: o.location,
		logger:   o.logger,
		now:      o.now,
	}

	if s.location == nil {
		loc, err := time.LoadLocation(a.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
		s.location = loc
	}

	steps := []struct {
		name string
		fn   func(*parse.Tables) error
	}{
		{"zones", s.loadZones},
		{"stops", func(t *parse.Tables) error { return s.loadStops(t, o.stopNameSuffix) }},
		{"stop attributes", s.loadStopAttributes},
		{"routes", s.loadRoutes},
		{"trips", s.loadTrips},
		{"stop times", s.loadTripStops},
		{"calendar", s.loadCalendar},
		{"realtime routes", s.loadRealtimeRoutes},
		{"shapes", s.loadShapes},
		{"fares", s.loadFares},
	}
	for _, step := range steps {
		if err := step.fn(tables); err != nil {
			return nil, fmt.Errorf("loading %s: %w", step.name, err)
		}
	}

	if err := s.buildPatterns(o.stopIDLength); err != nil {
		return nil, fmt.Errorf("sequencing stops: %w", err)
	}

	s.logger.Debug("schedule loaded",
		slog.String("agency", s.agency.Name),
		slog.Int("stops", len(s.stops)),
		slog.Int("trips", len(s.trips)),
		slog.Int("patterns", len(s.serviceStops)))

	return s, nil
}

func (s *Schedule) loadZones(t *parse.Tables) error {
	s.zones = map[model.ZoneID]*model.FareZone{}
	for i, row := range t.FareZones {
		id := model.ZoneID(row.ZoneID)
		if _, found := s.zones[id]; found {
			return &LoadError{"farezone_attributes", i + 1, "zone_id", row.ZoneID, ErrDuplicateKey}
		}
		z := &model.FareZone{ID: id, Name: row.ZoneName}
		s.zones[id] = z
		s.zoneList = append(s.zoneList, z)
	}
	sort.Slice(s.zoneList, func(i, j int) bool { return s.zoneList[i].ID < s.zoneList[j].ID })
	return nil
}

func (s *Schedule) loadStops(t *parse.Tables, suffix string) error {
	s.stops = map[model.StopID]*model.Stop{}
	for i, row := range t.Stops {
		id := model.StopID(row.ID)
		if _, found := s.stops[id]; found {
			return &LoadError{"stops", i + 1, "stop_id", row.ID, ErrDuplicateKey}
		}

		var zone *model.FareZone
		if row.ZoneID != "" {
			zone = s.zones[model.ZoneID(row.ZoneID)]
			if zone == nil {
				return &LoadError{"stops", i + 1, "zone_id", row.ZoneID, ErrUnknownReference}
			}
		}

		lat, err := parseCoordinate(row.Lat)
		if err != nil {
			return &LoadError{"stops", i + 1, "stop_lat", row.Lat, ErrInvalidValue}
		}
		lon, err := parseCoordinate(row.Lon)
		if err != nil {
			return &LoadError{"stops", i + 1, "stop_lon", row.Lon, ErrInvalidValue}
		}

		stop := &model.Stop{
			ID:   id,
			Zone: zone,
			Code: row.Code,
			Desc: row.Desc,
			Name: model.StopName(strings.TrimSuffix(row.Name, suffix)),
			URL:  row.URL,
			Lat:  lat,
			Lon:  lon,
		}
		s.stops[id] = stop
		s.stopList = append(s.stopList, stop)

		// Same rule as for nearby stop lookups in most GTFS
		// consumers: stations, and stops without a station.
		if row.LocationType == "1" || row.ParentStation == "" {
			point := [2]float64{lon, lat}
			s.stopIndex.Insert(point, point, stop)
		}
	}
	sort.Slice(s.stopList, func(i, j int) bool { return s.stopList[i].ID < s.stopList[j].ID })
	return nil
}

func (s *Schedule) loadStopAttributes(t *parse.Tables) error {
	for i, row := range t.StopAttributes {
		stop := s.stops[model.StopID(row.StopID)]
		if stop == nil {
			return &LoadError{"stop_attributes", i + 1, "stop_id", row.StopID, ErrUnknownReference}
		}
		stop.City = strings.TrimSpace(row.StopCity)
		stop.Heading = strings.TrimSpace(row.CardinalDirection)
	}
	return nil
}

func parseCoordinate(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func (s *Schedule) loadRoutes(t *parse.Tables) error {
	s.routes = map[model.RouteID]*model.Route{}
	for i, row := range t.Routes {
		id := model.RouteID(row.ID)
		if _, found := s.routes[id]; found {
			return &LoadError{"routes", i + 1, "route_id", row.ID, ErrDuplicateKey}
		}
		r := &model.Route{
			ID:        id,
			Desc:      row.Desc,
			LongName:  row.LongName,
			ShortName: row.ShortName,
			URL:       row.URL,
		}
		s.routes[id] = r
		s.routeList = append(s.routeList, r)
	}
	sort.Slice(s.routeList, func(i, j int) bool { return s.routeList[i].ID < s.routeList[j].ID })
	return nil
}

// Directions are only needed to resolve trips, so they're not kept.
func (s *Schedule) loadDirections(t *parse.Tables) (map[model.DirectionKey]model.Direction, error) {
	directions := map[model.DirectionKey]model.Direction{}
	for i, row := range t.Directions {
		if s.routes[model.RouteID(row.RouteID)] == nil {
			return nil, &LoadError{"directions", i + 1, "route_id", row.RouteID, ErrUnknownReference}
		}
		key := model.DirectionKey{RouteID: model.RouteID(row.RouteID), DirectionID: row.DirectionID}
		if _, found := directions[key]; found {
			return nil, &LoadError{"directions", i + 1, "direction_id", row.DirectionID, ErrDuplicateKey}
		}
		d, err := model.ParseDirection(row.Direction)
		if err != nil {
			return nil, &LoadError{"directions", i + 1, "direction", row.Direction, ErrInvalidValue}
		}
		directions[key] = d
	}
	return directions, nil
}

func (s *Schedule) loadTrips(t *parse.Tables) error {
	directions, err := s.loadDirections(t)
	if err != nil {
		return fmt.Errorf("loading directions: %w", err)
	}

	s.trips = map[model.TripID]*model.Trip{}
	for i, row := range t.Trips {
		id := model.TripID(row.ID)
		if _, found := s.trips[id]; found {
			return &LoadError{"trips", i + 1, "trip_id", row.ID, ErrDuplicateKey}
		}
		route := s.routes[model.RouteID(row.RouteID)]
		if route == nil {
			return &LoadError{"trips", i + 1, "route_id", row.RouteID, ErrUnknownReference}
		}
		direction, found := directions[model.DirectionKey{RouteID: route.ID, DirectionID: row.DirectionID}]
		if !found {
			return &LoadError{"trips", i + 1, "direction_id", row.DirectionID, ErrUnknownReference}
		}

		trip := &model.Trip{
			ID:        id,
			Route:     route,
			ServiceID: model.ServiceID(row.ServiceID),
			Direction: direction,
			Headsign:  row.Headsign,
			ShortName: row.ShortName,
			ShapeID:   row.ShapeID,
		}
		s.trips[id] = trip
		s.tripList = append(s.tripList, trip)
	}
	sort.Slice(s.tripList, func(i, j int) bool { return s.tripList[i].ID < s.tripList[j].ID })
	return nil
}

func (s *Schedule) loadTripStops(t *parse.Tables) error {
	s.tripStops = map[model.TripID][]*model.TripStop{}
	seen := map[model.TripStopKey]bool{}

	for i, row := range t.StopTimes {
		trip := s.trips[model.TripID(row.TripID)]
		if trip == nil {
			return &LoadError{"stop_times", i + 1, "trip_id", row.TripID, ErrUnknownReference}
		}
		stop := s.stops[model.StopID(row.StopID)]
		if stop == nil {
			return &LoadError{"stop_times", i + 1, "stop_id", row.StopID, ErrUnknownReference}
		}
		seq, err := strconv.Atoi(strings.TrimSpace(row.StopSequence))
		if err != nil {
			return &LoadError{"stop_times", i + 1, "stop_sequence", row.StopSequence, ErrInvalidValue}
		}

		arrival, departure := row.ArrivalTime, row.DepartureTime
		if arrival == "" {
			arrival = departure
		}
		if departure == "" {
			departure = arrival
		}
		if _, err := model.ParseTimeOfDay(arrival); err != nil {
			return &LoadError{"stop_times", i + 1, "arrival_time", row.ArrivalTime, ErrInvalidValue}
		}
		if _, err := model.ParseTimeOfDay(departure); err != nil {
			return &LoadError{"stop_times", i + 1, "departure_time", row.DepartureTime, ErrInvalidValue}
		}

		ts := &model.TripStop{
			Trip:      trip,
			Stop:      stop,
			Arrival:   arrival,
			Departure: departure,
			Sequence:  seq,
			Timepoint: row.Timepoint,
		}
		if seen[ts.Key()] {
			return &LoadError{"stop_times", i + 1, "stop_id", row.StopID, ErrDuplicateKey}
		}
		seen[ts.Key()] = true

		s.tripStops[trip.ID] = append(s.tripStops[trip.ID], ts)
	}

	for _, tss := range s.tripStops {
		sort.SliceStable(tss, func(i, j int) bool { return tss[i].Sequence < tss[j].Sequence })
	}
	return nil
}

func (s *Schedule) loadRealtimeRoutes(t *parse.Tables) error {
	s.realtimeRoutes = map[model.RouteID]bool{}
	for i, row := range t.RealtimeRoutes {
		if s.routes[model.RouteID(row.RouteID)] == nil {
			return &LoadError{"realtime_routes", i + 1, "route_id", row.RouteID, ErrUnknownReference}
		}
		s.realtimeRoutes[model.RouteID(row.RouteID)] = row.RealtimeEnabled == "1"
	}
	return nil
}

func (s *Schedule) loadShapes(t *parse.Tables) error {
	s.shapes = map[string][]shapePoint{}
	for i, row := range t.Shapes {
		seq, err := strconv.Atoi(strings.TrimSpace(row.Sequence))
		if err != nil {
			return &LoadError{"shapes", i + 1, "shape_pt_sequence", row.Sequence, ErrInvalidValue}
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(row.Lat), 64)
		if err != nil {
			return &LoadError{"shapes", i + 1, "shape_pt_lat", row.Lat, ErrInvalidValue}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(row.Lon), 64)
		if err != nil {
			return &LoadError{"shapes", i + 1, "shape_pt_lon", row.Lon, ErrInvalidValue}
		}
		s.shapes[row.ShapeID] = append(s.shapes[row.ShapeID], shapePoint{seq, lat, lon})
	}
	for _, points := range s.shapes {
		sort.SliceStable(points, func(i, j int) bool { return points[i].seq < points[j].seq })
	}
	return nil
}

func (s *Schedule) loadFares(t *parse.Tables) error {
	s.fares = map[string]Fare{}
	for i, row := range t.FareAttributes {
		if _, found := s.fares[row.FareID]; found {
			return &LoadError{"fare_attributes", i + 1, "fare_id", row.FareID, ErrDuplicateKey}
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
		if err != nil {
			return &LoadError{"fare_attributes", i + 1, "price", row.Price, ErrInvalidValue}
		}
		s.fares[row.FareID] = Fare{ID: row.FareID, Price: price, Currency: row.CurrencyType}
	}

	for i, row := range t.FareRules {
		if _, found := s.fares[row.FareID]; !found {
			return &LoadError{"fare_rules", i + 1, "fare_id", row.FareID, ErrUnknownReference}
		}
		if row.RouteID != "" && s.routes[model.RouteID(row.RouteID)] == nil {
			return &LoadError{"fare_rules", i + 1, "route_id", row.RouteID, ErrUnknownReference}
		}
		if row.OriginID != "" && s.zones[model.ZoneID(row.OriginID)] == nil {
			return &LoadError{"fare_rules", i + 1, "origin_id", row.OriginID, ErrUnknownReference}
		}
		if row.DestinationID != "" && s.zones[model.ZoneID(row.DestinationID)] == nil {
			return &LoadError{"fare_rules", i + 1, "destination_id", row.DestinationID, ErrUnknownReference}
		}
		s.fareRules = append(s.fareRules, fareRule{
			fareID:      row.FareID,
			routeID:     model.RouteID(row.RouteID),
			origin:      model.ZoneID(row.OriginID),
			destination: model.ZoneID(row.DestinationID),
		})
	}
	return nil
}

// Derives canonical stop orders and the indexes built on them.
func (s *Schedule) buildPatterns(stopIDLength int) error {
	s.tripsByService = map[model.ServiceStopKey][]*model.Trip{}
	for _, trip := range s.tripList {
		key := trip.ServiceStopKey()
		s.tripsByService[key] = append(s.tripsByService[key], trip)
	}

	s.serviceStops = map[model.ServiceStopKey][]*model.Stop{}
	for key, trips := range s.tripsByService {
		lists := make([][]*model.TripStop, 0, len(trips))
		for _, trip := range trips {
			lists = append(lists, s.tripStops[trip.ID])
		}
		order, err := Sequence(key, lists, stopIDLength)
		if err != nil {
			return err
		}
		s.serviceStops[key] = order
	}

	byName := map[model.StopName]map[model.ServiceStopKey]bool{}
	for key, stops := range s.serviceStops {
		for _, stop := range stops {
			if byName[stop.Name] == nil {
				byName[stop.Name] = map[model.ServiceStopKey]bool{}
			}
			byName[stop.Name][key] = true
		}
	}

	s.keysByStopName = map[model.StopName][]model.ServiceStopKey{}
	for name, keys := range byName {
		list := make([]model.ServiceStopKey, 0, len(keys))
		for key := range keys {
			list = append(list, key)
		}
		sortKeys(list)
		s.keysByStopName[name] = list
		s.stopNames = append(s.stopNames, name)
	}
	sort.Slice(s.stopNames, func(i, j int) bool { return s.stopNames[i] < s.stopNames[j] })

	return nil
}

func sortKeys(keys []model.ServiceStopKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ServiceID != keys[j].ServiceID {
			return keys[i].ServiceID < keys[j].ServiceID
		}
		return keys[i].Direction < keys[j].Direction
	})
}

func (s *Schedule) Agency() model.Agency {
	return s.agency
}

func (s *Schedule) Timezone() *time.Location {
	return s.location
}

// All fare zones, by id.
func (s *Schedule) Zones() []*model.FareZone {
	return s.zoneList
}

func (s *Schedule) Zone(id model.ZoneID) *model.FareZone {
	return s.zones[id]
}

// All stops, by id.
func (s *Schedule) Stops() []*model.Stop {
	return s.stopList
}

func (s *Schedule) Stop(id model.StopID) *model.Stop {
	return s.stops[id]
}

// All routes, by id.
func (s *Schedule) Routes() []*model.Route {
	return s.routeList
}

func (s *Schedule) Route(id model.RouteID) *model.Route {
	return s.routes[id]
}

// All trips, by id.
func (s *Schedule) Trips() []*model.Trip {
	return s.tripList
}

func (s *Schedule) Trip(id model.TripID) *model.Trip {
	return s.trips[id]
}

// Stops visited by a trip, by stop_sequence.
func (s *Schedule) TripStops(id model.TripID) []*model.TripStop {
	return s.tripStops[id]
}

// Canonical stop order of a pattern, in travel direction.
func (s *Schedule) ServiceStops(key model.ServiceStopKey) []*model.Stop {
	return s.serviceStops[key]
}

// Trips of a pattern, by id.
func (s *Schedule) TripsByService(key model.ServiceStopKey) []*model.Trip {
	return s.tripsByService[key]
}

// All patterns, sorted.
func (s *Schedule) ServiceStopKeys() []model.ServiceStopKey {
	keys := make([]model.ServiceStopKey, 0, len(s.serviceStops))
	for key := range s.serviceStops {
		keys = append(keys, key)
	}
	sortKeys(keys)
	return keys
}

// Patterns with a stop of the given name in their canonical order.
func (s *Schedule) ServiceStopKeysByStopName(name model.StopName) []model.ServiceStopKey {
	return s.keysByStopName[name]
}

// Names of all stops served by some pattern, sorted.
func (s *Schedule) StopNames() []model.StopName {
	return s.stopNames
}

// Whether realtime data is published for a route. Without a
// realtime_routes table, every route is assumed to have it.
func (s *Schedule) RealtimeEnabled(id model.RouteID) bool {
	if len(s.realtimeRoutes) == 0 {
		return s.routes[id] != nil
	}
	return s.realtimeRoutes[id]
}

// Looks up the fare for travel between two zones. Rules naming a
// route only apply to that route; rules with blank fields match
// anything.
func (s *Schedule) Fare(route model.RouteID, origin, destination model.ZoneID) (Fare, bool) {
	for _, rule := range s.fareRules {
		if rule.routeID != "" && rule.routeID != route {
			continue
		}
		if rule.origin != "" && rule.origin != origin {
			continue
		}
		if rule.destination != "" && rule.destination != destination {
			continue
		}
		return s.fares[rule.fareID], true
	}
	return Fare{}, false
}

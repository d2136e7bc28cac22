package parse

// Raw rows of each GTFS table. Values are kept as strings; conversion
// and reference checks happen when the schedule is loaded.

type AgencyCSV struct {
	ID       string `csv:"agency_id"`
	Name     string `csv:"agency_name"`
	URL      string `csv:"agency_url"`
	Timezone string `csv:"agency_timezone"`
	Lang     string `csv:"agency_lang"`
	Phone    string `csv:"agency_phone"`
	FareURL  string `csv:"agency_fare_url"`
}

type CalendarCSV struct {
	ServiceID string `csv:"service_id"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
	Monday    string `csv:"monday"`
	Tuesday   string `csv:"tuesday"`
	Wednesday string `csv:"wednesday"`
	Thursday  string `csv:"thursday"`
	Friday    string `csv:"friday"`
	Saturday  string `csv:"saturday"`
	Sunday    string `csv:"sunday"`
}

type CalendarDateCSV struct {
	ServiceID     string `csv:"service_id"`
	Date          string `csv:"date"`
	ExceptionType string `csv:"exception_type"`
}

type CalendarAttributeCSV struct {
	ServiceID          string `csv:"service_id"`
	ServiceDescription string `csv:"service_description"`
}

type DirectionCSV struct {
	RouteID     string `csv:"route_id"`
	DirectionID string `csv:"direction_id"`
	Direction   string `csv:"direction"`
}

type FareAttributeCSV struct {
	FareID           string `csv:"fare_id"`
	Price            string `csv:"price"`
	CurrencyType     string `csv:"currency_type"`
	PaymentMethod    string `csv:"payment_method"`
	Transfers        string `csv:"transfers"`
	TransferDuration string `csv:"transfer_duration"`
}

type FareRuleCSV struct {
	FareID        string `csv:"fare_id"`
	RouteID       string `csv:"route_id"`
	OriginID      string `csv:"origin_id"`
	DestinationID string `csv:"destination_id"`
}

type FareZoneCSV struct {
	ZoneID   string `csv:"zone_id"`
	ZoneName string `csv:"zone_name"`
}

type RealtimeRouteCSV struct {
	RouteID           string `csv:"route_id"`
	RealtimeEnabled   string `csv:"realtime_enabled"`
	RealtimeRouteName string `csv:"realtime_routename"`
	RealtimeRouteCode string `csv:"realtime_routecode"`
}

type RouteCSV struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Desc      string `csv:"route_desc"`
	Type      string `csv:"route_type"`
	URL       string `csv:"route_url"`
	Color     string `csv:"route_color"`
	TextColor string `csv:"route_text_color"`
}

type ShapeCSV struct {
	ShapeID      string `csv:"shape_id"`
	Lat          string `csv:"shape_pt_lat"`
	Lon          string `csv:"shape_pt_lon"`
	Sequence     string `csv:"shape_pt_sequence"`
	DistTraveled string `csv:"shape_dist_traveled"`
}

type StopAttributeCSV struct {
	StopID            string `csv:"stop_id"`
	AccessibilityID   string `csv:"accessibility_id"`
	CardinalDirection string `csv:"cardinal_direction"`
	RelativePosition  string `csv:"relative_position"`
	StopCity          string `csv:"stop_city"`
}

type StopTimeCSV struct {
	TripID            string `csv:"trip_id"`
	StopID            string `csv:"stop_id"`
	StopSequence      string `csv:"stop_sequence"`
	ArrivalTime       string `csv:"arrival_time"`
	DepartureTime     string `csv:"departure_time"`
	Headsign          string `csv:"stop_headsign"`
	PickupType        string `csv:"pickup_type"`
	DropOffType       string `csv:"drop_off_type"`
	ShapeDistTraveled string `csv:"shape_dist_traveled"`
	Timepoint         string `csv:"timepoint"`
}

type StopCSV struct {
	ID                 string `csv:"stop_id"`
	Code               string `csv:"stop_code"`
	Name               string `csv:"stop_name"`
	Desc               string `csv:"stop_desc"`
	Lat                string `csv:"stop_lat"`
	Lon                string `csv:"stop_lon"`
	ZoneID             string `csv:"zone_id"`
	URL                string `csv:"stop_url"`
	LocationType       string `csv:"location_type"`
	ParentStation      string `csv:"parent_station"`
	Timezone           string `csv:"stop_timezone"`
	WheelchairBoarding string `csv:"wheelchair_boarding"`
}

type TripCSV struct {
	ID                   string `csv:"trip_id"`
	RouteID              string `csv:"route_id"`
	ServiceID            string `csv:"service_id"`
	Headsign             string `csv:"trip_headsign"`
	ShortName            string `csv:"trip_short_name"`
	DirectionID          string `csv:"direction_id"`
	BlockID              string `csv:"block_id"`
	ShapeID              string `csv:"shape_id"`
	WheelchairAccessible string `csv:"wheelchair_accessible"`
	BikesAllowed         string `csv:"bikes_allowed"`
}

// All tables of a static feed, in file order.
type Tables struct {
	Agency             []*AgencyCSV
	Calendar           []*CalendarCSV
	CalendarDates      []*CalendarDateCSV
	CalendarAttributes []*CalendarAttributeCSV
	Directions         []*DirectionCSV
	FareAttributes     []*FareAttributeCSV
	FareRules          []*FareRuleCSV
	FareZones          []*FareZoneCSV
	RealtimeRoutes     []*RealtimeRouteCSV
	Routes             []*RouteCSV
	Shapes             []*ShapeCSV
	StopAttributes     []*StopAttributeCSV
	StopTimes          []*StopTimeCSV
	Stops              []*StopCSV
	Trips              []*TripCSV
}

// Package session encodes the persisted (selection, date) pair, and
// the entity types that may appear in it, as tagged JSON envelopes.
//
// Every value is written as {"$t": tag, "v": fields}. Entities are
// written by their fields, not by reference, so a decoded stop is a
// fresh *model.Stop equal to, but not identical to, the loaded one.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tidbyt.dev/timetable/model"
)

// Stable tags. Changing any of these breaks previously persisted
// sessions.
const (
	TagZone           = "zone"
	TagStop           = "stop"
	TagRoute          = "route"
	TagTrip           = "trip"
	TagDirectionKey   = "direction-key"
	TagTripStop       = "trip-stop"
	TagServiceStopKey = "service-stop-key"
	TagCalendarMoment = "calendar-moment"
	TagSelection      = "selection"
	TagSession        = "session"
)

var ErrUnknownTag = errors.New("unknown tag")

// What gets persisted between runs.
type Session struct {
	Selection model.Selection
	Date      model.ShowDate
}

func (s Session) Equal(o Session) bool {
	return s.Selection.Equal(o.Selection) && s.Date.Equal(o.Date)
}

type envelope struct {
	Tag   string          `json:"$t"`
	Value json.RawMessage `json:"v"`
}

type zoneFields struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type stopFields struct {
	ID   string          `json:"id"`
	Zone json.RawMessage `json:"zone,omitempty"`
	Code string          `json:"code,omitempty"`
	Desc string          `json:"desc,omitempty"`
	Name string          `json:"name"`
	URL  string          `json:"url,omitempty"`
	Lat  float64         `json:"lat,omitempty"`
	Lon  float64         `json:"lon,omitempty"`

	City    string `json:"city,omitempty"`
	Heading string `json:"heading,omitempty"`
}

type routeFields struct {
	ID        string `json:"id"`
	Desc      string `json:"desc,omitempty"`
	LongName  string `json:"longName,omitempty"`
	ShortName string `json:"shortName,omitempty"`
	URL       string `json:"url,omitempty"`
}

type tripFields struct {
	ID        string          `json:"id"`
	Route     json.RawMessage `json:"route,omitempty"`
	ServiceID string          `json:"serviceId"`
	Direction string          `json:"direction"`
	Headsign  string          `json:"headsign,omitempty"`
	ShortName string          `json:"shortName,omitempty"`
	ShapeID   string          `json:"shapeId,omitempty"`
}

type directionKeyFields struct {
	RouteID     string `json:"routeId"`
	DirectionID string `json:"directionId"`
}

type tripStopFields struct {
	Trip      json.RawMessage `json:"trip"`
	Stop      json.RawMessage `json:"stop"`
	Arrival   string          `json:"arrival"`
	Departure string          `json:"departure"`
	Sequence  int             `json:"sequence"`
	Timepoint string          `json:"timepoint,omitempty"`
}

type serviceStopKeyFields struct {
	ServiceID string `json:"serviceId"`
	Direction string `json:"direction"`
}

type momentFields struct {
	Kind string `json:"kind"`
	Date string `json:"date,omitempty"`
}

type selectionFields struct {
	Checked   []string `json:"checked"`
	Reference string   `json:"reference,omitempty"`
}

type sessionFields struct {
	Selection json.RawMessage `json:"selection"`
	Date      json.RawMessage `json:"date"`
}

func wrap(tag string, fields any) (json.RawMessage, error) {
	v, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", tag, err)
	}
	return json.Marshal(envelope{Tag: tag, Value: v})
}

func unwrap(data []byte, tag string, fields any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshaling envelope: %w", err)
	}
	if env.Tag != tag {
		return fmt.Errorf("%w: got '%s', expected '%s'", ErrUnknownTag, env.Tag, tag)
	}
	if err := json.Unmarshal(env.Value, fields); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", tag, err)
	}
	return nil
}

// Encodes any of the supported types into its tagged form.
func EncodeValue(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case *model.FareZone:
		return wrap(TagZone, zoneFields{ID: string(x.ID), Name: x.Name})

	case *model.Stop:
		f := stopFields{
			ID:   string(x.ID),
			Code: x.Code,
			Desc: x.Desc,
			Name: string(x.Name),
			URL:  x.URL,
			Lat:  x.Lat,
			Lon:  x.Lon,

			City:    x.City,
			Heading: x.Heading,
		}
		if x.Zone != nil {
			zone, err := EncodeValue(x.Zone)
			if err != nil {
				return nil, err
			}
			f.Zone = zone
		}
		return wrap(TagStop, f)

	case *model.Route:
		return wrap(TagRoute, routeFields{
			ID:        string(x.ID),
			Desc:      x.Desc,
			LongName:  x.LongName,
			ShortName: x.ShortName,
			URL:       x.URL,
		})

	case *model.Trip:
		f := tripFields{
			ID:        string(x.ID),
			ServiceID: string(x.ServiceID),
			Direction: string(x.Direction),
			Headsign:  x.Headsign,
			ShortName: x.ShortName,
			ShapeID:   x.ShapeID,
		}
		if x.Route != nil {
			route, err := EncodeValue(x.Route)
			if err != nil {
				return nil, err
			}
			f.Route = route
		}
		return wrap(TagTrip, f)

	case model.DirectionKey:
		return wrap(TagDirectionKey, directionKeyFields{
			RouteID:     string(x.RouteID),
			DirectionID: x.DirectionID,
		})

	case *model.TripStop:
		trip, err := EncodeValue(x.Trip)
		if err != nil {
			return nil, err
		}
		stop, err := EncodeValue(x.Stop)
		if err != nil {
			return nil, err
		}
		return wrap(TagTripStop, tripStopFields{
			Trip:      trip,
			Stop:      stop,
			Arrival:   x.Arrival,
			Departure: x.Departure,
			Sequence:  x.Sequence,
			Timepoint: x.Timepoint,
		})

	case model.ServiceStopKey:
		return wrap(TagServiceStopKey, serviceStopKeyFields{
			ServiceID: string(x.ServiceID),
			Direction: string(x.Direction),
		})

	case model.ShowDate:
		f := momentFields{}
		switch x.Kind {
		case model.ShowToday:
			f.Kind = "today"
		case model.ShowTomorrow:
			f.Kind = "tomorrow"
		default:
			f.Kind = "date"
			f.Date = x.Date.Format("2006-01-02")
		}
		return wrap(TagCalendarMoment, f)

	case model.Selection:
		f := selectionFields{Checked: []string{}, Reference: string(x.Reference)}
		for _, name := range x.Names() {
			f.Checked = append(f.Checked, string(name))
		}
		return wrap(TagSelection, f)

	case Session:
		sel, err := EncodeValue(x.Selection)
		if err != nil {
			return nil, err
		}
		date, err := EncodeValue(x.Date)
		if err != nil {
			return nil, err
		}
		return wrap(TagSession, sessionFields{Selection: sel, Date: date})
	}

	return nil, fmt.Errorf("no encoding for %T", v)
}

// Decodes a tagged value into the type its tag names. Entities come
// back as pointers, keys and the date as values.
func DecodeValue(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}

	switch env.Tag {
	case TagZone:
		return decodeZone(data)
	case TagStop:
		return decodeStop(data)
	case TagRoute:
		return decodeRoute(data)
	case TagTrip:
		return decodeTrip(data)
	case TagDirectionKey:
		return decodeDirectionKey(data)
	case TagTripStop:
		return decodeTripStop(data)
	case TagServiceStopKey:
		return decodeServiceStopKey(data)
	case TagCalendarMoment:
		return decodeShowDate(data)
	case TagSelection:
		return decodeSelection(data)
	case TagSession:
		return Decode(data)
	}

	return nil, fmt.Errorf("%w: '%s'", ErrUnknownTag, env.Tag)
}

func decodeZone(data []byte) (*model.FareZone, error) {
	var f zoneFields
	if err := unwrap(data, TagZone, &f); err != nil {
		return nil, err
	}
	return &model.FareZone{ID: model.ZoneID(f.ID), Name: f.Name}, nil
}

func decodeStop(data []byte) (*model.Stop, error) {
	var f stopFields
	if err := unwrap(data, TagStop, &f); err != nil {
		return nil, err
	}
	stop := &model.Stop{
		ID:   model.StopID(f.ID),
		Code: f.Code,
		Desc: f.Desc,
		Name: model.StopName(f.Name),
		URL:  f.URL,
		Lat:  f.Lat,
		Lon:  f.Lon,

		City:    f.City,
		Heading: f.Heading,
	}
	if len(f.Zone) > 0 && string(f.Zone) != "null" {
		zone, err := decodeZone(f.Zone)
		if err != nil {
			return nil, fmt.Errorf("stop %s: %w", f.ID, err)
		}
		stop.Zone = zone
	}
	return stop, nil
}

func decodeRoute(data []byte) (*model.Route, error) {
	var f routeFields
	if err := unwrap(data, TagRoute, &f); err != nil {
		return nil, err
	}
	return &model.Route{
		ID:        model.RouteID(f.ID),
		Desc:      f.Desc,
		LongName:  f.LongName,
		ShortName: f.ShortName,
		URL:       f.URL,
	}, nil
}

func decodeTrip(data []byte) (*model.Trip, error) {
	var f tripFields
	if err := unwrap(data, TagTrip, &f); err != nil {
		return nil, err
	}
	direction, err := model.ParseDirection(f.Direction)
	if err != nil {
		return nil, fmt.Errorf("trip %s: %w", f.ID, err)
	}
	trip := &model.Trip{
		ID:        model.TripID(f.ID),
		ServiceID: model.ServiceID(f.ServiceID),
		Direction: direction,
		Headsign:  f.Headsign,
		ShortName: f.ShortName,
		ShapeID:   f.ShapeID,
	}
	if len(f.Route) > 0 && string(f.Route) != "null" {
		route, err := decodeRoute(f.Route)
		if err != nil {
			return nil, fmt.Errorf("trip %s: %w", f.ID, err)
		}
		trip.Route = route
	}
	return trip, nil
}

func decodeDirectionKey(data []byte) (model.DirectionKey, error) {
	var f directionKeyFields
	if err := unwrap(data, TagDirectionKey, &f); err != nil {
		return model.DirectionKey{}, err
	}
	return model.DirectionKey{RouteID: model.RouteID(f.RouteID), DirectionID: f.DirectionID}, nil
}

func decodeTripStop(data []byte) (*model.TripStop, error) {
	var f tripStopFields
	if err := unwrap(data, TagTripStop, &f); err != nil {
		return nil, err
	}
	trip, err := decodeTrip(f.Trip)
	if err != nil {
		return nil, err
	}
	stop, err := decodeStop(f.Stop)
	if err != nil {
		return nil, err
	}
	return &model.TripStop{
		Trip:      trip,
		Stop:      stop,
		Arrival:   f.Arrival,
		Departure: f.Departure,
		Sequence:  f.Sequence,
		Timepoint: f.Timepoint,
	}, nil
}

func decodeServiceStopKey(data []byte) (model.ServiceStopKey, error) {
	var f serviceStopKeyFields
	if err := unwrap(data, TagServiceStopKey, &f); err != nil {
		return model.ServiceStopKey{}, err
	}
	direction, err := model.ParseDirection(f.Direction)
	if err != nil {
		return model.ServiceStopKey{}, err
	}
	return model.ServiceStopKey{ServiceID: model.ServiceID(f.ServiceID), Direction: direction}, nil
}

func decodeShowDate(data []byte) (model.ShowDate, error) {
	var f momentFields
	if err := unwrap(data, TagCalendarMoment, &f); err != nil {
		return model.ShowDate{}, err
	}
	switch f.Kind {
	case "today":
		return model.Today, nil
	case "tomorrow":
		return model.Tomorrow, nil
	case "date":
		d, err := time.Parse("2006-01-02", f.Date)
		if err != nil {
			return model.ShowDate{}, fmt.Errorf("parsing calendar moment: %w", err)
		}
		return model.ShowDateOn(d.Year(), d.Month(), d.Day()), nil
	}
	return model.ShowDate{}, fmt.Errorf("unknown calendar moment kind '%s'", f.Kind)
}

func decodeSelection(data []byte) (model.Selection, error) {
	var f selectionFields
	if err := unwrap(data, TagSelection, &f); err != nil {
		return model.Selection{}, err
	}
	sel := model.Selection{Checked: map[model.StopName]bool{}, Reference: model.StopName(f.Reference)}
	for _, name := range f.Checked {
		sel.Checked[model.StopName(name)] = true
	}
	return sel, nil
}

// Serializes a session for storage.
func Encode(s Session) ([]byte, error) {
	return EncodeValue(s)
}

// Restores a session written by Encode.
func Decode(data []byte) (Session, error) {
	var f sessionFields
	if err := unwrap(data, TagSession, &f); err != nil {
		return Session{}, err
	}
	sel, err := decodeSelection(f.Selection)
	if err != nil {
		return Session{}, fmt.Errorf("decoding selection: %w", err)
	}
	date, err := decodeShowDate(f.Date)
	if err != nil {
		return Session{}, fmt.Errorf("decoding date: %w", err)
	}
	return Session{Selection: sel, Date: date}, nil
}

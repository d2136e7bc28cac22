package parse

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decoded GTFS Realtime messages. Only the fields we need are kept;
// everything else is skipped over. Field numbers follow
// gtfs-realtime.proto.

const (
	IncrementalityFullDataset  = 0
	IncrementalityDifferential = 1
)

const (
	TripScheduled   = 0
	TripAdded       = 1
	TripUnscheduled = 2
	TripCanceled    = 3
)

const (
	StopTimeScheduled = 0
	StopTimeSkipped   = 1
	StopTimeNoData    = 2
)

type FeedMessage struct {
	Header   FeedHeader
	Entities []*FeedEntity
}

type FeedHeader struct {
	Version        string
	Incrementality int
	Timestamp      uint64
}

type FeedEntity struct {
	ID         string
	IsDeleted  bool
	TripUpdate *TripUpdate
	Vehicle    *VehiclePosition
	Alert      *Alert
}

type TripDescriptor struct {
	TripID               string
	RouteID              string
	DirectionID          uint32
	StartTime            string
	StartDate            string
	ScheduleRelationship int
}

type TripUpdate struct {
	Trip            TripDescriptor
	StopTimeUpdates []*StopTimeUpdate
	VehicleID       string
	Timestamp       uint64
	Delay           int32
}

type StopTimeEvent struct {
	Delay       int32
	Time        int64
	Uncertainty int32
}

type StopTimeUpdate struct {
	StopSequence         uint32
	StopID               string
	Arrival              *StopTimeEvent
	Departure            *StopTimeEvent
	ScheduleRelationship int
}

type TimeRange struct {
	Start uint64
	End   uint64
}

type EntitySelector struct {
	AgencyID  string
	RouteID   string
	RouteType int32
	Trip      *TripDescriptor
	StopID    string
}

type Translation struct {
	Text     string
	Language string
}

type TranslatedString struct {
	Translations []Translation
}

// Text of the first English (or untagged) translation.
func (s TranslatedString) English() string {
	for _, t := range s.Translations {
		if t.Language == "en" || t.Language == "" {
			return t.Text
		}
	}
	return ""
}

type Alert struct {
	ActivePeriods    []TimeRange
	InformedEntities []*EntitySelector
	Cause            AlertCause
	Effect           AlertEffect
	URL              TranslatedString
	HeaderText       TranslatedString
	DescriptionText  TranslatedString
}

type Position struct {
	Latitude  float32
	Longitude float32
	Bearing   float32
	Odometer  float64
	Speed     float32
}

type VehiclePosition struct {
	Trip                *TripDescriptor
	Position            *Position
	CurrentStopSequence uint32
	CurrentStatus       int
	Timestamp           uint64
	StopID              string
	VehicleID           string
}

type AlertCause int

var alertCauseNames = map[AlertCause]string{
	1:  "UNKNOWN_CAUSE",
	2:  "OTHER_CAUSE",
	3:  "TECHNICAL_PROBLEM",
	4:  "STRIKE",
	5:  "DEMONSTRATION",
	6:  "ACCIDENT",
	7:  "HOLIDAY",
	8:  "WEATHER",
	9:  "MAINTENANCE",
	10: "CONSTRUCTION",
	11: "POLICE_ACTIVITY",
	12: "MEDICAL_EMERGENCY",
}

func (c AlertCause) String() string {
	if name, ok := alertCauseNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CAUSE_%d", int(c))
}

type AlertEffect int

var alertEffectNames = map[AlertEffect]string{
	1:  "NO_SERVICE",
	2:  "REDUCED_SERVICE",
	3:  "SIGNIFICANT_DELAYS",
	4:  "DETOUR",
	5:  "ADDITIONAL_SERVICE",
	6:  "MODIFIED_SERVICE",
	7:  "OTHER_EFFECT",
	8:  "UNKNOWN_EFFECT",
	9:  "STOP_MOVED",
	10: "NO_EFFECT",
	11: "ACCESSIBILITY_ISSUE",
}

func (e AlertEffect) String() string {
	if name, ok := alertEffectNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EFFECT_%d", int(e))
}

// Decodes a serialized FeedMessage.
func DecodeFeed(buf []byte) (*FeedMessage, error) {
	msg := &FeedMessage{}
	err := walk(buf, func(f field) error {
		switch f.num {
		case 1:
			b, err := f.message()
			if err != nil {
				return err
			}
			return decodeHeader(b, &msg.Header)
		case 2:
			b, err := f.message()
			if err != nil {
				return err
			}
			e, err := decodeEntity(b)
			if err != nil {
				return fmt.Errorf("entity %d: %w", len(msg.Entities), err)
			}
			msg.Entities = append(msg.Entities, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decoding feed message: %w", err)
	}
	return msg, nil
}

func decodeHeader(buf []byte, h *FeedHeader) error {
	return walk(buf, func(f field) (err error) {
		switch f.num {
		case 1:
			h.Version, err = f.string()
		case 2:
			var v uint64
			v, err = f.varint()
			h.Incrementality = int(v)
		case 3:
			h.Timestamp, err = f.varint()
		}
		return err
	})
}

func decodeEntity(buf []byte) (*FeedEntity, error) {
	e := &FeedEntity{}
	err := walk(buf, func(f field) (err error) {
		switch f.num {
		case 1:
			e.ID, err = f.string()
		case 2:
			var v uint64
			v, err = f.varint()
			e.IsDeleted = v != 0
		case 3:
			var b []byte
			if b, err = f.message(); err == nil {
				e.TripUpdate, err = decodeTripUpdate(b)
			}
		case 4:
			var b []byte
			if b, err = f.message(); err == nil {
				e.Vehicle, err = decodeVehicle(b)
			}
		case 5:
			var b []byte
			if b, err = f.message(); err == nil {
				e.Alert, err = decodeAlert(b)
			}
		}
		return err
	})
	return e, err
}

func decodeTripDescriptor(buf []byte) (*TripDescriptor, error) {
	t := &TripDescriptor{}
	err := walk(buf, func(f field) (err error) {
		var v uint64
		switch f.num {
		case 1:
			t.TripID, err = f.string()
		case 2:
			t.StartTime, err = f.string()
		case 3:
			t.StartDate, err = f.string()
		case 4:
			v, err = f.varint()
			t.ScheduleRelationship = int(v)
		case 5:
			t.RouteID, err = f.string()
		case 6:
			v, err = f.varint()
			t.DirectionID = uint32(v)
		}
		return err
	})
	return t, err
}

func decodeTripUpdate(buf []byte) (*TripUpdate, error) {
	u := &TripUpdate{}
	err := walk(buf, func(f field) (err error) {
		var b []byte
		var v uint64
		switch f.num {
		case 1:
			if b, err = f.message(); err == nil {
				var td *TripDescriptor
				td, err = decodeTripDescriptor(b)
				if td != nil {
					u.Trip = *td
				}
			}
		case 2:
			if b, err = f.message(); err == nil {
				var stu *StopTimeUpdate
				stu, err = decodeStopTimeUpdate(b)
				u.StopTimeUpdates = append(u.StopTimeUpdates, stu)
			}
		case 3:
			if b, err = f.message(); err == nil {
				u.VehicleID, err = decodeVehicleDescriptor(b)
			}
		case 4:
			u.Timestamp, err = f.varint()
		case 5:
			v, err = f.varint()
			u.Delay = int32(v)
		}
		return err
	})
	return u, err
}

func decodeStopTimeUpdate(buf []byte) (*StopTimeUpdate, error) {
	u := &StopTimeUpdate{}
	err := walk(buf, func(f field) (err error) {
		var b []byte
		var v uint64
		switch f.num {
		case 1:
			v, err = f.varint()
			u.StopSequence = uint32(v)
		case 2:
			if b, err = f.message(); err == nil {
				u.Arrival, err = decodeStopTimeEvent(b)
			}
		case 3:
			if b, err = f.message(); err == nil {
				u.Departure, err = decodeStopTimeEvent(b)
			}
		case 4:
			u.StopID, err = f.string()
		case 5:
			v, err = f.varint()
			u.ScheduleRelationship = int(v)
		}
		return err
	})
	return u, err
}

func decodeStopTimeEvent(buf []byte) (*StopTimeEvent, error) {
	e := &StopTimeEvent{}
	err := walk(buf, func(f field) (err error) {
		var v uint64
		switch f.num {
		case 1:
			v, err = f.varint()
			e.Delay = int32(v)
		case 2:
			v, err = f.varint()
			e.Time = int64(v)
		case 3:
			v, err = f.varint()
			e.Uncertainty = int32(v)
		}
		return err
	})
	return e, err
}

func decodeVehicleDescriptor(buf []byte) (string, error) {
	var id string
	err := walk(buf, func(f field) (err error) {
		if f.num == 1 {
			id, err = f.string()
		}
		return err
	})
	return id, err
}

func decodeVehicle(buf []byte) (*VehiclePosition, error) {
	vp := &VehiclePosition{}
	err := walk(buf, func(f field) (err error) {
		var b []byte
		var v uint64
		switch f.num {
		case 1:
			if b, err = f.message(); err == nil {
				vp.Trip, err = decodeTripDescriptor(b)
			}
		case 2:
			if b, err = f.message(); err == nil {
				vp.Position, err = decodePosition(b)
			}
		case 3:
			v, err = f.varint()
			vp.CurrentStopSequence = uint32(v)
		case 4:
			v, err = f.varint()
			vp.CurrentStatus = int(v)
		case 5:
			vp.Timestamp, err = f.varint()
		case 7:
			vp.StopID, err = f.string()
		case 8:
			if b, err = f.message(); err == nil {
				vp.VehicleID, err = decodeVehicleDescriptor(b)
			}
		}
		return err
	})
	return vp, err
}

func decodePosition(buf []byte) (*Position, error) {
	p := &Position{}
	err := walk(buf, func(f field) (err error) {
		switch f.num {
		case 1:
			p.Latitude, err = f.float32()
		case 2:
			p.Longitude, err = f.float32()
		case 3:
			p.Bearing, err = f.float32()
		case 4:
			p.Odometer, err = f.float64()
		case 5:
			p.Speed, err = f.float32()
		}
		return err
	})
	return p, err
}

func decodeAlert(buf []byte) (*Alert, error) {
	a := &Alert{
		Cause:  1,
		Effect: 8,
	}
	err := walk(buf, func(f field) (err error) {
		var b []byte
		var v uint64
		switch f.num {
		case 1:
			if b, err = f.message(); err == nil {
				var tr TimeRange
				tr, err = decodeTimeRange(b)
				a.ActivePeriods = append(a.ActivePeriods, tr)
			}
		case 5:
			if b, err = f.message(); err == nil {
				var es *EntitySelector
				es, err = decodeEntitySelector(b)
				a.InformedEntities = append(a.InformedEntities, es)
			}
		case 6:
			v, err = f.varint()
			a.Cause = AlertCause(v)
		case 7:
			v, err = f.varint()
			a.Effect = AlertEffect(v)
		case 8:
			if b, err = f.message(); err == nil {
				a.URL, err = decodeTranslatedString(b)
			}
		case 10:
			if b, err = f.message(); err == nil {
				a.HeaderText, err = decodeTranslatedString(b)
			}
		case 11:
			if b, err = f.message(); err == nil {
				a.DescriptionText, err = decodeTranslatedString(b)
			}
		}
		return err
	})
	return a, err
}

func decodeTimeRange(buf []byte) (TimeRange, error) {
	tr := TimeRange{}
	err := walk(buf, func(f field) (err error) {
		switch f.num {
		case 1:
			tr.Start, err = f.varint()
		case 2:
			tr.End, err = f.varint()
		}
		return err
	})
	return tr, err
}

func decodeEntitySelector(buf []byte) (*EntitySelector, error) {
	es := &EntitySelector{}
	err := walk(buf, func(f field) (err error) {
		var b []byte
		var v uint64
		switch f.num {
		case 1:
			es.AgencyID, err = f.string()
		case 2:
			es.RouteID, err = f.string()
		case 3:
			v, err = f.varint()
			es.RouteType = int32(v)
		case 4:
			if b, err = f.message(); err == nil {
				es.Trip, err = decodeTripDescriptor(b)
			}
		case 5:
			es.StopID, err = f.string()
		}
		return err
	})
	return es, err
}

func decodeTranslatedString(buf []byte) (TranslatedString, error) {
	ts := TranslatedString{}
	err := walk(buf, func(f field) (err error) {
		if f.num != 1 {
			return nil
		}
		b, err := f.message()
		if err != nil {
			return err
		}
		t := Translation{}
		err = walk(b, func(f field) (err error) {
			switch f.num {
			case 1:
				t.Text, err = f.string()
			case 2:
				t.Language, err = f.string()
			}
			return err
		})
		ts.Translations = append(ts.Translations, t)
		return err
	})
	return ts, err
}

// A single decoded field. Only the member matching typ is set.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	vint    uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

// Calls fn for every field in buf, in wire order.
func walk(buf []byte, fn func(f field) error) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return protowire.ParseError(n)
		}
		buf = buf[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.vint, n = protowire.ConsumeVarint(buf)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(buf)
		case protowire.Fixed64Type:
			f.fixed64, n = protowire.ConsumeFixed64(buf)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(buf)
		default:
			// Groups and anything else we don't model.
			n = protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return protowire.ParseError(n)
			}
			buf = buf[n:]
			continue
		}
		if n < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		buf = buf[n:]

		if err := fn(f); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
	}
	return nil
}

func (f field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("wire type %d, expected %d", f.typ, typ)
	}
	return nil
}

func (f field) varint() (uint64, error) {
	return f.vint, f.want(protowire.VarintType)
}

func (f field) message() ([]byte, error) {
	return f.bytes, f.want(protowire.BytesType)
}

func (f field) string() (string, error) {
	return string(f.bytes), f.want(protowire.BytesType)
}

func (f field) float32() (float32, error) {
	return math.Float32frombits(f.fixed32), f.want(protowire.Fixed32Type)
}

func (f field) float64() (float64, error) {
	return math.Float64frombits(f.fixed64), f.want(protowire.Fixed64Type)
}

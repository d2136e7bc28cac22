package testutil

import (
	"testing"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

// Serializes a feed message built from entities, with the given
// header timestamp.
func BuildFeed(t testing.TB, timestamp uint64, entities ...*gtfsproto.FeedEntity) []byte {
	feed := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(timestamp),
		},
		Entity: entities,
	}
	buf, err := proto.Marshal(feed)
	require.NoError(t, err)
	return buf
}

// A departure prediction for one stop of a trip.
type StopDeparture struct {
	StopID string
	Time   int64
	Delay  int32
}

func TripUpdateEntity(id, tripID string, departures ...StopDeparture) *gtfsproto.FeedEntity {
	stus := []*gtfsproto.TripUpdate_StopTimeUpdate{}
	for _, d := range departures {
		stus = append(stus, &gtfsproto.TripUpdate_StopTimeUpdate{
			StopId: proto.String(d.StopID),
			Departure: &gtfsproto.TripUpdate_StopTimeEvent{
				Time:  proto.Int64(d.Time),
				Delay: proto.Int32(d.Delay),
			},
		})
	}
	return &gtfsproto.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfsproto.TripUpdate{
			Trip:           &gtfsproto.TripDescriptor{TripId: proto.String(tripID)},
			StopTimeUpdate: stus,
		},
	}
}

// An alert informing the given agency. start and end of 0 leave that
// end of the active period open; both 0 means no active period.
func AlertEntity(id, agency, header string, start, end uint64) *gtfsproto.FeedEntity {
	alert := &gtfsproto.Alert{
		InformedEntity: []*gtfsproto.EntitySelector{
			{AgencyId: proto.String(agency), RouteId: proto.String("L1")},
			{StopId: proto.String("70012")},
		},
		Cause:  gtfsproto.Alert_MAINTENANCE.Enum(),
		Effect: gtfsproto.Alert_SIGNIFICANT_DELAYS.Enum(),
		HeaderText: &gtfsproto.TranslatedString{
			Translation: []*gtfsproto.TranslatedString_Translation{
				{Text: proto.String("Retrasos"), Language: proto.String("es")},
				{Text: proto.String(header), Language: proto.String("en")},
			},
		},
		DescriptionText: &gtfsproto.TranslatedString{
			Translation: []*gtfsproto.TranslatedString_Translation{
				{Text: proto.String(header + " (details)")},
			},
		},
	}
	if start != 0 || end != 0 {
		tr := &gtfsproto.TimeRange{}
		if start != 0 {
			tr.Start = proto.Uint64(start)
		}
		if end != 0 {
			tr.End = proto.Uint64(end)
		}
		alert.ActivePeriod = []*gtfsproto.TimeRange{tr}
	}
	return &gtfsproto.FeedEntity{Id: proto.String(id), Alert: alert}
}

func VehicleEntity(id, tripID, stopID string, lat, lon float32, timestamp uint64) *gtfsproto.FeedEntity {
	return &gtfsproto.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfsproto.VehiclePosition{
			Trip:      &gtfsproto.TripDescriptor{TripId: proto.String(tripID)},
			Position:  &gtfsproto.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
			StopId:    proto.String(stopID),
			Timestamp: proto.Uint64(timestamp),
		},
	}
}

package timetable

import (
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-polyline"

	"tidbyt.dev/timetable/model"
)

// Returns stops ordered by distance from lat,lon.
//
// If limit is >0, at most limit stops are returned.
//
// Only stations and stops without a parent station are considered.
func (s *Schedule) NearbyStops(lat, lon float64, limit int) []*model.Stop {
	n := s.stopIndex.Len()
	if n == 0 {
		return []*model.Stop{}
	}
	want := n
	if limit > 0 && limit < n {
		want = limit
	}

	// Grow a search box around the point until it holds enough
	// candidates. Anything found in a box of half-width r is at most
	// r*sqrt(2) away, so one final search at that radius catches
	// stops just outside the corners that may be closer.
	found := []*model.Stop{}
	search := func(r float64) {
		found = found[:0]
		s.stopIndex.Search(
			[2]float64{lon - r, lat - r},
			[2]float64{lon + r, lat + r},
			func(_, _ [2]float64, stop *model.Stop) bool {
				found = append(found, stop)
				return true
			},
		)
	}

	r := 0.01
	for search(r); len(found) < want && r < 360; search(r) {
		r *= 2
	}
	search(r * math.Sqrt2)

	sort.Slice(found, func(i, j int) bool {
		di := haversine(lat, lon, found[i].Lat, found[i].Lon)
		dj := haversine(lat, lon, found[j].Lat, found[j].Lon)
		if di != dj {
			return di < dj
		}
		return found[i].ID < found[j].ID
	})

	if len(found) > want {
		found = found[:want]
	}
	return found
}

// Great circle distance in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// Encoded polyline of the shape a trip follows.
func (s *Schedule) ShapePolyline(id model.TripID) (string, error) {
	trip := s.trips[id]
	if trip == nil {
		return "", fmt.Errorf("unknown trip '%s'", id)
	}
	points := s.shapes[trip.ShapeID]
	if len(points) == 0 {
		return "", fmt.Errorf("no shape for trip '%s'", id)
	}

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.lat, p.lon}
	}
	return string(polyline.EncodeCoords(coords)), nil
}

package timetable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/testutil"
)

func TestNearbyStops(t *testing.T) {
	s := testutil.CaltrainSchedule(t)

	for _, tc := range []struct {
		name     string
		lat, lon float64
		limit    int
		expected []model.StopID
	}{
		{"exact match", 37.7764, -122.3943, 1, []model.StopID{"70011"}},
		{"both platforms", 37.7764, -122.3943, 2, []model.StopID{"70011", "70012"}},
		{"near millbrae", 37.6100, -122.3900, 3, []model.StopID{"70062", "70061", "777403"}},
		{"far away", 40.7128, -74.0060, 2, []model.StopID{"70261", "70262"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stopIDs(s.NearbyStops(tc.lat, tc.lon, tc.limit)))
		})
	}

	all := s.NearbyStops(37.7764, -122.3943, 0)
	require.Equal(t, 11, len(all))
	assert.Equal(t, model.StopID("70011"), all[0].ID)

	all = s.NearbyStops(37.7764, -122.3943, 100)
	assert.Equal(t, 11, len(all))
}

func TestShapePolyline(t *testing.T) {
	s := testutil.CaltrainSchedule(t)

	encoded, err := s.ShapePolyline("101")
	require.NoError(t, err)

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	require.NoError(t, err)
	require.Equal(t, 3, len(coords))
	assert.InDelta(t, 37.7764, coords[0][0], 0.00001)
	assert.InDelta(t, -122.3943, coords[0][1], 0.00001)
	assert.InDelta(t, 37.3297, coords[2][0], 0.00001)
	assert.InDelta(t, -121.9027, coords[2][1], 0.00001)

	_, err = s.ShapePolyline("102")
	assert.ErrorContains(t, err, "no shape")

	_, err = s.ShapePolyline("nope")
	assert.ErrorContains(t, err, "unknown trip")
}

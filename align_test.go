package timetable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/testutil"
)

func alignedKinds(aligned []model.Aligned) []model.AlignedKind {
	kinds := []model.AlignedKind{}
	for _, a := range aligned {
		kinds = append(kinds, a.At.Kind)
	}
	return kinds
}

func TestStopsAlignedTo(t *testing.T) {
	s := testutil.CaltrainSchedule(t)

	const (
		S = model.Served
		K = model.Skipped
		N = model.Never
	)

	for _, tc := range []struct {
		trip     model.TripID
		key      model.ServiceStopKey
		expected []model.AlignedKind
	}{
		{"101", weekdaySouth, []model.AlignedKind{S, S, S, S, S}},
		{"103", weekdaySouth, []model.AlignedKind{S, S, S, S, N}},
		{"105", weekdaySouth, []model.AlignedKind{S, S, S, N, N}},
		{"701", weekdaySouth, []model.AlignedKind{S, K, S, K, S}},
		{"102", weekdayNorth, []model.AlignedKind{S, S, S, S, S}},
		{"104", weekdayNorth, []model.AlignedKind{N, S, S, S, S}},
		{"803", weekendNorth, []model.AlignedKind{S, S, S}},
	} {
		t.Run(string(tc.trip), func(t *testing.T) {
			canonical := s.ServiceStops(tc.key)
			aligned := s.StopsAlignedTo(s.Trip(tc.trip), canonical)
			require.Equal(t, len(canonical), len(aligned))
			assert.Equal(t, tc.expected, alignedKinds(aligned))

			for i, a := range aligned {
				assert.Equal(t, canonical[i], a.Stop)
				if a.At.Kind == model.Served {
					require.NotNil(t, a.At.TripStop)
					assert.Equal(t, a.Stop.ID, a.At.TripStop.Stop.ID)
					assert.Equal(t, tc.trip, a.At.TripStop.Trip.ID)
				} else {
					assert.Nil(t, a.At.TripStop)
				}
			}
		})
	}
}

func TestAlign(t *testing.T) {
	canonical := []*model.Stop{{ID: "AAAAA"}, {ID: "BBBBB"}, {ID: "CCCCC"}, {ID: "DDDDD"}, {ID: "EEEEE"}}
	trip := &model.Trip{ID: "t"}
	visit := func(ids ...int) []*model.TripStop {
		tss := []*model.TripStop{}
		for i, id := range ids {
			tss = append(tss, &model.TripStop{Trip: trip, Stop: canonical[id], Sequence: i + 1})
		}
		return tss
	}

	const (
		S = model.Served
		K = model.Skipped
		N = model.Never
	)

	for _, tc := range []struct {
		name     string
		tss      []*model.TripStop
		expected []model.AlignedKind
	}{
		{"no stops", nil, []model.AlignedKind{N, N, N, N, N}},
		{"single stop", visit(2), []model.AlignedKind{N, N, S, N, N}},
		{"middle span", visit(1, 3), []model.AlignedKind{N, S, K, S, N}},
		{"ends only", visit(0, 4), []model.AlignedKind{S, K, K, K, S}},
		{"tail", visit(3, 4), []model.AlignedKind{N, N, N, S, S}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, alignedKinds(timetable.Align(tc.tss, canonical)))
		})
	}

	assert.Equal(t, "served", model.Served.String())
	assert.Equal(t, "skipped", model.Skipped.String())
	assert.Equal(t, "never", model.Never.String())
}

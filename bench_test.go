package timetable_test

import (
	"testing"
	"time"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/parse"
	"tidbyt.dev/timetable/testutil"
)

func BenchmarkParseZip(b *testing.B) {
	buf := testutil.BuildZip(b, testutil.CaltrainFiles())

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := parse.ParseZip(buf); err != nil {
			b.Error(err)
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	tables := testutil.BuildTables(b, testutil.CaltrainFiles())

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := timetable.Load(tables); err != nil {
			b.Error(err)
		}
	}
}

func BenchmarkNearbyStops(b *testing.B) {
	s := testutil.CaltrainSchedule(b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		// The 5 nearest stops to Stanford
		s.NearbyStops(37.4275, -122.1697, 5)
	}
}

func BenchmarkTimetableRows(b *testing.B) {
	s := testutil.CaltrainSchedule(b)

	sel := model.NewSelection("San Francisco", "Palo Alto").WithReference("San Francisco")
	when := time.Date(2020, 7, 2, 6, 0, 0, 0, s.Timezone())

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, tt := range s.Timetables(sel.Names(), when) {
			s.Rows(tt, sel, when, nil)
		}
	}
}

func BenchmarkDecodeFeed(b *testing.B) {
	buf := testutil.BuildFeed(b, 1593792000,
		testutil.TripUpdateEntity("1", "101", testutil.StopDeparture{StopID: "70012", Time: 1593792060}),
		testutil.AlertEntity("2", "CT", "Delays", 0, 0),
		testutil.VehicleEntity("3", "101", "70012", 37.7765, -122.3944, 1593792000),
	)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := parse.DecodeFeed(buf); err != nil {
			b.Error(err)
		}
	}
}

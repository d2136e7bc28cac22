package parse_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable/parse"
	"tidbyt.dev/timetable/testutil"
)

func TestParseZip(t *testing.T) {
	tables, err := parse.ParseZip(testutil.BuildZip(t, testutil.CaltrainFiles()))
	require.NoError(t, err)

	require.Equal(t, 1, len(tables.Agency))
	assert.Equal(t, "America/Los_Angeles", tables.Agency[0].Timezone)
	assert.Equal(t, 2, len(tables.Calendar))
	assert.Equal(t, 2, len(tables.CalendarDates))
	assert.Equal(t, 2, len(tables.CalendarAttributes))
	assert.Equal(t, 4, len(tables.Directions))
	assert.Equal(t, 3, len(tables.FareAttributes))
	assert.Equal(t, 3, len(tables.FareRules))
	assert.Equal(t, 4, len(tables.FareZones))
	assert.Equal(t, 2, len(tables.RealtimeRoutes))
	assert.Equal(t, 2, len(tables.Routes))
	assert.Equal(t, 3, len(tables.Shapes))
	assert.Equal(t, 11, len(tables.Stops))
	assert.Equal(t, 4, len(tables.StopAttributes))
	assert.Equal(t, 9, len(tables.Trips))
	assert.Equal(t, 34, len(tables.StopTimes))

	assert.Equal(t, &parse.DirectionCSV{RouteID: "L1", DirectionID: "0", Direction: "North"}, tables.Directions[0])
	assert.Equal(t, "San Francisco Caltrain", tables.Stops[0].Name)
	assert.Equal(t, "1", tables.Stops[0].ZoneID)
	assert.Equal(t, "San Francisco", tables.StopAttributes[0].StopCity)
	assert.Equal(t, "SB", tables.StopAttributes[0].CardinalDirection)
	assert.Equal(t, "101", tables.StopTimes[0].TripID)
	assert.Equal(t, "1", tables.StopTimes[0].StopSequence)
}

func TestParseZipSubdirectoryAndBOM(t *testing.T) {
	files := testutil.CaltrainFiles()
	buf := testutil.BuildZip(t, map[string][]string{
		"feed/agency.txt":     append([]string{"\ufeff" + files["agency.txt"][0]}, files["agency.txt"][1:]...),
		"feed/calendar.txt":   files["calendar.txt"],
		"feed/directions.txt": files["directions.txt"],
		"feed/routes.txt":     files["routes.txt"],
		"feed/stops.txt":      files["stops.txt"],
		"feed/trips.txt":      files["trips.txt"],
		"feed/stop_times.txt": files["stop_times.txt"],
		"feed/unknown.txt":    {"foo,bar", "1,2"},
	})

	tables, err := parse.ParseZip(buf)
	require.NoError(t, err)
	assert.Equal(t, "CT", tables.Agency[0].ID)
	assert.Equal(t, 0, len(tables.Shapes))
}

func TestParseZipMissingFiles(t *testing.T) {
	for _, missing := range []string{
		"agency.txt",
		"directions.txt",
		"routes.txt",
		"stops.txt",
		"trips.txt",
		"stop_times.txt",
	} {
		t.Run(missing, func(t *testing.T) {
			files := testutil.CaltrainFiles()
			delete(files, missing)
			_, err := parse.ParseZip(testutil.BuildZip(t, files))
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}

	files := testutil.CaltrainFiles()
	delete(files, "calendar.txt")
	delete(files, "calendar_dates.txt")
	_, err := parse.ParseZip(testutil.BuildZip(t, files))
	assert.Error(t, err)

	files = testutil.CaltrainFiles()
	files["agency.txt"] = files["agency.txt"][:1]
	_, err = parse.ParseZip(testutil.BuildZip(t, files))
	assert.ErrorContains(t, err, "no agency record found")
}

func TestParseZipGarbage(t *testing.T) {
	_, err := parse.ParseZip([]byte("not a zip"))
	assert.Error(t, err)
}

func TestParseStopTimes(t *testing.T) {
	for _, tc := range []struct {
		name  string
		lines []string
		err   string
		n     int
	}{
		{
			name:  "ok",
			lines: []string{"trip_id,stop_id,stop_sequence,arrival_time,departure_time", "t,s,1,10:00:00,10:00:00", "t,s2,2,10:05:00,10:05:00"},
			n:     2,
		},
		{
			name:  "header only",
			lines: []string{"trip_id,stop_id,stop_sequence"},
			n:     0,
		},
		{
			name:  "bad sequence",
			lines: []string{"trip_id,stop_id,stop_sequence", "t,s,x"},
			err:   "stop_sequence (row 1)",
		},
		{
			name:  "missing trip",
			lines: []string{"trip_id,stop_id,stop_sequence", "t,s,1", ",s,2"},
			err:   "missing trip_id (row 2)",
		},
		{
			name:  "missing stop",
			lines: []string{"trip_id,stop_id,stop_sequence", "t,,1"},
			err:   "missing stop_id (row 1)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sts, err := parse.ParseStopTimes(strings.NewReader(strings.Join(tc.lines, "\n")))
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.n, len(sts))
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	for name, lines := range testutil.CaltrainFiles() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")), 0644))
	}

	tables, err := parse.ParseDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 11, len(tables.Stops))
	assert.Equal(t, 34, len(tables.StopTimes))

	require.NoError(t, os.Remove(filepath.Join(dir, "trips.txt")))
	_, err = parse.ParseDir(dir)
	assert.ErrorContains(t, err, "trips.txt")
}

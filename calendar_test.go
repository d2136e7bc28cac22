package timetable_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/testutil"
)

func TestServicesFor(t *testing.T) {
	s := testutil.CaltrainSchedule(t)
	tz := s.Timezone()

	for _, tc := range []struct {
		name     string
		date     time.Time
		expected map[model.ServiceID]bool
	}{
		{
			"weekday",
			time.Date(2020, 7, 2, 12, 0, 0, 0, tz),
			map[model.ServiceID]bool{"c_wk": true},
		},
		{
			"weekday replaced by weekend schedule",
			time.Date(2020, 7, 3, 12, 0, 0, 0, tz),
			map[model.ServiceID]bool{"c_we": true},
		},
		{
			"saturday",
			time.Date(2020, 7, 4, 0, 0, 0, 0, tz),
			map[model.ServiceID]bool{"c_we": true},
		},
		{
			"first day of range",
			time.Date(2020, 1, 1, 8, 0, 0, 0, tz),
			map[model.ServiceID]bool{"c_wk": true},
		},
		{
			"end date is excluded",
			time.Date(2020, 12, 31, 8, 0, 0, 0, tz),
			map[model.ServiceID]bool{},
		},
		{
			"before range",
			time.Date(2019, 12, 31, 8, 0, 0, 0, tz),
			map[model.ServiceID]bool{},
		},
		{
			// 05:00 UTC on the 3rd is still the evening of the 2nd
			// in California.
			"observed in agency timezone",
			time.Date(2020, 7, 3, 5, 0, 0, 0, time.UTC),
			map[model.ServiceID]bool{"c_wk": true},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, s.ServicesFor(tc.date))
		})
	}
}

func TestServicesForExceptionsOnly(t *testing.T) {
	files := testutil.CaltrainFiles()
	delete(files, "calendar.txt")
	files["calendar_dates.txt"] = []string{
		"service_id,date,exception_type",
		"c_wk,20200702,1",
		"c_we,20200704,1",
		"c_we,20200704,2",
		"c_wk,20200704,2",
		"c_wk,20200704,1",
	}
	s := testutil.BuildSchedule(t, files)
	tz := s.Timezone()

	assert.Equal(t, map[model.ServiceID]bool{"c_wk": true}, s.ServicesFor(time.Date(2020, 7, 2, 9, 0, 0, 0, tz)))
	assert.Equal(t, map[model.ServiceID]bool{}, s.ServicesFor(time.Date(2020, 7, 3, 9, 0, 0, 0, tz)))

	// Exceptions apply in table order.
	assert.Equal(t, map[model.ServiceID]bool{"c_wk": true}, s.ServicesFor(time.Date(2020, 7, 4, 9, 0, 0, 0, tz)))
}

func TestServicesForNow(t *testing.T) {
	tz, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	now := time.Date(2020, 7, 4, 15, 0, 0, 0, tz)
	s := testutil.CaltrainSchedule(t, timetable.WithClock(func() time.Time { return now }))
	assert.Equal(t, map[model.ServiceID]bool{"c_we": true}, s.ServicesForNow())
}

func TestStartOfDayAndParseDate(t *testing.T) {
	s := testutil.CaltrainSchedule(t)
	tz := s.Timezone()

	assert.Equal(t,
		time.Date(2020, 7, 2, 0, 0, 0, 0, tz),
		s.StartOfDay(time.Date(2020, 7, 3, 5, 0, 0, 0, time.UTC)),
	)

	d, err := s.ParseDate("20200703")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 7, 3, 0, 0, 0, 0, tz), d)

	_, err = s.ParseDate("2020-07-03")
	assert.Error(t, err)
}

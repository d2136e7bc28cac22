package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable/model"
)

func TestParseTimeOfDay(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected time.Duration
		err      bool
	}{
		{"08:05:30", 8*time.Hour + 5*time.Minute + 30*time.Second, false},
		{"8:05:30", 8*time.Hour + 5*time.Minute + 30*time.Second, false},
		{" 23:59:59 ", 23*time.Hour + 59*time.Minute + 59*time.Second, false},
		{"24:10:00", 24*time.Hour + 10*time.Minute, false},
		{"00:00:00", 0, false},
		{"08:05", 0, true},
		{"08:60:00", 0, true},
		{"08:00:60", 0, true},
		{"aa:00:00", 0, true},
		{"", 0, true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			d, err := model.ParseTimeOfDay(tc.in)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestOnServiceDay(t *testing.T) {
	tz, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		date     time.Time
		offset   time.Duration
		expected time.Time
	}{
		{
			"regular day",
			time.Date(2020, 7, 2, 15, 0, 0, 0, tz),
			8 * time.Hour,
			time.Date(2020, 7, 2, 8, 0, 0, 0, tz),
		},
		{
			"past midnight",
			time.Date(2020, 7, 2, 0, 0, 0, 0, tz),
			24*time.Hour + 10*time.Minute,
			time.Date(2020, 7, 3, 0, 10, 0, 0, tz),
		},
		{
			// Clocks go forward at 2AM. Wall clock times still
			// line up with the offsets.
			"spring forward",
			time.Date(2020, 3, 8, 12, 0, 0, 0, tz),
			8 * time.Hour,
			time.Date(2020, 3, 8, 8, 0, 0, 0, tz),
		},
		{
			"spring forward, early morning",
			time.Date(2020, 3, 8, 12, 0, 0, 0, tz),
			1 * time.Hour,
			time.Date(2020, 3, 8, 0, 0, 0, 0, tz),
		},
		{
			"fall back",
			time.Date(2020, 11, 1, 12, 0, 0, 0, tz),
			8 * time.Hour,
			time.Date(2020, 11, 1, 8, 0, 0, 0, tz),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := model.OnServiceDay(tc.date, tc.offset)
			assert.True(t, tc.expected.Equal(got), "expected %s, got %s", tc.expected, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	d, err := model.ParseDirection("North")
	require.NoError(t, err)
	assert.Equal(t, model.North, d)

	_, err = model.ParseDirection("north")
	assert.Error(t, err)
}

func TestSelectionToggle(t *testing.T) {
	sel := model.NewSelection("Millbrae")
	toggled := sel.Toggle("Palo Alto").Toggle("Millbrae")

	assert.Equal(t, []model.StopName{"Millbrae"}, sel.Names())
	assert.Equal(t, []model.StopName{"Palo Alto"}, toggled.Names())
	assert.True(t, toggled.Has("Palo Alto"))
	assert.False(t, toggled.Has("Millbrae"))

	ref := toggled.WithReference("Palo Alto")
	assert.Equal(t, model.StopName("Palo Alto"), ref.Reference)
	assert.Equal(t, model.StopName("Palo Alto"), ref.Toggle("Millbrae").Reference)

	assert.True(t, model.NewSelection("a", "b").Equal(model.NewSelection("b", "a")))
	assert.False(t, model.NewSelection("a").Equal(model.NewSelection("a").WithReference("a")))
	assert.False(t, model.NewSelection("a").Equal(model.NewSelection("b")))
}

func TestStopsToShow(t *testing.T) {
	line := []*model.Stop{}
	for _, name := range []model.StopName{"A", "B", "C", "D", "E", "F", "G"} {
		line = append(line, &model.Stop{Name: name})
	}

	for _, tc := range []struct {
		name     string
		checked  []model.StopName
		expected []model.StopName
	}{
		{"nothing checked", nil, []model.StopName{}},
		{"first stop", []model.StopName{"A"}, []model.StopName{"A", "B"}},
		{"middle stop", []model.StopName{"D"}, []model.StopName{"C", "D", "E"}},
		{"last stop", []model.StopName{"G"}, []model.StopName{"F", "G"}},
		{"adjacent", []model.StopName{"C", "D"}, []model.StopName{"B", "C", "D", "E"}},
		{"one apart", []model.StopName{"B", "D"}, []model.StopName{"A", "B", "C", "D", "E"}},
		{"far apart collapses", []model.StopName{"B", "F"}, []model.StopName{"A", "B", "C", "F", "G"}},
		{"ends", []model.StopName{"A", "G"}, []model.StopName{"A", "B", "G"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sel := model.NewSelection(tc.checked...)
			assert.Equal(t, tc.expected, sel.StopsToShow(line))
		})
	}
}

func TestShowDate(t *testing.T) {
	tz, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	now := time.Date(2020, 7, 3, 22, 30, 0, 0, tz)

	for _, tc := range []struct {
		in       string
		str      string
		resolved time.Time
	}{
		{"today", "today", now},
		{"", "today", now},
		{"tomorrow", "tomorrow", time.Date(2020, 7, 4, 0, 0, 0, 0, tz)},
		{"2020-12-24", "2020-12-24", time.Date(2020, 12, 24, 0, 0, 0, 0, tz)},
	} {
		t.Run(tc.str, func(t *testing.T) {
			d, err := model.ParseShowDate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.str, d.String())
			assert.True(t, tc.resolved.Equal(d.Resolve(now, tz)))
		})
	}

	_, err = model.ParseShowDate("next week")
	assert.Error(t, err)

	assert.True(t, model.ShowDateOn(2020, 7, 3).Equal(model.ShowDateOn(2020, 7, 3)))
	assert.False(t, model.ShowDateOn(2020, 7, 3).Equal(model.ShowDateOn(2021, 7, 3)))
	assert.False(t, model.Today.Equal(model.Tomorrow))

	// Tomorrow follows the clock in the given location.
	utcNow := time.Date(2020, 7, 4, 3, 0, 0, 0, time.UTC)
	assert.True(t, time.Date(2020, 7, 4, 0, 0, 0, 0, tz).Equal(model.Tomorrow.Resolve(utcNow, tz)))
}

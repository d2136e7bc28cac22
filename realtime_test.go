package timetable_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/downloader"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/parse"
	"tidbyt.dev/timetable/testutil"
)

// 2020-07-03 09:00 PDT
const feedTimestamp = 1593792000

func decode(t *testing.T, buf []byte) *parse.FeedMessage {
	feed, err := parse.DecodeFeed(buf)
	require.NoError(t, err)
	return feed
}

func TestExtractUpdatesTripUpdates(t *testing.T) {
	feed := decode(t, testutil.BuildFeed(t, feedTimestamp,
		testutil.TripUpdateEntity("e1", "101",
			testutil.StopDeparture{StopID: "70012", Time: feedTimestamp + 120, Delay: 120},
			testutil.StopDeparture{StopID: "70022", Time: 0, Delay: 60},
			testutil.StopDeparture{StopID: "70062", Time: feedTimestamp + 900, Delay: -45},
		),
		testutil.TripUpdateEntity("e2", "102",
			testutil.StopDeparture{StopID: "", Time: feedTimestamp + 60},
		),
	))

	u := timetable.ExtractUpdates(feed, "CT", time.Unix(feedTimestamp, 0))
	assert.Equal(t, []model.TripUpdate{
		{
			Key:       model.TripStopKey{TripID: "101", StopID: "70012"},
			Departure: time.Unix(feedTimestamp+120, 0),
			Delay:     2,
		},
		{
			Key:       model.TripStopKey{TripID: "101", StopID: "70062"},
			Departure: time.Unix(feedTimestamp+900, 0),
			Delay:     0,
		},
	}, u.TripUpdates)
	assert.Equal(t, 2, u.Len())
}

func TestExtractUpdatesAlerts(t *testing.T) {
	now := time.Unix(feedTimestamp, 0)
	feed := decode(t, testutil.BuildFeed(t, feedTimestamp,
		testutil.AlertEntity("active", "CT", "Delays at SF", feedTimestamp-3600, feedTimestamp+3600),
		testutil.AlertEntity("other agency", "SM", "Bus bridge", feedTimestamp-3600, feedTimestamp+3600),
		testutil.AlertEntity("expired", "CT", "Old news", feedTimestamp-7200, feedTimestamp-3600),
		testutil.AlertEntity("future", "CT", "Weekend work", feedTimestamp+3600, 0),
		testutil.AlertEntity("open ended", "CT", "Elevator out", 0, 0),
	))

	u := timetable.ExtractUpdates(feed, "CT", now)
	require.Equal(t, 2, len(u.Alerts))

	a := u.Alerts[0]
	assert.Equal(t, "active", a.ID)
	assert.Equal(t, "Delays at SF", a.Header)
	assert.Equal(t, "Delays at SF (details)", a.Description)
	assert.Equal(t, "MAINTENANCE", a.Cause)
	assert.Equal(t, "SIGNIFICANT_DELAYS", a.Effect)
	assert.Equal(t, []model.RouteID{"L1"}, a.RouteIDs)
	assert.Equal(t, []model.StopID{"70012"}, a.StopIDs)
	assert.Equal(t, time.Unix(feedTimestamp-3600, 0), a.ActiveSince)
	assert.Equal(t, time.Unix(feedTimestamp+3600, 0), a.ActiveUntil)

	b := u.Alerts[1]
	assert.Equal(t, "open ended", b.ID)
	assert.True(t, b.ActiveSince.IsZero())
	assert.True(t, b.ActiveUntil.IsZero())
}

func TestExtractUpdatesVehicles(t *testing.T) {
	feed := decode(t, testutil.BuildFeed(t, feedTimestamp,
		testutil.VehicleEntity("v1", "101", "70022", 37.7575, -122.3926, feedTimestamp-30),
	))

	u := timetable.ExtractUpdates(feed, "CT", time.Unix(feedTimestamp, 0))
	require.Equal(t, 1, len(u.Vehicles))
	v := u.Vehicles[0]
	assert.Equal(t, model.TripID("101"), v.TripID)
	assert.Equal(t, model.StopID("70022"), v.StopID)
	assert.InDelta(t, 37.7575, v.Lat, 0.0001)
	assert.InDelta(t, -122.3926, v.Lon, 0.0001)
	assert.Equal(t, time.Unix(feedTimestamp-30, 0), v.Timestamp)
}

// Serves the three realtime feeds. Paths listed in failing respond
// with 500.
type realtimeServer struct {
	mutex   sync.Mutex
	feeds   map[string][]byte
	failing map[string]bool
	queries []string
}

func (s *realtimeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.queries = append(s.queries, r.URL.RawQuery)
	name := strings.TrimPrefix(r.URL.Path, "/transit/")
	if s.failing[name] {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, found := s.feeds[name]
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Write(body)
}

func newRealtimeServer(t *testing.T) (*realtimeServer, *httptest.Server) {
	rs := &realtimeServer{
		feeds: map[string][]byte{
			"tripupdates": testutil.BuildFeed(t, feedTimestamp,
				testutil.TripUpdateEntity("e1", "101",
					testutil.StopDeparture{StopID: "70012", Time: feedTimestamp + 120, Delay: 120},
				),
			),
			"servicealerts": testutil.BuildFeed(t, feedTimestamp+15,
				testutil.AlertEntity("a1", "CT", "Delays", 0, 0),
			),
			"vehiclepositions": testutil.BuildFeed(t, feedTimestamp-15,
				testutil.VehicleEntity("v1", "101", "70012", 37.7764, -122.3943, feedTimestamp-15),
			),
		},
		failing: map[string]bool{},
	}
	server := httptest.NewServer(rs)
	t.Cleanup(server.Close)
	return rs, server
}

func newTestFetcher(baseURL string) *timetable.Fetcher {
	f := timetable.NewFetcher(baseURL+"/transit", "secret", "", downloader.NewMemoryDownloader())
	f.TimeNow = func() time.Time { return time.Unix(feedTimestamp, 0) }
	f.Metrics = metrics.New()
	return f
}

func TestFetcherURL(t *testing.T) {
	f := timetable.NewFetcher("", "k3y", "", nil)
	url, err := f.URL(timetable.AlertsFeed)
	require.NoError(t, err)
	assert.Equal(t, "https://api.511.org/transit/servicealerts?agency=CT&api_key=k3y", url)

	assert.Equal(t, "tripupdates", timetable.TripUpdatesFeed.String())
	assert.Equal(t, "vehiclepositions", timetable.VehiclePositionsFeed.String())
}

func TestFetcherFetchAll(t *testing.T) {
	rs, server := newRealtimeServer(t)
	f := newTestFetcher(server.URL)

	results := f.FetchAll(context.Background())
	require.Equal(t, 3, len(results))
	for i, kind := range timetable.FeedKinds {
		assert.Equal(t, kind, results[i].Kind)
		assert.NoError(t, results[i].Err)
	}
	assert.Equal(t, 1, len(results[0].Updates.TripUpdates))
	assert.Equal(t, 1, len(results[1].Updates.Alerts))
	assert.Equal(t, 1, len(results[2].Updates.Vehicles))
	assert.Equal(t, time.Unix(feedTimestamp+15, 0), results[1].Timestamp)

	rs.mutex.Lock()
	queries := append([]string{}, rs.queries...)
	rs.mutex.Unlock()
	require.Equal(t, 3, len(queries))
	for _, q := range queries {
		assert.Contains(t, q, "api_key=secret")
		assert.Contains(t, q, "agency=CT")
	}

	batch, err := timetable.MergeResults(results, time.Unix(feedTimestamp+30, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, time.Unix(feedTimestamp+15, 0), batch.Timestamp)
	assert.Equal(t, 1, len(batch.TripUpdates))
	assert.Equal(t, 1, len(batch.Alerts))
	assert.Equal(t, 1, len(batch.Vehicles))
	assert.Nil(t, batch.Failed)
}

func TestFetcherPartialFailure(t *testing.T) {
	rs, server := newRealtimeServer(t)
	rs.failing["vehiclepositions"] = true
	rs.feeds["servicealerts"] = []byte("garbage that is not a feed")
	f := newTestFetcher(server.URL)

	results := f.FetchAll(context.Background())
	require.NoError(t, results[0].Err)

	var fetchErr *timetable.FetchError
	require.True(t, errors.As(results[1].Err, &fetchErr))
	assert.Equal(t, timetable.AlertsFeed, fetchErr.Kind)
	require.True(t, errors.As(results[2].Err, &fetchErr))
	assert.Equal(t, timetable.VehiclePositionsFeed, fetchErr.Kind)
	assert.ErrorContains(t, results[2].Err, "status 500")

	batch, err := timetable.MergeResults(results, time.Unix(feedTimestamp+30, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"servicealerts", "vehiclepositions"}, batch.Failed)
	assert.Equal(t, time.Unix(feedTimestamp, 0), batch.Timestamp)
	assert.Equal(t, 1, len(batch.TripUpdates))
}

func TestFetcherAllFail(t *testing.T) {
	rs, server := newRealtimeServer(t)
	for _, kind := range timetable.FeedKinds {
		rs.failing[kind.String()] = true
	}
	f := newTestFetcher(server.URL)

	_, err := timetable.MergeResults(f.FetchAll(context.Background()), time.Unix(feedTimestamp, 0))
	require.Error(t, err)
	assert.ErrorContains(t, err, "all realtime feeds failed")

	var fetchErr *timetable.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestMergeResults(t *testing.T) {
	now := time.Unix(feedTimestamp, 0)
	update := func(trip string) timetable.Updates {
		return timetable.Updates{TripUpdates: []model.TripUpdate{
			{Key: model.TripStopKey{TripID: model.TripID(trip), StopID: "70012"}},
		}}
	}

	// Merged in feed order regardless of result order.
	batch, err := timetable.MergeResults([]timetable.FeedResult{
		{Kind: timetable.VehiclePositionsFeed, Updates: update("3")},
		{Kind: timetable.TripUpdatesFeed, Updates: update("1")},
		{Kind: timetable.AlertsFeed, Updates: update("2")},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, len(batch.TripUpdates))
	for i, trip := range []model.TripID{"1", "2", "3"} {
		assert.Equal(t, trip, batch.TripUpdates[i].Key.TripID)
	}

	// Without feed timestamps the batch is stamped now.
	assert.Equal(t, now, batch.Timestamp)

	batch, err = timetable.MergeResults(nil, now)
	require.NoError(t, err)
	assert.Equal(t, now, batch.Timestamp)

	other, err := timetable.MergeResults(nil, now)
	require.NoError(t, err)
	assert.NotEqual(t, batch.ID, other.ID)

	_, err = timetable.MergeResults([]timetable.FeedResult{
		{Kind: timetable.TripUpdatesFeed, Err: fmt.Errorf("boom")},
	}, now)
	assert.ErrorContains(t, err, "boom")

	// Empty feeds still stamp the batch with their header timestamp.
	batch, err = timetable.MergeResults([]timetable.FeedResult{
		{Kind: timetable.TripUpdatesFeed, Timestamp: now.Add(-3 * time.Minute)},
		{Kind: timetable.AlertsFeed, Timestamp: now.Add(-2 * time.Minute)},
		{Kind: timetable.VehiclePositionsFeed, Timestamp: now.Add(time.Minute), Err: fmt.Errorf("down")},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, len(batch.TripUpdates))
	assert.Equal(t, now.Add(-2*time.Minute), batch.Timestamp)
	assert.Equal(t, []string{"vehiclepositions"}, batch.Failed)
}

package timetable_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/state"
)

func TestNextFetch(t *testing.T) {
	now := time.Date(2020, 7, 3, 9, 0, 30, 0, time.UTC)

	for _, tc := range []struct {
		name     string
		ts       time.Time
		expected time.Time
	}{
		{"one minute after feed timestamp", now.Add(-10 * time.Second), now.Add(50 * time.Second)},
		{"fresh feed", now, now.Add(time.Minute)},
		{"stale feed waits the minimum delay", now.Add(-5 * time.Minute), now.Add(10 * time.Second)},
		{"exactly at the floor", now.Add(-50 * time.Second), now.Add(10 * time.Second)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, timetable.NextFetch(tc.ts, now, time.Minute, 10*time.Second))
		})
	}
}

// Returns canned results, one set per call, repeating the last.
type fakeFetcher struct {
	mutex   sync.Mutex
	results [][]timetable.FeedResult
	calls   int
}

func (f *fakeFetcher) FetchAll(ctx context.Context) []timetable.FeedResult {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i]
}

// Reduces events like a Store, and hands each to the test.
type recordingDispatcher struct {
	mutex  sync.Mutex
	state  state.State
	events chan state.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{state: state.New(), events: make(chan state.Event, 64)}
}

func (d *recordingDispatcher) Dispatch(ev state.Event) state.State {
	d.mutex.Lock()
	d.state = state.Reduce(d.state, ev)
	s := d.state
	d.mutex.Unlock()

	// Never block the poller; tests read far fewer events than fit.
	select {
	case d.events <- ev:
	default:
	}
	return s
}

func (d *recordingDispatcher) State() state.State {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.state
}

func (d *recordingDispatcher) next(t *testing.T) state.Event {
	t.Helper()
	select {
	case ev := <-d.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func startPoller(t *testing.T, p *timetable.Poller) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("poller didn't stop")
		}
	}
}

func TestPollerCycle(t *testing.T) {
	now := time.Unix(feedTimestamp, 0)
	fetcher := &fakeFetcher{results: [][]timetable.FeedResult{{
		{
			Kind:      timetable.TripUpdatesFeed,
			Timestamp: now.Add(-20 * time.Second),
			Updates: timetable.Updates{TripUpdates: []model.TripUpdate{{
				Key:       model.TripStopKey{TripID: "101", StopID: "70012"},
				Departure: now.Add(2 * time.Minute),
				Delay:     2,
			}}},
		},
		{Kind: timetable.AlertsFeed, Timestamp: now.Add(-5 * time.Second)},
		{Kind: timetable.VehiclePositionsFeed, Err: errors.New("vehicles down")},
	}}}
	d := newRecordingDispatcher()

	p := timetable.NewPoller(fetcher, d)
	p.TimeNow = func() time.Time { return now }
	stop := startPoller(t, p)
	defer stop()

	phase, _ := p.Phase()
	assert.Equal(t, state.Idle, phase)

	p.Request()

	requested, ok := d.next(t).(state.RealtimeRequested)
	require.True(t, ok)
	assert.NotEmpty(t, requested.Cycle)

	fetched, ok := d.next(t).(state.RealtimeFetched)
	require.True(t, ok)
	assert.Equal(t, requested.Cycle, fetched.Cycle)
	assert.Equal(t, now.Add(-5*time.Second), fetched.Batch.Timestamp)
	assert.Equal(t, []string{"vehiclepositions"}, fetched.Batch.Failed)

	scheduled, ok := d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)
	assert.Equal(t, now.Add(55*time.Second), scheduled.At)

	phase, next := p.Phase()
	assert.Equal(t, state.Scheduled, phase)
	assert.Equal(t, now.Add(55*time.Second), next)

	s := d.State()
	assert.Equal(t, state.Scheduled, s.Fetch.Phase)
	assert.Equal(t, 0, s.Fetch.InFlight)
	assert.Equal(t, 1, len(s.TripUpdates))
	assert.Equal(t, []string{"vehiclepositions"}, s.FailedFeeds)

	// A manual request doesn't wait for the timer.
	p.Request()
	_, ok = d.next(t).(state.RealtimeRequested)
	require.True(t, ok)
	_, ok = d.next(t).(state.RealtimeFetched)
	require.True(t, ok)
	_, ok = d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)
}

func TestPollerFailureBacksOff(t *testing.T) {
	now := time.Unix(feedTimestamp, 0)
	failed := []timetable.FeedResult{}
	for _, kind := range timetable.FeedKinds {
		failed = append(failed, timetable.FeedResult{Kind: kind, Err: errors.New("down")})
	}
	fetcher := &fakeFetcher{results: [][]timetable.FeedResult{failed}}
	d := newRecordingDispatcher()

	p := timetable.NewPoller(fetcher, d)
	p.TimeNow = func() time.Time { return now }
	p.MinDelay = time.Hour
	p.MaxBackoff = 4 * time.Hour
	stop := startPoller(t, p)
	defer stop()

	p.Request()
	_, ok := d.next(t).(state.RealtimeRequested)
	require.True(t, ok)

	failedEv, ok := d.next(t).(state.RealtimeFailed)
	require.True(t, ok)
	assert.Contains(t, failedEv.Err, "all realtime feeds failed")

	scheduled, ok := d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)

	// First backoff is MinDelay, randomized by up to half.
	delay := scheduled.At.Sub(now)
	assert.GreaterOrEqual(t, delay, 30*time.Minute)
	assert.LessOrEqual(t, delay, 90*time.Minute)

	s := d.State()
	assert.Equal(t, state.Scheduled, s.Fetch.Phase)
	assert.Contains(t, s.LastError, "down")
	assert.True(t, s.LastUpdated.IsZero())
}

func TestPollerTimerFires(t *testing.T) {
	// With a feed timestamp far in the past, the next cycle is due
	// MinDelay after the first settles.
	fetcher := &fakeFetcher{results: [][]timetable.FeedResult{{
		{Kind: timetable.TripUpdatesFeed, Timestamp: time.Unix(feedTimestamp, 0)},
	}}}
	d := newRecordingDispatcher()

	p := timetable.NewPoller(fetcher, d)
	p.MinDelay = 20 * time.Millisecond
	stop := startPoller(t, p)
	defer stop()

	p.Request()
	for i := 0; i < 2; i++ {
		_, ok := d.next(t).(state.RealtimeRequested)
		require.True(t, ok)
		_, ok = d.next(t).(state.RealtimeFetched)
		require.True(t, ok)
		_, ok = d.next(t).(state.RealtimeScheduled)
		require.True(t, ok)
	}

	fetcher.mutex.Lock()
	assert.GreaterOrEqual(t, fetcher.calls, 2)
	fetcher.mutex.Unlock()
}

// Blocks every FetchAll until release is closed.
type gatedFetcher struct {
	release chan struct{}
	result  []timetable.FeedResult

	mutex sync.Mutex
	calls int
}

func (f *gatedFetcher) FetchAll(ctx context.Context) []timetable.FeedResult {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()

	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return f.result
}

func (d *recordingDispatcher) quiet(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-d.events:
		t.Fatalf("unexpected event %T", ev)
	case <-time.After(wait):
	}
}

func TestPollerRequestWhileFetching(t *testing.T) {
	now := time.Unix(feedTimestamp, 0)
	fetcher := &gatedFetcher{
		release: make(chan struct{}),
		result: []timetable.FeedResult{{
			Kind:      timetable.TripUpdatesFeed,
			Timestamp: now,
			Updates: timetable.Updates{TripUpdates: []model.TripUpdate{{
				Key:       model.TripStopKey{TripID: "101", StopID: "70012"},
				Departure: now.Add(time.Minute),
			}}},
		}},
	}
	d := newRecordingDispatcher()

	p := timetable.NewPoller(fetcher, d)
	p.TimeNow = func() time.Time { return now }
	stop := startPoller(t, p)
	defer stop()

	cycles := []string{}
	for i := 0; i < 2; i++ {
		p.Request()
		requested, ok := d.next(t).(state.RealtimeRequested)
		require.True(t, ok)
		cycles = append(cycles, requested.Cycle)
	}
	assert.NotEqual(t, cycles[0], cycles[1])

	s := d.State()
	assert.Equal(t, state.Fetching, s.Fetch.Phase)
	assert.Equal(t, 2, s.Fetch.InFlight)

	// Both fetches are still running; neither was cancelled.
	close(fetcher.release)

	fetched := []string{}
	for len(fetched) < 2 {
		switch ev := d.next(t).(type) {
		case state.RealtimeFetched:
			fetched = append(fetched, ev.Cycle)
		case state.RealtimeScheduled:
		default:
			t.Fatalf("unexpected event %T", ev)
		}
	}
	assert.ElementsMatch(t, cycles, fetched)

	_, ok := d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)

	s = d.State()
	assert.Equal(t, state.Scheduled, s.Fetch.Phase)
	assert.Equal(t, 0, s.Fetch.InFlight)
	assert.Equal(t, 1, len(s.TripUpdates))

	phase, next := p.Phase()
	assert.Equal(t, state.Scheduled, phase)
	assert.Equal(t, now.Add(time.Minute), next)

	fetcher.mutex.Lock()
	assert.Equal(t, 2, fetcher.calls)
	fetcher.mutex.Unlock()
}

func TestPollerRequestCancelsTimer(t *testing.T) {
	// The first cycle arms a short timer; the second, a long one.
	now := time.Unix(feedTimestamp, 0)
	fetcher := &fakeFetcher{results: [][]timetable.FeedResult{
		{{Kind: timetable.TripUpdatesFeed, Timestamp: now.Add(-time.Hour)}},
		{{Kind: timetable.TripUpdatesFeed, Timestamp: now}},
	}}
	d := newRecordingDispatcher()

	p := timetable.NewPoller(fetcher, d)
	p.TimeNow = func() time.Time { return now }
	p.Interval = time.Hour
	p.MinDelay = 200 * time.Millisecond
	stop := startPoller(t, p)
	defer stop()

	p.Request()
	_, ok := d.next(t).(state.RealtimeRequested)
	require.True(t, ok)
	_, ok = d.next(t).(state.RealtimeFetched)
	require.True(t, ok)
	scheduled, ok := d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)
	assert.Equal(t, now.Add(200*time.Millisecond), scheduled.At)

	p.Request()
	_, ok = d.next(t).(state.RealtimeRequested)
	require.True(t, ok)
	_, ok = d.next(t).(state.RealtimeFetched)
	require.True(t, ok)
	scheduled, ok = d.next(t).(state.RealtimeScheduled)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), scheduled.At)

	// Had the first timer survived, a third cycle would start here.
	d.quiet(t, 600*time.Millisecond)

	fetcher.mutex.Lock()
	assert.Equal(t, 2, fetcher.calls)
	fetcher.mutex.Unlock()
}

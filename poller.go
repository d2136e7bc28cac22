package timetable

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/state"
)

const (
	// Next fetch is this long after the newest feed timestamp.
	DefaultPollInterval = 1 * time.Minute

	// Lower bound on the delay between a fetch settling and the
	// next one, so a stale feed timestamp can't cause a busy loop.
	DefaultPollMinDelay = 10 * time.Second

	DefaultPollMaxBackoff = 5 * time.Minute
)

type FeedFetcher interface {
	FetchAll(ctx context.Context) []FeedResult
}

type Dispatcher interface {
	Dispatch(ev state.Event) state.State
}

type cycleResult struct {
	cycle string
	batch model.Batch
	err   error
}

// Drives realtime fetching. Each cycle fetches all feeds, dispatches
// the outcome, and arms a timer for the next cycle. Request starts a
// cycle right away, dropping any armed timer; cycles already in
// flight are left to finish.
type Poller struct {
	Fetcher    FeedFetcher
	Store      Dispatcher
	Interval   time.Duration
	MinDelay   time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	TimeNow    func() time.Time

	requests chan struct{}
	done     chan cycleResult

	mutex   sync.Mutex
	phase   state.FetchPhase
	next    time.Time
	running int
}

func NewPoller(fetcher FeedFetcher, store Dispatcher) *Poller {
	return &Poller{
		Fetcher:    fetcher,
		Store:      store,
		Interval:   DefaultPollInterval,
		MinDelay:   DefaultPollMinDelay,
		MaxBackoff: DefaultPollMaxBackoff,
		Logger:     slog.Default(),
		TimeNow:    time.Now,
		requests:   make(chan struct{}, 1),
		done:       make(chan cycleResult),
	}
}

// Current phase, and when the next cycle is due if one is scheduled.
func (p *Poller) Phase() (state.FetchPhase, time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.phase, p.next
}

// Asks for a fetch now. Requests made while one is already pending
// are coalesced.
func (p *Poller) Request() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// When the next cycle should start, given the timestamp of the batch
// just merged.
func NextFetch(batchTimestamp, now time.Time, interval, minDelay time.Duration) time.Time {
	next := batchTimestamp.Add(interval)
	if floor := now.Add(minDelay); next.Before(floor) {
		return floor
	}
	return next
}

// Runs until ctx is cancelled. Starts Idle; nothing is fetched until
// the first Request.
func (p *Poller) Run(ctx context.Context) error {
	logger := logging.OrDefault(p.Logger)

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.MinDelay),
		backoff.WithMaxInterval(p.MaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)

	var wg sync.WaitGroup
	defer wg.Wait()

	var timer *time.Timer
	var timerC <-chan time.Time
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	defer disarm()

	start := func() {
		disarm()
		cycle := uuid.NewString()

		p.mutex.Lock()
		p.phase = state.Fetching
		p.next = time.Time{}
		p.running++
		p.mutex.Unlock()

		p.Store.Dispatch(state.RealtimeRequested{Cycle: cycle, At: p.TimeNow()})

		wg.Add(1)
		go func() {
			defer wg.Done()
			results := p.Fetcher.FetchAll(ctx)
			batch, err := MergeResults(results, p.TimeNow())
			select {
			case p.done <- cycleResult{cycle, batch, err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-p.requests:
			start()

		case <-timerC:
			timer, timerC = nil, nil
			start()

		case res := <-p.done:
			now := p.TimeNow()
			var next time.Time
			if res.err != nil {
				p.Store.Dispatch(state.RealtimeFailed{Cycle: res.cycle, Err: res.err.Error(), At: now})
				next = now.Add(b.NextBackOff())
				logging.LogError(logger, "realtime cycle failed", res.err,
					slog.String("cycle", res.cycle),
					slog.Time("next", next))
			} else {
				p.Store.Dispatch(state.RealtimeFetched{Cycle: res.cycle, Batch: res.batch})
				b.Reset()
				next = NextFetch(res.batch.Timestamp, now, p.Interval, p.MinDelay)
				p.Metrics.SetStaleness(now.Sub(res.batch.Timestamp))
				logging.LogOperation(logger, "realtime cycle",
					slog.String("cycle", res.cycle),
					slog.Int("trip_updates", len(res.batch.TripUpdates)),
					slog.Int("alerts", len(res.batch.Alerts)),
					slog.Int("vehicles", len(res.batch.Vehicles)),
					slog.Time("next", next))
			}

			delay := next.Sub(now)
			p.Metrics.ObserveCycle(res.err, delay)

			disarm()
			timer = time.NewTimer(delay)
			timerC = timer.C

			p.mutex.Lock()
			p.running--
			if p.running == 0 {
				p.phase = state.Scheduled
				p.next = next
			}
			p.mutex.Unlock()

			p.Store.Dispatch(state.RealtimeScheduled{At: next})
		}
	}
}

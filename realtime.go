package timetable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tidbyt.dev/timetable/downloader"
	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/parse"
)

const (
	DefaultRealtimeBaseURL = "https://api.511.org/transit"
	DefaultRealtimeAgency  = "CT"
	DefaultRealtimeTimeout = 30 * time.Second
	DefaultRealtimeMaxSize = 1 << 20 // 1 MB
)

type FeedKind int

const (
	TripUpdatesFeed FeedKind = iota
	AlertsFeed
	VehiclePositionsFeed
)

// In merge order.
var FeedKinds = []FeedKind{TripUpdatesFeed, AlertsFeed, VehiclePositionsFeed}

// Also the endpoint path below the base URL.
func (k FeedKind) String() string {
	switch k {
	case TripUpdatesFeed:
		return "tripupdates"
	case AlertsFeed:
		return "servicealerts"
	case VehiclePositionsFeed:
		return "vehiclepositions"
	}
	return fmt.Sprintf("feed%d", int(k))
}

// Records extracted from one or more decoded feeds.
type Updates struct {
	TripUpdates []model.TripUpdate
	Alerts      []model.ServiceAlert
	Vehicles    []model.VehiclePosition
}

func (u Updates) Len() int {
	return len(u.TripUpdates) + len(u.Alerts) + len(u.Vehicles)
}

// Pulls typed records out of a decoded feed.
//
// Stop time updates without a departure time are dropped. Alerts are
// kept only if they name agency and now falls inside one of their
// active periods (an alert without periods is always active).
func ExtractUpdates(feed *parse.FeedMessage, agency string, now time.Time) Updates {
	u := Updates{}

	for _, entity := range feed.Entities {
		if entity.IsDeleted {
			continue
		}

		if tu := entity.TripUpdate; tu != nil {
			for _, stu := range tu.StopTimeUpdates {
				if stu.Departure == nil || stu.Departure.Time == 0 || stu.StopID == "" {
					continue
				}
				u.TripUpdates = append(u.TripUpdates, model.TripUpdate{
					Key: model.TripStopKey{
						TripID: model.TripID(tu.Trip.TripID),
						StopID: model.StopID(stu.StopID),
					},
					Departure: time.Unix(stu.Departure.Time, 0),
					Delay:     int(stu.Departure.Delay / 60),
				})
			}
		}

		if a := entity.Alert; a != nil {
			if alert, ok := extractAlert(entity.ID, a, agency, now); ok {
				u.Alerts = append(u.Alerts, alert)
			}
		}

		if v := entity.Vehicle; v != nil {
			vp := model.VehiclePosition{
				StopID:    model.StopID(v.StopID),
				Timestamp: time.Unix(int64(v.Timestamp), 0),
			}
			if v.Trip != nil {
				vp.TripID = model.TripID(v.Trip.TripID)
			}
			if v.Position != nil {
				vp.Lat = float64(v.Position.Latitude)
				vp.Lon = float64(v.Position.Longitude)
			}
			u.Vehicles = append(u.Vehicles, vp)
		}
	}

	return u
}

func extractAlert(id string, a *parse.Alert, agency string, now time.Time) (model.ServiceAlert, bool) {
	named := false
	alert := model.ServiceAlert{
		ID:          id,
		Cause:       a.Cause.String(),
		Effect:      a.Effect.String(),
		Header:      a.HeaderText.English(),
		Description: a.DescriptionText.English(),
		URL:         a.URL.English(),
	}
	for _, e := range a.InformedEntities {
		if e.AgencyID == agency {
			named = true
		}
		if e.RouteID != "" {
			alert.RouteIDs = append(alert.RouteIDs, model.RouteID(e.RouteID))
		}
		if e.StopID != "" {
			alert.StopIDs = append(alert.StopIDs, model.StopID(e.StopID))
		}
	}
	if !named {
		return alert, false
	}

	if len(a.ActivePeriods) == 0 {
		return alert, true
	}

	ts := uint64(now.Unix())
	for _, p := range a.ActivePeriods {
		if (p.Start == 0 || p.Start <= ts) && (p.End == 0 || ts < p.End) {
			if p.Start != 0 {
				alert.ActiveSince = time.Unix(int64(p.Start), 0)
			}
			if p.End != 0 {
				alert.ActiveUntil = time.Unix(int64(p.End), 0)
			}
			return alert, true
		}
	}
	return alert, false
}

// A failed fetch or decode of one feed.
type FetchError struct {
	Kind FeedKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Outcome of fetching one feed. Timestamp is the feed header's.
type FeedResult struct {
	Kind      FeedKind
	Updates   Updates
	Timestamp time.Time
	Err       error
}

// Fetches and decodes the realtime feeds of one agency.
type Fetcher struct {
	BaseURL    string
	APIKey     string
	Agency     string
	Timeout    time.Duration
	MaxSize    int
	Downloader downloader.Downloader
	Options    downloader.GetOptions
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	TimeNow    func() time.Time
}

func NewFetcher(baseURL, apiKey, agency string, d downloader.Downloader) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultRealtimeBaseURL
	}
	if agency == "" {
		agency = DefaultRealtimeAgency
	}
	return &Fetcher{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Agency:     agency,
		Timeout:    DefaultRealtimeTimeout,
		MaxSize:    DefaultRealtimeMaxSize,
		Downloader: d,
		Logger:     slog.Default(),
		TimeNow:    time.Now,
	}
}

// Endpoint of a feed, with credentials.
func (f *Fetcher) URL(kind FeedKind) (string, error) {
	return downloader.WithQuery(f.BaseURL+"/"+kind.String(), map[string]string{
		"api_key": f.APIKey,
		"agency":  f.Agency,
	})
}

// Fetches and decodes a single feed. Any failure is reported as a
// *FetchError in the result.
func (f *Fetcher) Fetch(ctx context.Context, kind FeedKind) FeedResult {
	start := f.TimeNow()
	result := FeedResult{Kind: kind}

	result.Updates, result.Timestamp, result.Err = f.fetch(ctx, kind)
	if result.Err != nil {
		result.Err = &FetchError{Kind: kind, Err: result.Err}
	}

	f.Metrics.ObserveFetch(kind.String(), f.TimeNow().Sub(start), result.Updates.Len(), result.Err)
	return result
}

func (f *Fetcher) fetch(ctx context.Context, kind FeedKind) (Updates, time.Time, error) {
	url, err := f.URL(kind)
	if err != nil {
		return Updates{}, time.Time{}, err
	}

	opts := f.Options
	opts.Timeout = f.Timeout
	opts.MaxSize = f.MaxSize

	body, err := f.Downloader.Get(ctx, url, nil, opts)
	if err != nil {
		return Updates{}, time.Time{}, fmt.Errorf("downloading: %w", err)
	}

	feed, err := parse.DecodeFeed(body)
	if err != nil {
		return Updates{}, time.Time{}, err
	}

	var ts time.Time
	if feed.Header.Timestamp != 0 {
		ts = time.Unix(int64(feed.Header.Timestamp), 0)
	}
	return ExtractUpdates(feed, f.Agency, f.TimeNow()), ts, nil
}

// Fetches all feeds concurrently and waits for every one to settle.
// Results are in FeedKinds order regardless of completion order.
func (f *Fetcher) FetchAll(ctx context.Context) []FeedResult {
	results := make([]FeedResult, len(FeedKinds))

	var wg sync.WaitGroup
	for i, kind := range FeedKinds {
		wg.Add(1)
		go func(i int, kind FeedKind) {
			defer wg.Done()
			results[i] = f.Fetch(ctx, kind)
		}(i, kind)
	}
	wg.Wait()

	logger := logging.OrDefault(f.Logger)
	for _, r := range results {
		if r.Err != nil {
			logging.LogError(logger, "realtime feed failed", r.Err,
				slog.String("feed", r.Kind.String()))
		}
	}

	return results
}

// Combines per-feed results into a batch. Updates are concatenated in
// feed order. Fails only if every feed failed.
//
// The batch is stamped with the latest header timestamp among the
// feeds that succeeded, even if those feeds carried no updates. It
// falls back to now only when no successful feed had a timestamp.
// Failed feeds never contribute a timestamp.
func MergeResults(results []FeedResult, now time.Time) (model.Batch, error) {
	sorted := append([]FeedResult{}, results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Kind < sorted[j].Kind })

	batch := model.Batch{ID: uuid.NewString()}
	errs := []error{}

	for _, r := range sorted {
		if r.Err != nil {
			errs = append(errs, r.Err)
			batch.Failed = append(batch.Failed, r.Kind.String())
			continue
		}
		batch.TripUpdates = append(batch.TripUpdates, r.Updates.TripUpdates...)
		batch.Alerts = append(batch.Alerts, r.Updates.Alerts...)
		batch.Vehicles = append(batch.Vehicles, r.Updates.Vehicles...)
		if r.Timestamp.After(batch.Timestamp) {
			batch.Timestamp = r.Timestamp
		}
	}

	if len(sorted) > 0 && len(errs) == len(sorted) {
		return model.Batch{}, fmt.Errorf("all realtime feeds failed: %w", errors.Join(errs...))
	}

	if batch.Timestamp.IsZero() {
		batch.Timestamp = now
	}

	return batch, nil
}

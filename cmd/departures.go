package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/state"
)

var departuresCmd = &cobra.Command{
	Use:   "departures <stop name>",
	Short: "Lists upcoming departures from a station",
	Args:  cobra.ExactArgs(1),
	RunE:  departures,
}

var (
	window    time.Duration
	limit     int
	direction string
	routeID   string
)

func init() {
	departuresCmd.Flags().DurationVarP(&window, "window", "W", 2*time.Hour, "Time window to search for departures")
	departuresCmd.Flags().IntVarP(&limit, "limit", "l", -1, "Limit the number of departures returned")
	departuresCmd.Flags().StringVarP(&direction, "direction", "d", "", "Restrict to a direction (North or South)")
	departuresCmd.Flags().StringVarP(&routeID, "route", "r", "", "Restrict to a specific route")
	departuresCmd.Flags().BoolVarP(&withRealtime, "realtime", "R", false, "Fetch realtime predictions")
	rootCmd.AddCommand(departuresCmd)
}

type departure struct {
	trip      *model.Trip
	scheduled time.Time
	predicted time.Time
	delay     int
	realtime  bool
}

func departures(cmd *cobra.Command, args []string) error {
	name := model.StopName(args[0])

	var dir model.Direction
	if direction != "" {
		var err error
		dir, err = model.ParseDirection(direction)
		if err != nil {
			return err
		}
	}

	d, err := newDownloader()
	if err != nil {
		return err
	}

	s, err := loadSchedule(cmd.Context(), d)
	if err != nil {
		return err
	}

	updates := map[model.TripStopKey]model.TripUpdate{}
	if withRealtime {
		batch, err := timetable.MergeResults(newFetcher(d, nil).FetchAll(cmd.Context()), time.Now())
		if err != nil {
			return err
		}
		updates = state.MergeTripUpdates(updates, batch, state.DefaultRetention)
	}

	now := time.Now().In(s.Timezone())
	date := s.StartOfDay(now)

	found := []departure{}
	for _, tt := range s.Timetables([]model.StopName{name}, now) {
		if dir != "" && tt.Direction != dir {
			continue
		}
		for _, trip := range tt.Trips {
			if routeID != "" && string(trip.Route.ID) != routeID {
				continue
			}
			for _, ts := range s.TripStops(trip.ID) {
				if ts.Stop.Name != name {
					continue
				}
				dep := departure{trip: trip, scheduled: ts.DepartureFor(date)}
				dep.predicted, dep.delay, dep.realtime = timetable.Predict(ts, date, updates)
				if dep.predicted.Before(now) || dep.predicted.After(now.Add(window)) {
					continue
				}
				found = append(found, dep)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].predicted.Before(found[j].predicted)
	})
	if limit >= 0 && len(found) > limit {
		found = found[:limit]
	}

	for _, dep := range found {
		note := ""
		if dep.realtime && dep.delay != 0 {
			note = fmt.Sprintf(" (%+d min)", dep.delay)
		}
		fmt.Printf(
			"%s %s %s %s%s\n",
			dep.predicted.Format("15:04"),
			dep.trip.Route.ID,
			dep.trip.ShortName,
			dep.trip.Headsign,
			note,
		)
	}

	return nil
}

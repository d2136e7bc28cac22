package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable"
)

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Fetches the realtime feeds once and summarizes them",
	Args:  cobra.NoArgs,
	RunE:  realtime,
}

var showVehicles bool

func init() {
	realtimeCmd.Flags().BoolVarP(&showVehicles, "vehicles", "v", false, "List vehicle positions")
	rootCmd.AddCommand(realtimeCmd)
}

func realtime(cmd *cobra.Command, args []string) error {
	d, err := newDownloader()
	if err != nil {
		return err
	}

	fetcher := newFetcher(d, nil)
	results := fetcher.FetchAll(cmd.Context())
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Printf("%s: %d records, %s\n", r.Kind, r.Updates.Len(), status)
	}

	batch, err := timetable.MergeResults(results, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("batch %s at %s\n", batch.ID, batch.Timestamp.Format(time.RFC3339))
	for _, u := range batch.TripUpdates {
		fmt.Printf("  trip %s at %s: %s (%+d min)\n", u.Key.TripID, u.Key.StopID, u.Departure.Format("15:04:05"), u.Delay)
	}
	for _, a := range batch.Alerts {
		fmt.Printf("  alert %s [%s/%s]: %s\n", a.ID, a.Cause, a.Effect, a.Header)
	}
	if showVehicles {
		for _, v := range batch.Vehicles {
			fmt.Printf("  vehicle on %s near %s: %.5f,%.5f\n", v.TripID, v.StopID, v.Lat, v.Lon)
		}
	}

	return nil
}

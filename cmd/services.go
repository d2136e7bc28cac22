package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/logging"
)

var servicesCmd = &cobra.Command{
	Use:   "services [YYYYMMDD]",
	Short: "Lists the service patterns and fare zones active on a day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  services,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

func services(cmd *cobra.Command, args []string) error {
	d, err := newDownloader()
	if err != nil {
		return err
	}

	s, err := loadSchedule(cmd.Context(), d)
	if err != nil {
		return err
	}

	date, err := serviceDay(s, args)
	if err != nil {
		return err
	}

	active := s.ServicesFor(date)
	for _, key := range s.ServiceStopKeys() {
		if !active[key.ServiceID] {
			continue
		}

		desc, found := s.ServiceDescription(key.ServiceID)
		if !found {
			desc = "-"
		}

		names := []string{}
		for _, stop := range s.ServiceStops(key) {
			names = append(names, string(stop.Name))
		}

		fmt.Printf("%s %s (%s): %d trips\n", key.ServiceID, key.Direction, desc, len(s.TripsByService(key)))
		fmt.Printf("  %s\n", strings.Join(names, ", "))
	}

	zones, err := s.ZoneStopsFor(date)
	if errors.Is(err, timetable.ErrZoneGroupingAmbiguous) {
		logging.LogError(logger, "zone grouping", err)
	} else if err != nil {
		return err
	}

	for _, z := range zones {
		zone := "-"
		if z.Zone != nil {
			zone = z.Zone.Name
		}
		names := []string{}
		for _, stop := range z.Stops {
			names = append(names, string(stop.Name))
		}
		fmt.Printf("zone %s: %s\n", zone, strings.Join(names, ", "))
	}

	return nil
}

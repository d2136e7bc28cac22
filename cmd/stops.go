package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable/model"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [lat lng] [limit]",
	Short: "Lists stops near a geographical location",
	Args:  cobra.RangeArgs(0, 3),
	RunE:  stops,
}

var shapeCmd = &cobra.Command{
	Use:   "shape <trip_id>",
	Short: "Prints the encoded polyline of a trip's shape",
	Args:  cobra.ExactArgs(1),
	RunE:  shape,
}

func init() {
	rootCmd.AddCommand(stopsCmd)
	rootCmd.AddCommand(shapeCmd)
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng float64
	var limit int
	var err error

	gotLocation := false
	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		gotLocation = true
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
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

	var found []*model.Stop
	if gotLocation {
		found = s.NearbyStops(lat, lng, limit)
	} else {
		found = append(found, s.Stops()...)
		sort.SliceStable(found, func(i, j int) bool {
			return found[i].Name < found[j].Name
		})
	}

	for _, stop := range found {
		zone := "-"
		if stop.Zone != nil {
			zone = string(stop.Zone.ID)
		}
		fmt.Printf("%s: %s (zone %s)\n", stop.ID, stop.Name, zone)
	}

	return nil
}

func shape(cmd *cobra.Command, args []string) error {
	d, err := newDownloader()
	if err != nil {
		return err
	}

	s, err := loadSchedule(cmd.Context(), d)
	if err != nil {
		return err
	}

	encoded, err := s.ShapePolyline(model.TripID(args[0]))
	if err != nil {
		return err
	}

	fmt.Println(encoded)
	return nil
}

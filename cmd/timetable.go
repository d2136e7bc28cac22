package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/state"
)

var timetableCmd = &cobra.Command{
	Use:   "timetable <stop name>...",
	Short: "Prints timetables for trips serving all the given stops",
	Args:  cobra.MinimumNArgs(1),
	RunE:  printTimetable,
}

var (
	showDate     string
	reference    string
	wholeDay     bool
	withRealtime bool
)

func init() {
	timetableCmd.Flags().StringVarP(&showDate, "date", "D", "today", "today, tomorrow or YYYY-MM-DD")
	timetableCmd.Flags().StringVarP(&reference, "reference", "r", "", "Show times relative to this stop")
	timetableCmd.Flags().BoolVarP(&wholeDay, "all", "a", false, "Include trips that already departed")
	timetableCmd.Flags().BoolVarP(&withRealtime, "realtime", "R", false, "Fetch realtime predictions")
	rootCmd.AddCommand(timetableCmd)
}

func printTimetable(cmd *cobra.Command, args []string) error {
	date, err := model.ParseShowDate(showDate)
	if err != nil {
		return err
	}

	d, err := newDownloader()
	if err != nil {
		return err
	}

	s, err := loadSchedule(cmd.Context(), d)
	if err != nil {
		return err
	}

	sel := model.NewSelection()
	for _, name := range args {
		sel = sel.Toggle(model.StopName(name))
	}
	if reference != "" {
		sel = sel.WithReference(model.StopName(reference))
	}

	when := date.Resolve(time.Now(), s.Timezone())
	if wholeDay {
		when = s.StartOfDay(when)
	}

	updates := map[model.TripStopKey]model.TripUpdate{}
	if withRealtime {
		fetcher := newFetcher(d, nil)
		batch, err := timetable.MergeResults(fetcher.FetchAll(cmd.Context()), time.Now())
		if err != nil {
			return err
		}
		updates = state.MergeTripUpdates(updates, batch, state.DefaultRetention)
	}

	tts := s.Timetables(sel.Names(), when)
	if len(tts) == 0 {
		fmt.Println("no trips serve all of", strings.Join(args, ", "))
		return nil
	}

	for _, tt := range tts {
		header := []string{}
		for _, name := range sel.StopsToShow(tt.Canonical) {
			header = append(header, fmt.Sprintf("%-10.10s", name))
		}
		fmt.Printf("%s\n%-6s %s\n", tt.Direction, "", strings.Join(header, " "))

		for _, row := range s.Rows(tt, sel, when, updates) {
			cells := []string{}
			for _, cell := range row.Cells {
				cells = append(cells, fmt.Sprintf("%-10s", formatCell(cell, s.Timezone())))
			}
			fmt.Printf("%-6s %s\n", row.Trip.ShortName, strings.Join(cells, " "))
		}
		fmt.Println()
	}

	return nil
}

func formatCell(cell timetable.Cell, loc *time.Location) string {
	switch cell.Kind {
	case timetable.CellStartsAfter:
		return "v"
	case timetable.CellEndedBefore:
		return "^"
	case timetable.CellSkipped:
		return "-"
	case timetable.CellElided:
		return "."
	case timetable.CellTime:
	default:
		return ""
	}

	out := cell.Scheduled.In(loc).Format("15:04")
	if cell.SinceReference != 0 {
		out = fmt.Sprintf("%+dm", int(cell.SinceReference/time.Minute))
	}
	if cell.Realtime && cell.Delay != 0 {
		out += fmt.Sprintf("(%+d)", cell.Delay)
	}
	return out
}

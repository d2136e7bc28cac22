package timetable

import "tidbyt.dev/timetable/model"

// Classifies each canonical stop for a trip. The result has one entry
// per canonical stop, in the same order.
func (s *Schedule) StopsAlignedTo(trip *model.Trip, canonical []*model.Stop) []model.Aligned {
	return Align(s.tripStops[trip.ID], canonical)
}

// Aligns a trip's stop list (ordered by stop_sequence) against a
// canonical order. Stops the trip visits are Served. Unvisited stops
// between its first and last visit are Skipped, and everything
// outside that span is Never.
func Align(tripStops []*model.TripStop, canonical []*model.Stop) []model.Aligned {
	aligned := make([]model.Aligned, 0, len(canonical))

	visited := make(map[model.StopID]*model.TripStop, len(tripStops))
	for _, ts := range tripStops {
		visited[ts.Stop.ID] = ts
	}

	var first, last model.StopID
	if len(tripStops) > 0 {
		first = tripStops[0].Stop.ID
		last = tripStops[len(tripStops)-1].Stop.ID
	}

	seenFirst, seenLast := false, false
	for _, stop := range canonical {
		ts, ok := visited[stop.ID]
		if ok && stop.ID == first {
			seenFirst = true
		}
		if ok && stop.ID == last {
			seenLast = true
		}

		switch {
		case ok:
			aligned = append(aligned, model.Aligned{Stop: stop, At: model.ServedAt(ts)})
		case !seenFirst || seenLast:
			aligned = append(aligned, model.Aligned{Stop: stop, At: model.NeverStop()})
		default:
			aligned = append(aligned, model.Aligned{Stop: stop, At: model.SkippedStop()})
		}
	}

	return aligned
}

package timetable

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tidbyt.dev/timetable/model"
)

// Returned alongside a best-effort grouping when the active patterns
// for a day don't agree on a single one. Callers should treat it as a
// warning.
var ErrZoneGroupingAmbiguous = errors.New("zone grouping ambiguous")

// A run of consecutive stops sharing a fare zone.
type ZoneStops struct {
	Zone  *model.FareZone
	Stops []*model.Stop
}

// Groups the canonical stops of every pattern active on date by fare
// zone, northbound order. Exactly one distinct grouping is expected.
// If there are none, or several, the grouping of the first pattern
// (if any) is returned with an error wrapping
// ErrZoneGroupingAmbiguous.
func (s *Schedule) ZoneStopsFor(date time.Time) ([]ZoneStops, error) {
	services := s.ServicesFor(date)

	var picked []ZoneStops
	distinct := map[string]bool{}
	patterns := 0

	for _, key := range s.ServiceStopKeys() {
		if !services[key.ServiceID] {
			continue
		}
		patterns++

		stops := s.serviceStops[key]
		if key.Direction == model.South {
			reversed := make([]*model.Stop, len(stops))
			for i, stop := range stops {
				reversed[len(stops)-1-i] = stop
			}
			stops = reversed
		}

		groups := groupByZone(stops)
		sig := zoneSignature(groups)
		if !distinct[sig] {
			distinct[sig] = true
			if picked == nil {
				picked = groups
			}
		}
	}

	if len(distinct) == 1 {
		return picked, nil
	}

	err := fmt.Errorf(
		"%w: %d distinct groupings across %d patterns on %s",
		ErrZoneGroupingAmbiguous, len(distinct), patterns, date.In(s.location).Format("2006-01-02"),
	)
	s.logger.Warn("zone grouping",
		slog.String("date", date.In(s.location).Format("2006-01-02")),
		slog.Int("groupings", len(distinct)),
		slog.Int("patterns", patterns))

	return picked, err
}

func groupByZone(stops []*model.Stop) []ZoneStops {
	groups := []ZoneStops{}
	for _, stop := range stops {
		n := len(groups)
		if n > 0 && groups[n-1].Zone == stop.Zone {
			groups[n-1].Stops = append(groups[n-1].Stops, stop)
			continue
		}
		groups = append(groups, ZoneStops{Zone: stop.Zone, Stops: []*model.Stop{stop}})
	}
	return groups
}

func zoneSignature(groups []ZoneStops) string {
	var b strings.Builder
	for _, g := range groups {
		if g.Zone != nil {
			b.WriteString(string(g.Zone.ID))
		}
		b.WriteString(":")
		for _, stop := range g.Stops {
			b.WriteString(string(stop.Name))
			b.WriteString(",")
		}
		b.WriteString(";")
	}
	return b.String()
}

package timetable

import (
	"fmt"
	"strings"

	"tidbyt.dev/timetable/model"
)

// Raised when the trips of a pattern disagree on stop order, i.e.
// their precedence edges contain a cycle.
type SequenceError struct {
	Key       model.ServiceStopKey
	Remaining []model.StopID
}

func (e *SequenceError) Error() string {
	ids := make([]string, len(e.Remaining))
	for i, id := range e.Remaining {
		ids[i] = string(id)
	}
	return fmt.Sprintf(
		"no total stop order for service %s %s: cycle among %s",
		e.Key.ServiceID, e.Key.Direction, strings.Join(ids, ","),
	)
}

// Derives the canonical stop order of a pattern from the stop lists
// of its trips. Each adjacent pair of stops in a trip contributes an
// edge. Edges touching a stop whose id isn't exactly idLength
// characters are dropped (idLength 0 keeps all).
//
// Ties are broken by order of first appearance, so the result is
// stable for a given input.
func Sequence(key model.ServiceStopKey, lists [][]*model.TripStop, idLength int) ([]*model.Stop, error) {
	keep := func(s *model.Stop) bool {
		return idLength <= 0 || len(s.ID) == idLength
	}

	rank := map[model.StopID]int{}
	stops := []*model.Stop{}
	edges := map[model.StopID]map[model.StopID]bool{}
	indegree := map[model.StopID]int{}

	addNode := func(s *model.Stop) {
		if _, found := rank[s.ID]; !found {
			rank[s.ID] = len(stops)
			stops = append(stops, s)
			indegree[s.ID] = 0
		}
	}

	for _, tss := range lists {
		for i := 1; i < len(tss); i++ {
			from, to := tss[i-1].Stop, tss[i].Stop
			if !keep(from) || !keep(to) {
				continue
			}
			addNode(from)
			addNode(to)
			if edges[from.ID] == nil {
				edges[from.ID] = map[model.StopID]bool{}
			}
			if !edges[from.ID][to.ID] {
				edges[from.ID][to.ID] = true
				indegree[to.ID]++
			}
		}
	}

	// Kahn's algorithm. The ready set is tiny (a handful of stops
	// at most), so a linear scan for the lowest rank is fine.
	ready := []*model.Stop{}
	for _, s := range stops {
		if indegree[s.ID] == 0 {
			ready = append(ready, s)
		}
	}

	order := make([]*model.Stop, 0, len(stops))
	for len(ready) > 0 {
		best := 0
		for i := range ready {
			if rank[ready[i].ID] < rank[ready[best].ID] {
				best = i
			}
		}
		s := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, s)

		for _, next := range stops {
			if !edges[s.ID][next.ID] {
				continue
			}
			indegree[next.ID]--
			if indegree[next.ID] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(stops) {
		remaining := []model.StopID{}
		for _, s := range stops {
			if indegree[s.ID] > 0 {
				remaining = append(remaining, s.ID)
			}
		}
		return nil, &SequenceError{Key: key, Remaining: remaining}
	}

	return order, nil
}

package model

import "sort"

// The stops a user is looking at. Checked stops pick the patterns to
// show; the reference stop, if any, is where relative times are
// measured from.
type Selection struct {
	Checked   map[StopName]bool
	Reference StopName
}

func NewSelection(checked ...StopName) Selection {
	sel := Selection{Checked: map[StopName]bool{}}
	for _, name := range checked {
		sel.Checked[name] = true
	}
	return sel
}

// Returns a copy with name checked if it wasn't, unchecked if it was.
func (s Selection) Toggle(name StopName) Selection {
	checked := make(map[StopName]bool, len(s.Checked)+1)
	for k := range s.Checked {
		checked[k] = true
	}
	if checked[name] {
		delete(checked, name)
	} else {
		checked[name] = true
	}
	return Selection{Checked: checked, Reference: s.Reference}
}

func (s Selection) WithReference(name StopName) Selection {
	return Selection{Checked: s.Checked, Reference: name}
}

func (s Selection) Has(name StopName) bool {
	return s.Checked[name]
}

// Checked stops, sorted.
func (s Selection) Names() []StopName {
	names := make([]StopName, 0, len(s.Checked))
	for name := range s.Checked {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (s Selection) Equal(o Selection) bool {
	if s.Reference != o.Reference || len(s.Checked) != len(o.Checked) {
		return false
	}
	for k := range s.Checked {
		if !o.Checked[k] {
			return false
		}
	}
	return true
}

// Picks the columns to display for a canonical stop order: every
// checked stop plus its immediate neighbours. Runs of neighbours that
// sit between two context stops collapse, so that only one
// placeholder column separates checked stops.
func (s Selection) StopsToShow(all []*Stop) []StopName {
	show := []int{}
	seen := map[int]bool{}
	selected := map[int]bool{}
	for e, stop := range all {
		if !s.Checked[stop.Name] {
			continue
		}
		selected[e] = true
		for _, i := range []int{e - 1, e, e + 1} {
			if i >= 0 && i < len(all) && !seen[i] {
				seen[i] = true
				show = append(show, i)
			}
		}
	}
	sort.Ints(show)

	names := []StopName{}
	added := map[StopName]bool{}
	for e, i := range show {
		if e != 0 && e != len(show)-1 && !selected[i] && !selected[show[e-1]] {
			continue
		}
		name := all[i].Name
		if !added[name] {
			added[name] = true
			names = append(names, name)
		}
	}
	return names
}

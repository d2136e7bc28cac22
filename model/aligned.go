package model

type AlignedKind int

const (
	// The trip stops here.
	Served AlignedKind = iota

	// The trip passes through without stopping.
	Skipped

	// The stop is outside the part of the pattern this trip runs.
	Never
)

func (k AlignedKind) String() string {
	switch k {
	case Served:
		return "served"
	case Skipped:
		return "skipped"
	case Never:
		return "never"
	}
	return "unknown"
}

// Classification of one canonical stop for one trip. TripStop is only
// set when Kind is Served.
type AlignedStop struct {
	Kind     AlignedKind
	TripStop *TripStop
}

func ServedAt(ts *TripStop) AlignedStop {
	return AlignedStop{Kind: Served, TripStop: ts}
}

func SkippedStop() AlignedStop {
	return AlignedStop{Kind: Skipped}
}

func NeverStop() AlignedStop {
	return AlignedStop{Kind: Never}
}

type Aligned struct {
	Stop *Stop
	At   AlignedStop
}

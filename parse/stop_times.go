package parse

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// stop_times.txt tends to be the largest file by far, so it's streamed
// row by row. Rows are checked for the fields every consumer needs;
// references to trips and stops are resolved later.
func ParseStopTimes(data io.Reader) ([]*StopTimeCSV, error) {
	stopTimes := []*StopTimeCSV{}

	i := -1
	err := gocsv.UnmarshalToCallbackWithError(data, func(st *StopTimeCSV) error {
		i += 1
		if st.TripID == "" {
			return fmt.Errorf("missing trip_id (row %d)", i+1)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", i+1)
		}
		if _, err := strconv.Atoi(st.StopSequence); err != nil {
			return errors.Wrapf(err, "parsing stop_sequence (row %d)", i+1)
		}

		stopTimes = append(stopTimes, st)
		return nil
	})
	if errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return stopTimes, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling stop_times csv")
	}

	return stopTimes, nil
}

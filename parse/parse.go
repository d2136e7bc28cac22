package parse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zip"
	"github.com/spkg/bom"
)

// Files read from a static feed. Everything else is ignored.
var knownFiles = []string{
	"agency.txt",
	"calendar.txt",
	"calendar_dates.txt",
	"calendar_attributes.txt",
	"directions.txt",
	"fare_attributes.txt",
	"fare_rules.txt",
	"farezone_attributes.txt",
	"realtime_routes.txt",
	"routes.txt",
	"shapes.txt",
	"stop_attributes.txt",
	"stop_times.txt",
	"stops.txt",
	"trips.txt",
}

var requiredFiles = []string{
	"agency.txt",
	"directions.txt",
	"routes.txt",
	"stops.txt",
	"trips.txt",
	"stop_times.txt",
}

// Parses a zipped static feed.
func ParseZip(buf []byte) (*Tables, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	file := map[string]io.ReadCloser{}
	defer closeAll(file)

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if !isKnown(fName) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		file[fName] = rc
	}

	return parseFiles(file)
}

// Parses an unzipped static feed from a directory.
func ParseDir(dir string) (*Tables, error) {
	file := map[string]io.ReadCloser{}
	defer closeAll(file)

	for _, name := range knownFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		file[name] = f
	}

	return parseFiles(file)
}

func isKnown(name string) bool {
	for _, k := range knownFiles {
		if k == name {
			return true
		}
	}
	return false
}

func closeAll(file map[string]io.ReadCloser) {
	for _, rc := range file {
		rc.Close()
	}
}

func parseFiles(file map[string]io.ReadCloser) (*Tables, error) {
	if file["calendar.txt"] == nil && file["calendar_dates.txt"] == nil {
		return nil, fmt.Errorf("missing calendar.txt and calendar_dates.txt")
	}

	for _, required := range requiredFiles {
		if file[required] == nil {
			return nil, fmt.Errorf("missing %s", required)
		}
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	t := &Tables{}
	steps := []struct {
		name string
		fn   func(io.Reader) error
	}{
		{"agency.txt", func(r io.Reader) error { return unmarshal(r, &t.Agency) }},
		{"calendar.txt", func(r io.Reader) error { return unmarshal(r, &t.Calendar) }},
		{"calendar_dates.txt", func(r io.Reader) error { return unmarshal(r, &t.CalendarDates) }},
		{"calendar_attributes.txt", func(r io.Reader) error { return unmarshal(r, &t.CalendarAttributes) }},
		{"directions.txt", func(r io.Reader) error { return unmarshal(r, &t.Directions) }},
		{"fare_attributes.txt", func(r io.Reader) error { return unmarshal(r, &t.FareAttributes) }},
		{"fare_rules.txt", func(r io.Reader) error { return unmarshal(r, &t.FareRules) }},
		{"farezone_attributes.txt", func(r io.Reader) error { return unmarshal(r, &t.FareZones) }},
		{"realtime_routes.txt", func(r io.Reader) error { return unmarshal(r, &t.RealtimeRoutes) }},
		{"routes.txt", func(r io.Reader) error { return unmarshal(r, &t.Routes) }},
		{"shapes.txt", func(r io.Reader) error { return unmarshal(r, &t.Shapes) }},
		{"stop_attributes.txt", func(r io.Reader) error { return unmarshal(r, &t.StopAttributes) }},
		{"stops.txt", func(r io.Reader) error { return unmarshal(r, &t.Stops) }},
		{"trips.txt", func(r io.Reader) error { return unmarshal(r, &t.Trips) }},
		{"stop_times.txt", func(r io.Reader) error {
			sts, err := ParseStopTimes(r)
			t.StopTimes = sts
			return err
		}},
	}

	for _, step := range steps {
		rc := file[step.name]
		if rc == nil {
			continue
		}
		if err := step.fn(rc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", step.name, err)
		}
	}

	if len(t.Agency) == 0 {
		return nil, fmt.Errorf("no agency record found")
	}

	return t, nil
}

func unmarshal[T any](data io.Reader, out *[]*T) error {
	rows := []*T{}
	err := gocsv.Unmarshal(data, &rows)
	if errors.Is(err, gocsv.ErrEmptyCSVFile) {
		*out = rows
		return nil
	}
	if err != nil {
		return fmt.Errorf("unmarshaling csv: %w", err)
	}
	*out = rows
	return nil
}

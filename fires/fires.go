// Package fires runs batches of fire simulation requests,
// one simulation pipeline per fire, each one centered on the
// ignition point of its fire.
package fires

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Request is one fire of the batch, as read from one row of
// the input table. It never changes after parsing.
type Request struct {
	ID    string
	Start time.Time
	End   time.Time
	Lat   float64
	Lon   float64
}

// DuplicateIdentifierError reports every identifier used by
// more than one row of the table.
type DuplicateIdentifierError struct {
	IDs []string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate fire identifiers: %s", strings.Join(e.IDs, ", "))
}

// DirectoryCollisionError reports every run directory of the
// batch that already exists on disk.
type DirectoryCollisionError struct {
	Paths []string
}

func (e *DirectoryCollisionError) Error() string {
	return fmt.Sprintf("run directories already exist: %s", strings.Join(e.Paths, ", "))
}

var tableHeader = []string{"identifier", "start", "end", "latitude", "longitude"}

var timestampFormats = []string{"20060102_15", "2006-01-02_15", "2006010215"}

// ParseTimestamp reads an instant in any of the formats the
// tables and the command line use.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp `%s`, expected YYYYMMDD_HH", s)
}

// ReadTable reads the fire requests from a CSV table. The
// header row is mandatory.
func ReadTable(file string) ([]*Request, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTable(f, file)
}

func readTable(r io.Reader, name string) ([]*Request, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("table `%s` is empty, the header row is required", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read table `%s`", name)
	}
	if err := checkHeader(header); err != nil {
		return nil, errors.Wrapf(err, "table `%s`", name)
	}

	requests := []*Request{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read table `%s`", name)
		}
		req, err := parseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "table `%s`, row %d", name, len(requests)+2)
		}
		requests = append(requests, req)
	}

	return requests, nil
}

func checkHeader(header []string) error {
	matches := len(header) == len(tableHeader)
	if matches {
		for i, name := range header {
			if !strings.EqualFold(strings.TrimSpace(name), tableHeader[i]) {
				matches = false
				break
			}
		}
	}
	if !matches {
		return fmt.Errorf("expected header `%s`, got `%s`",
			strings.Join(tableHeader, ","), strings.Join(header, ","))
	}
	return nil
}

func parseRow(row []string) (*Request, error) {
	id := strings.TrimSpace(row[0])
	if id == "" {
		return nil, fmt.Errorf("empty identifier")
	}

	start, err := ParseTimestamp(row[1])
	if err != nil {
		return nil, err
	}
	end, err := ParseTimestamp(row[2])
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s comes before start %s",
			end.Format("20060102_15"), start.Format("20060102_15"))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return nil, errors.Wrap(err, "latitude")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil {
		return nil, errors.Wrap(err, "longitude")
	}

	return &Request{ID: id, Start: start, End: end, Lat: lat, Lon: lon}, nil
}

// RunDirs returns the two directories a request runs in, one
// for the preprocessing programs and one for the model.
func RunDirs(req *Request, wpsParent, wrfParent string) (string, string) {
	return filepath.Join(wpsParent, req.ID), filepath.Join(wrfParent, req.ID)
}

// Validate checks the whole batch before anything touches the
// disk. Every duplicated identifier and every already existing
// run directory is reported, not just the first one found.
func Validate(requests []*Request, wpsParent, wrfParent string) error {
	seen := map[string]int{}
	for _, req := range requests {
		seen[req.ID]++
	}
	var dups []string
	for id, count := range seen {
		if count > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return &DuplicateIdentifierError{IDs: dups}
	}

	var collisions []string
	for _, req := range requests {
		wpsDir, wrfDir := RunDirs(req, wpsParent, wrfParent)
		for _, dir := range []string{wpsDir, wrfDir} {
			if _, err := os.Stat(dir); err == nil {
				collisions = append(collisions, dir)
			}
		}
	}
	if len(collisions) > 0 {
		return &DirectoryCollisionError{Paths: collisions}
	}

	return nil
}

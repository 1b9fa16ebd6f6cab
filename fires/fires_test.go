package fires

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sampleTable = `identifier, start, end, latitude, longitude
arenzano, 20190819_12, 20190821_12, 44.4049, 8.6813
cogoleto, 2019-08-19_12, 2019082100, 44.3903, 8.6465
`

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2019, 8, 19, 12, 0, 0, 0, time.UTC)
	for _, s := range []string{"20190819_12", "2019-08-19_12", "2019081912"} {
		parsed, err := ParseTimestamp(s)
		assert.NoError(t, err)
		assert.Equal(t, want, parsed)
	}

	_, err := ParseTimestamp("19/08/2019")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse timestamp")
}

func TestReadTable(t *testing.T) {
	requests, err := readTable(strings.NewReader(sampleTable), "fires.csv")
	if !assert.NoError(t, err) {
		return
	}
	assert.Len(t, requests, 2)

	assert.Equal(t, "arenzano", requests[0].ID)
	assert.Equal(t, time.Date(2019, 8, 19, 12, 0, 0, 0, time.UTC), requests[0].Start)
	assert.Equal(t, time.Date(2019, 8, 21, 12, 0, 0, 0, time.UTC), requests[0].End)
	assert.Equal(t, 44.4049, requests[0].Lat)
	assert.Equal(t, 8.6813, requests[0].Lon)

	// every timestamp format is accepted, even mixed in one row
	assert.Equal(t, "cogoleto", requests[1].ID)
	assert.Equal(t, time.Date(2019, 8, 21, 0, 0, 0, 0, time.UTC), requests[1].End)
}

func TestReadTableFromDisk(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fires.csv")
	err := os.WriteFile(file, []byte(sampleTable), 0644)
	assert.NoError(t, err)

	requests, err := ReadTable(file)
	assert.NoError(t, err)
	assert.Len(t, requests, 2)
}

func TestReadTableEmpty(t *testing.T) {
	_, err := readTable(strings.NewReader(""), "fires.csv")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "header row is required")
}

func TestReadTableBadHeader(t *testing.T) {
	table := "id, begin, end, lat, lon\narenzano, 20190819_12, 20190821_12, 44.40, 8.68\n"
	_, err := readTable(strings.NewReader(table), "fires.csv")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected header")
}

func TestReadTableHeaderAnyCase(t *testing.T) {
	table := "Identifier, Start, End, LATITUDE, Longitude\narenzano, 20190819_12, 20190821_12, 44.40, 8.68\n"
	requests, err := readTable(strings.NewReader(table), "fires.csv")
	assert.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestReadTableRowErrors(t *testing.T) {
	cases := []struct {
		row  string
		want string
	}{
		{", 20190819_12, 20190821_12, 44.40, 8.68", "empty identifier"},
		{"arenzano, 20190821_12, 20190819_12, 44.40, 8.68", "comes before"},
		{"arenzano, 20190819_12, 20190821_12, north, 8.68", "latitude"},
		{"arenzano, 20190819_12, 20190821_12, 44.40, east", "longitude"},
		{"arenzano, someday, 20190821_12, 44.40, 8.68", "cannot parse timestamp"},
	}
	for _, c := range cases {
		table := strings.Join(tableHeader, ",") + "\n" + c.row + "\n"
		_, err := readTable(strings.NewReader(table), "fires.csv")
		if !assert.Error(t, err) {
			continue
		}
		assert.Contains(t, err.Error(), c.want)
		assert.Contains(t, err.Error(), "row 2")
	}
}

func TestRunDirs(t *testing.T) {
	req := &Request{ID: "arenzano"}
	wps, wrf := RunDirs(req, "/srv/wps", "/srv/wrf")
	assert.Equal(t, "/srv/wps/arenzano", wps)
	assert.Equal(t, "/srv/wrf/arenzano", wrf)
}

func TestValidateDuplicates(t *testing.T) {
	requests := []*Request{
		{ID: "cogoleto"}, {ID: "arenzano"}, {ID: "cogoleto"}, {ID: "arenzano"}, {ID: "sassello"},
	}
	err := Validate(requests, t.TempDir(), t.TempDir())
	dup, ok := err.(*DuplicateIdentifierError)
	if !assert.True(t, ok) {
		return
	}
	// every duplicated identifier, sorted
	assert.Equal(t, []string{"arenzano", "cogoleto"}, dup.IDs)
}

func TestValidateCollisions(t *testing.T) {
	wpsParent := t.TempDir()
	wrfParent := t.TempDir()
	assert.NoError(t, os.Mkdir(filepath.Join(wpsParent, "arenzano"), 0755))
	assert.NoError(t, os.Mkdir(filepath.Join(wrfParent, "cogoleto"), 0755))

	requests := []*Request{{ID: "arenzano"}, {ID: "cogoleto"}}
	err := Validate(requests, wpsParent, wrfParent)
	coll, ok := err.(*DirectoryCollisionError)
	if !assert.True(t, ok) {
		return
	}
	// every colliding directory, not just the first
	assert.Equal(t, []string{
		filepath.Join(wpsParent, "arenzano"),
		filepath.Join(wrfParent, "cogoleto"),
	}, coll.Paths)
}

func TestValidateDuplicatesReportedFirst(t *testing.T) {
	wpsParent := t.TempDir()
	assert.NoError(t, os.Mkdir(filepath.Join(wpsParent, "arenzano"), 0755))

	requests := []*Request{{ID: "arenzano"}, {ID: "arenzano"}}
	err := Validate(requests, wpsParent, t.TempDir())
	_, ok := err.(*DuplicateIdentifierError)
	assert.True(t, ok)
}

func TestValidateClean(t *testing.T) {
	requests := []*Request{{ID: "arenzano"}, {ID: "cogoleto"}}
	assert.NoError(t, Validate(requests, t.TempDir(), t.TempDir()))
}

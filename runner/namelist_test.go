package runner

import (
	"strings"
	"testing"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/stretchr/testify/assert"
)

const sampleNamelist = `&share
 wrf_core = 'ARW',
 max_dom = 2,
 start_date = '2020-11-26_00:00:00','2020-11-26_00:00:00',
 interval_seconds = 10800
/

&ungrib
 out_format = 'WPS',
 prefix = 'FILE',
/

&metgrid
 fg_name = 'FILE',
/
`

func TestSetNamelistEntry(t *testing.T) {
	content := setNamelistEntry(sampleNamelist, "prefix", "'GFS',")
	assert.Contains(t, content, " prefix = 'GFS',")
	assert.NotContains(t, content, "prefix = 'FILE'")

	// other entries survive untouched
	assert.Contains(t, content, " max_dom = 2,")
}

func TestSetNamelistEntryRewritesEveryAssignment(t *testing.T) {
	content := "&share\n fg_name = 'A',\n/\n&metgrid\n fg_name = 'B',\n/\n"
	content = setNamelistEntry(content, "fg_name", "'C',")
	assert.Equal(t, 2, strings.Count(content, " fg_name = 'C',"))
}

func TestEnsureNamelistEntryExisting(t *testing.T) {
	content := ensureNamelistEntry(sampleNamelist, "&metgrid", "fg_name", "'GFS',")
	assert.Contains(t, content, " fg_name = 'GFS',")
	assert.Equal(t, 1, strings.Count(content, "fg_name"))
}

func TestEnsureNamelistEntryInserted(t *testing.T) {
	content := ensureNamelistEntry(sampleNamelist, "&metgrid", "constants_name", "'./TAVGSFC',")
	assert.Contains(t, content, "&metgrid\n constants_name = './TAVGSFC',\n fg_name = 'FILE',")
}

func TestEnsureNamelistEntryNoSection(t *testing.T) {
	content := ensureNamelistEntry(sampleNamelist, "&fire", "ignition", "1,")
	assert.Equal(t, sampleNamelist, content)
}

func TestAppendNamelistList(t *testing.T) {
	content := appendNamelistList(sampleNamelist, "fg_name", "TAVGSFC", "'TAVGSFC'")
	assert.Contains(t, content, " fg_name = 'FILE','TAVGSFC',")
}

func TestAppendNamelistListAlreadyThere(t *testing.T) {
	content := appendNamelistList(sampleNamelist, "fg_name", "FILE", "'FILE'")
	assert.Equal(t, sampleNamelist, content)
}

func TestNamelistEntryValue(t *testing.T) {
	value, found := namelistEntryValue(sampleNamelist, "wrf_core")
	assert.True(t, found)
	assert.Equal(t, "ARW", value)

	// multi-valued entries yield the first value
	value, found = namelistEntryValue(sampleNamelist, "start_date")
	assert.True(t, found)
	assert.Equal(t, "2020-11-26_00:00:00", value)

	// entries without a trailing comma work too
	value, found = namelistEntryValue(sampleNamelist, "interval_seconds")
	assert.True(t, found)
	assert.Equal(t, "10800", value)

	_, found = namelistEntryValue(sampleNamelist, "e_we")
	assert.False(t, found)
}

func TestReadDomainCount(t *testing.T) {
	dir := t.TempDir()
	nml := writeLog(t, dir, "namelist.wps", sampleNamelist)

	tr := testTransaction()
	assert.Equal(t, 2, ReadDomainCount(tr, nml))
	assert.NoError(t, tr.Err)
}

func TestReadDomainCountMissing(t *testing.T) {
	dir := t.TempDir()
	nml := writeLog(t, dir, "namelist.wps", "&share\n wrf_core = 'ARW',\n/\n")

	tr := testTransaction()
	ReadDomainCount(tr, nml)
	assert.Error(t, tr.Err)
	assert.Contains(t, tr.Err.Error(), "max_dom")
}

func TestReadIntervalHours(t *testing.T) {
	dir := t.TempDir()
	nml := writeLog(t, dir, "namelist.wps", sampleNamelist)

	tr := testTransaction()
	assert.Equal(t, 3, ReadIntervalHours(tr, nml))
	assert.NoError(t, tr.Err)
}

func TestReadIntervalHoursNotWhole(t *testing.T) {
	dir := t.TempDir()
	nml := writeLog(t, dir, "namelist.wps", "&share\n interval_seconds = 5400,\n/\n")

	tr := testTransaction()
	ReadIntervalHours(tr, nml)
	assert.Error(t, tr.Err)
	assert.Contains(t, tr.Err.Error(), "whole number of hours")
}

func TestFgName(t *testing.T) {
	outDir := vpath.Local("/work/cycle/ungrib_out")
	sets := []gribSet{{Prefix: "GEFS_B"}, {Prefix: "GEFS_A"}}
	assert.Equal(t, "'/work/cycle/ungrib_out/GEFS_B','/work/cycle/ungrib_out/GEFS_A',", fgName(outDir, sets))
}

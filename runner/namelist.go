package runner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/fsutil"
)

// namelistEntryName returns the assignment name of a
// namelist line, or an empty string for anything else.
func namelistEntryName(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	eq := strings.Index(trimmed, "=")
	if eq < 0 {
		return ""
	}
	return strings.TrimRight(trimmed[:eq], " \t")
}

// setNamelistEntry rewrites every assignment of name in the
// namelist content. The value must carry its own quoting and
// trailing comma.
func setNamelistEntry(content, name, value string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if namelistEntryName(line) == name {
			lines[i] = fmt.Sprintf(" %s = %s", name, value)
		}
	}
	return strings.Join(lines, "\n")
}

func hasNamelistEntry(content, name string) bool {
	for _, line := range strings.Split(content, "\n") {
		if namelistEntryName(line) == name {
			return true
		}
	}
	return false
}

// ensureNamelistEntry rewrites the assignment of name when
// present, and inserts it right below the section opener
// otherwise.
func ensureNamelistEntry(content, section, name, value string) string {
	if hasNamelistEntry(content, name) {
		return setNamelistEntry(content, name, value)
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == section {
			inserted := make([]string, 0, len(lines)+1)
			inserted = append(inserted, lines[:i+1]...)
			inserted = append(inserted, fmt.Sprintf(" %s = %s", name, value))
			inserted = append(inserted, lines[i+1:]...)
			return strings.Join(inserted, "\n")
		}
	}
	return content
}

// appendNamelistList adds an item to the list assigned to
// name. A line already mentioning token is left untouched.
func appendNamelistList(content, name, token, item string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if namelistEntryName(line) != name {
			continue
		}
		if strings.Contains(line, token) {
			return content
		}
		value := strings.TrimRight(line, " \t")
		value = strings.TrimRight(value, ",")
		lines[i] = value + "," + item + ","
	}
	return strings.Join(lines, "\n")
}

// namelistEntryValue returns the first value assigned to name,
// stripped of quotes and of anything after the first comma.
func namelistEntryValue(content, name string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if namelistEntryName(line) != name {
			continue
		}
		value := line[strings.Index(line, "=")+1:]
		if comma := strings.Index(value, ","); comma >= 0 {
			value = value[:comma]
		}
		return strings.Trim(value, " \t'\""), true
	}
	return "", false
}

// ReadDomainCount returns the max_dom property of a namelist.
func ReadDomainCount(tr *fsutil.Transaction, nmlFile vpath.VirtualPath) int {
	if tr.Err != nil {
		return 0
	}
	content := tr.ReadString(nmlFile)
	if tr.Err != nil {
		return 0
	}

	valueS, found := namelistEntryValue(content, "max_dom")
	if !found {
		tr.Err = fmt.Errorf("max_dom property not found in %s", nmlFile.String())
		return 0
	}
	value, err := strconv.Atoi(valueS)
	if err != nil {
		tr.Err = fmt.Errorf("cannot convert max_dom `%s` to integer: %w", valueS, err)
		return 0
	}
	return value
}

// ReadIntervalHours returns the interval_seconds property of
// a namelist, converted to hours.
func ReadIntervalHours(tr *fsutil.Transaction, nmlFile vpath.VirtualPath) int {
	if tr.Err != nil {
		return 0
	}
	content := tr.ReadString(nmlFile)
	if tr.Err != nil {
		return 0
	}

	valueS, found := namelistEntryValue(content, "interval_seconds")
	if !found {
		tr.Err = fmt.Errorf("interval_seconds property not found in %s", nmlFile.String())
		return 0
	}
	value, err := strconv.Atoi(valueS)
	if err != nil {
		tr.Err = fmt.Errorf("cannot convert interval_seconds `%s` to integer: %w", valueS, err)
		return 0
	}
	if value <= 0 || value%3600 != 0 {
		tr.Err = fmt.Errorf("interval_seconds `%d` is not a whole number of hours", value)
		return 0
	}
	return value / 3600
}

// fgName is the list of degribbed product paths that
// avg_tsfc.exe and metgrid.exe read, one per product set in
// the order the sets are degribbed.
func fgName(outDir vpath.VirtualPath, sets []gribSet) string {
	names := make([]string, len(sets))
	for i, set := range sets {
		names[i] = fmt.Sprintf("'%s'", outDir.Join(set.Prefix).Path)
	}
	return strings.Join(names, ",") + ","
}

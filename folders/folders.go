// Package folders derives the directory layout of a
// simulation from the runtime configuration.
package folders

import (
	"strings"
	"time"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/conf"
)

// CycleTagFormat formats the start instant of a cycle the
// way it appears in directory names and in CSV tables.
const CycleTagFormat = "20060102_15"

func CycleTag(start time.Time) string {
	return start.Format(CycleTagFormat)
}

func WPSPrg() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.WPSPrg)
}

func WRFPrg() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.WRFPrg)
}

func GeodataDir() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.GeodataDir)
}

func LogDir() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.LogDir)
}

func IcbcArchive() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.IcbcArchive)
}

// GeogridDir is shared by all cycles: the domains
// do not depend on the start instant.
func GeogridDir() vpath.VirtualPath {
	return vpath.Local(conf.Config.Folders.WPSRunDir).Join("geogrid")
}

func WPSCycleDir(start time.Time) vpath.VirtualPath {
	return expSubdir(vpath.Local(conf.Config.Folders.WPSRunDir).Join(CycleTag(start)))
}

func WRFCycleDir(start time.Time) vpath.VirtualPath {
	return expSubdir(vpath.Local(conf.Config.Folders.WRFRunDir).Join(CycleTag(start)))
}

// UngribOutDir receives the degribbed products of
// every ungrib job of the cycle.
func UngribOutDir(start time.Time) vpath.VirtualPath {
	return WPSCycleDir(start).Join("ungrib")
}

// UngribJobDir is where the ungrib job for a single boundary
// instant of a product set runs. One directory per job keeps
// the PFILE intermediates of concurrent jobs apart.
func UngribJobDir(start time.Time, prefix string, instant time.Time) vpath.VirtualPath {
	return WPSCycleDir(start).Join("ungrib_%s_%s", strings.ToLower(prefix), CycleTag(instant))
}

func MetgridDir(start time.Time) vpath.VirtualPath {
	return WPSCycleDir(start).Join("metgrid")
}

// GribDir is where the input GRIB files of a cycle are
// linked or downloaded. GFS files live in the same
// tree layout used by the NOAA archive.
func GribDir(start time.Time) vpath.VirtualPath {
	gribs := vpath.Local(conf.Config.Folders.GribDir)
	if conf.Config.Cycle.Model == conf.GFS {
		return gribs.Join("gfs.%s/%02d/atmos", start.Format("20060102"), start.Hour())
	}
	return gribs
}

func ArchiveDirFor(start time.Time) vpath.VirtualPath {
	return expSubdir(vpath.Local(conf.Config.Folders.ArchiveDir).Join(CycleTag(start)))
}

// BoundaryTimes lists the instants a cycle needs boundary
// conditions for, from the start to the end of the
// simulation inclusive.
func BoundaryTimes(start time.Time, simHours, intervalHours int) []time.Time {
	var times []time.Time
	for h := 0; h <= simHours; h += intervalHours {
		times = append(times, start.Add(time.Duration(h)*time.Hour))
	}
	return times
}

func expSubdir(dir vpath.VirtualPath) vpath.VirtualPath {
	if exp := conf.Config.Cycle.ExpName; exp != "" {
		return dir.Join("%s", exp)
	}
	return dir
}

package conf

import (
	"fmt"
	"strings"
)

// Stage ...
type Stage int

const (
	// GeogridStage - define the simulation domains
	GeogridStage Stage = iota
	// GetIcbcStage - download or link the input GRIB files
	GetIcbcStage
	// UngribStage - degrib the input GRIB files
	UngribStage
	// AvgTsfcStage - compute mean surface temperatures
	AvgTsfcStage
	// MetgridStage - interpolate the degribbed fields on the domains
	MetgridStage
	// RealStage - prepare initial and boundary conditions
	RealStage
	// WRFStage - run the simulation
	WRFStage
)

// String ...
func (s Stage) String() string {
	switch s {
	case GeogridStage:
		return "geogrid"
	case GetIcbcStage:
		return "get_icbc"
	case UngribStage:
		return "ungrib"
	case AvgTsfcStage:
		return "avg_tsfc"
	case MetgridStage:
		return "metgrid"
	case RealStage:
		return "real"
	case WRFStage:
		return "wrf"
	}
	return "unknown"
}

// AllStages lists every stage in the order
// the cycle orchestrator runs them.
var AllStages = []Stage{
	GeogridStage,
	GetIcbcStage,
	UngribStage,
	AvgTsfcStage,
	MetgridStage,
	RealStage,
	WRFStage,
}

// StageStatus ...
type StageStatus int

const (
	// StageSuccess - the stage completed and its logs confirm it
	StageSuccess StageStatus = iota
	// StageFailed - the stage failed or its logs are inconclusive
	StageFailed
	// StageSkipped - the stage is disabled in configuration
	StageSkipped
)

// String ...
func (s StageStatus) String() string {
	switch s {
	case StageSuccess:
		return "success"
	case StageFailed:
		return "failed"
	case StageSkipped:
		return "skipped"
	}
	return "unknown"
}

// IcbcModel is the external model that provides
// initial and boundary conditions to the simulation.
type IcbcModel int

const (
	// GFS - global forecast system at 0.25 degrees
	GFS IcbcModel = iota
	// GFSFNL - GFS final analysis
	GFSFNL
	// GEFS - global ensemble forecast system at 0.5 degrees
	GEFS
)

// FromString ...
func (m *IcbcModel) FromString(s string) error {
	switch strings.ToUpper(s) {
	case "GFS":
		*m = GFS
	case "GFS_FNL":
		*m = GFSFNL
	case "GEFS":
		*m = GEFS
	default:
		return fmt.Errorf("unknown icbc model `%s`", s)
	}
	return nil
}

// String ...
func (m IcbcModel) String() string {
	switch m {
	case GFS:
		return "GFS"
	case GFSFNL:
		return "GFS_FNL"
	case GEFS:
		return "GEFS"
	}
	return "unknown"
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *IcbcModel) UnmarshalText(data []byte) error {
	return m.FromString(string(data))
}

// MarshalText implements encoding.TextMarshaler
func (m IcbcModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Vtable returns the name of the WPS variable table
// that ungrib.exe needs for the model.
func (m IcbcModel) Vtable() string {
	if m == GEFS {
		return "Vtable.GFSENS"
	}
	return "Vtable.GFS"
}

// IcbcSource is where the input GRIB files come from.
type IcbcSource int

const (
	// ArchiveSource - GRIB files linked from a local archive tree
	ArchiveSource IcbcSource = iota
	// AWSSource - GRIB files downloaded from the NOAA open data bucket
	AWSSource
)

// FromString ...
func (s *IcbcSource) FromString(value string) error {
	switch strings.ToLower(value) {
	case "archive":
		*s = ArchiveSource
	case "aws":
		*s = AWSSource
	default:
		return fmt.Errorf("unknown icbc source `%s`", value)
	}
	return nil
}

// String ...
func (s IcbcSource) String() string {
	switch s {
	case ArchiveSource:
		return "archive"
	case AWSSource:
		return "aws"
	}
	return "unknown"
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *IcbcSource) UnmarshalText(data []byte) error {
	return s.FromString(string(data))
}

// MarshalText implements encoding.TextMarshaler
func (s IcbcSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

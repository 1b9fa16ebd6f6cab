// Package icbc acquires the GRIB files that provide initial
// and boundary conditions to a simulation, either linking
// them from a local archive or downloading them from the
// NOAA open data bucket.
package icbc

import (
	"context"
	"fmt"
	"time"

	"github.com/meteocima/virtual-server/vpath"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
)

// Source provides the input GRIB files of a cycle.
type Source interface {
	Name() string
	// Get makes the file for one forecast hour of the cycle
	// available in dir. Files already in dir are not
	// acquired twice.
	Get(ctx context.Context, dir vpath.VirtualPath, cycle time.Time, leadHr int) error
}

// FromConf builds the source selected by the configuration.
func FromConf(ctx context.Context, log *zap.SugaredLogger) (Source, error) {
	switch conf.Config.Cycle.Source {
	case conf.ArchiveSource:
		return &ArchiveSource{Root: folders.IcbcArchive(), Log: log}, nil
	case conf.AWSSource:
		return NewAWSSource(ctx, conf.Config.AWS.Bucket, conf.Config.AWS.Region, log)
	}
	return nil, fmt.Errorf("unknown icbc source `%s`", conf.Config.Cycle.Source)
}

// LeadHours lists the forecast hours a cycle needs, from
// analysis to the end of the simulation. fcHours, when
// positive, extends or shortens the default horizon.
func LeadHours(simHours, fcHours, intervalHours int) []int {
	last := simHours
	if fcHours > 0 {
		last = fcHours
	}
	var hours []int
	for h := 0; h <= last; h += intervalHours {
		hours = append(hours, h)
	}
	return hours
}

// Fetch acquires every forecast hour of a cycle into dir.
func Fetch(ctx context.Context, src Source, dir vpath.VirtualPath, cycle time.Time, leadHours []int) error {
	for _, leadHr := range leadHours {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := src.Get(ctx, dir, cycle, leadHr); err != nil {
			return err
		}
	}
	return nil
}

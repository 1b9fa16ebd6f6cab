package icbc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ArchiveSource links GRIB files from a local copy of the
// NCAR ds084.1 archive, laid out as
// `<root>/<year>/<yyyymmdd>/gfs.0p25.<yyyymmddhh>.f<lll>.grib2`.
type ArchiveSource struct {
	Root vpath.VirtualPath
	Log  *zap.SugaredLogger
}

// Name ...
func (s *ArchiveSource) Name() string { return "archive" }

func archiveFileName(cycle time.Time, leadHr int) string {
	return fmt.Sprintf("gfs.0p25.%s.f%03d.grib2", cycle.Format("2006010215"), leadHr)
}

// Get links one archived file into dir. A file missing from
// the archive is skipped with a warning: short simulations
// do not need the whole forecast horizon.
func (s *ArchiveSource) Get(ctx context.Context, dir vpath.VirtualPath, cycle time.Time, leadHr int) error {
	name := archiveFileName(cycle, leadHr)
	target := dir.Join(name)
	if _, err := os.Lstat(target.Path); err == nil {
		s.Log.Debugf("%s already linked", name)
		return nil
	}

	source := s.Root.Join("%s/%s/%s", cycle.Format("2006"), cycle.Format("20060102"), name)
	if _, err := os.Stat(source.Path); os.IsNotExist(err) {
		s.Log.Warnf("%s not found in the archive, skipped", source.String())
		return nil
	} else if err != nil {
		return errors.Wrapf(err, "reading archive file `%s`", source.String())
	}

	if err := os.Symlink(source.Path, target.Path); err != nil {
		return errors.Wrapf(err, "linking `%s`", source.String())
	}
	return nil
}

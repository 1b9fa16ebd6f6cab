package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

const metgridSuccess = "*** Successful completion of program metgrid.exe ***"

// RunMetgrid interpolates the degribbed fields onto the model
// grid. It runs in the WPS directory of the cycle and writes
// the met_em files in the metgrid directory, where real picks
// them up.
func RunMetgrid(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, start, end time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	sets, err := gribSets(start)
	if err != nil {
		return err
	}

	wpsDir := folders.WPSCycleDir(start)
	metDir := folders.MetgridDir(start)
	tr.MkDir(wpsDir)
	tr.MkDir(metDir)

	wps := folders.WPSPrg()
	tr.Link(wps.Join("metgrid.exe"), wpsDir.Join("metgrid.exe"))

	geoFiles := tr.Glob(folders.GeogridDir(), "geo_em*")
	if tr.Err != nil {
		return tr.Err
	}
	if len(geoFiles) == 0 {
		return &StageFailure{
			Stage:  conf.MetgridStage,
			Reason: fmt.Sprintf("no geo_em files in %s, geogrid must run first", folders.GeogridDir().String()),
		}
	}
	for _, f := range geoFiles {
		tr.Link(f, wpsDir.Join("%s", f.Filename()))
	}

	useConstants := conf.Config.Stages.Enabled(conf.AvgTsfcStage)
	if useConstants && !tr.Exists(wpsDir.Join("TAVGSFC")) {
		if tr.Err != nil {
			return tr.Err
		}
		return &StageFailure{
			Stage:  conf.MetgridStage,
			Reason: fmt.Sprintf("no TAVGSFC file in %s, avg_tsfc must run first", wpsDir.String()),
		}
	}

	template := conf.ResolveTemplate(tr, "namelist.wps", templateVariant())
	nmlFile := wpsDir.Join("namelist.wps")
	conf.RenderNameList(tr, template, nmlFile, namelistArgs(start, end))
	content := tr.ReadString(nmlFile)
	content = setNamelistEntry(content, "fg_name", fgName(folders.UngribOutDir(start), sets))
	content = ensureNamelistEntry(content, "&metgrid", "opt_metgrid_tbl_path", fmt.Sprintf("'%s/',", wps.Join("metgrid").Path))
	content = ensureNamelistEntry(content, "&metgrid", "opt_output_from_metgrid_path", fmt.Sprintf("'%s/',", metDir.Path))
	if useConstants {
		content = ensureNamelistEntry(content, "&metgrid", "constants_name", "'./TAVGSFC',")
	}
	tr.WriteString(nmlFile, content)

	script := stageScript(tr, conf.MetgridStage, wpsDir)

	tr.RmGlob(wpsDir, "metgrid.log*")
	tr.RmGlob(wpsDir, "log_metgrid.o*")
	tr.RmGlob(wpsDir, "metgrid.o*")

	status, err := submitAndWait(ctx, tr, s, wpsDir, script, "")
	if err != nil {
		return err
	}

	primary := firstExisting(tr, wpsDir.Join("metgrid.log.0000"), wpsDir.Join("metgrid.log"))
	candidates := tr.Glob(wpsDir, "log_metgrid.o*")
	candidates = append(candidates, tr.Glob(wpsDir, "metgrid.o*")...)
	if outcome := stageOutcome(tr, conf.MetgridStage, status, primary, metgridSuccess, candidates); outcome != nil {
		return outcome
	}

	metFiles := tr.Glob(metDir, "met_em*")
	if tr.Err == nil && len(metFiles) == 0 {
		return &StageFailure{
			Stage:  conf.MetgridStage,
			Reason: fmt.Sprintf("no met_em files produced in %s", metDir.String()),
		}
	}

	return tr.Err
}

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

const realSuccess = "SUCCESS COMPLETE REAL_EM"

// RunReal builds the initial and boundary condition files of
// the simulation. The WRF run directory of the cycle is
// populated with links to every file of the model
// distribution, so both real and wrf find their tables in
// place.
func RunReal(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, start, end time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	wrfDir := folders.WRFCycleDir(start)
	tr.MkDir(wrfDir)

	runDir := folders.WRFPrg().Join("run")
	for _, name := range tr.ReadDir(runDir) {
		tr.Link(runDir.Join("%s", name), wrfDir.Join("%s", name))
	}
	// rendering through the link would overwrite the namelist
	// of the distribution itself
	if tr.Exists(wrfDir.Join("namelist.input")) {
		tr.RmFile(wrfDir.Join("namelist.input"))
	}

	template := conf.ResolveTemplate(tr, "namelist.input", conf.Config.Cycle.ExpName, templateVariant())
	conf.RenderNameList(tr, template, wrfDir.Join("namelist.input"), namelistArgs(start, end))

	metDir := folders.MetgridDir(start)
	metFiles := tr.Glob(metDir, "met_em*")
	if tr.Err != nil {
		return tr.Err
	}
	if len(metFiles) == 0 {
		return &StageFailure{
			Stage:  conf.RealStage,
			Reason: fmt.Sprintf("no met_em files in %s, metgrid must run first", metDir.String()),
		}
	}
	for _, f := range metFiles {
		tr.Link(f, wrfDir.Join("%s", f.Filename()))
	}

	script := stageScript(tr, conf.RealStage, wrfDir)

	tr.RmGlob(wrfDir, "rsl.*")
	tr.RmGlob(wrfDir, "log_real.o*")
	tr.RmGlob(wrfDir, "real.o*")

	status, err := submitAndWait(ctx, tr, s, wrfDir, script, "")
	if err != nil {
		return err
	}

	candidates := tr.Glob(wrfDir, "rsl.error.*")
	candidates = append(candidates, tr.Glob(wrfDir, "log_real.o*")...)
	candidates = append(candidates, tr.Glob(wrfDir, "real.o*")...)
	return stageOutcome(tr, conf.RealStage, status,
		firstExisting(tr, wrfDir.Join("rsl.out.0000")), realSuccess, candidates)
}

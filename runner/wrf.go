package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

const wrfSuccess = "SUCCESS COMPLETE WRF"

// RunWRF submits the simulation itself. With MonitorWRF off
// the job is only submitted and left to the queue, and the
// cycle is considered done.
func RunWRF(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, start, end time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	wrfDir := folders.WRFCycleDir(start)
	tr.MkDir(wrfDir)

	template := conf.ResolveTemplate(tr, "namelist.input", conf.Config.Cycle.ExpName, templateVariant())
	nmlFile := wrfDir.Join("namelist.input")
	if tr.Exists(nmlFile) {
		tr.RmFile(nmlFile)
	}
	conf.RenderNameList(tr, template, nmlFile, namelistArgs(start, end))

	// real must have left the boundary file and one input
	// file per domain of the rendered namelist
	domains := ReadDomainCount(tr, nmlFile)
	if tr.Err != nil {
		return tr.Err
	}
	var missing []string
	for _, file := range wrfInputFiles(domains) {
		if !tr.Exists(wrfDir.Join("%s", file)) {
			missing = append(missing, file)
		}
	}
	if tr.Err != nil {
		return tr.Err
	}
	if len(missing) > 0 {
		return &StageFailure{
			Stage:  conf.WRFStage,
			Reason: fmt.Sprintf("missing input files in %s: %s, real must run first", wrfDir.String(), strings.Join(missing, ", ")),
		}
	}

	script := stageScript(tr, conf.WRFStage, wrfDir)

	tr.RmGlob(wrfDir, "rsl.*")
	tr.RmGlob(wrfDir, "log_wrf.o*")
	tr.RmGlob(wrfDir, "wrf.o*")

	if !conf.Config.Cycle.MonitorWRF {
		job, err := submitStage(ctx, tr, s, wrfDir, script, wrfJobName(start))
		if err != nil {
			return err
		}
		tr.Log.Infof("wrf job %s left running on the queue", job.ID)
		return tr.Err
	}

	status, err := submitAndWait(ctx, tr, s, wrfDir, script, wrfJobName(start))
	if err != nil {
		return err
	}

	candidates := tr.Glob(wrfDir, "rsl.error.*")
	candidates = append(candidates, tr.Glob(wrfDir, "log_wrf.o*")...)
	candidates = append(candidates, tr.Glob(wrfDir, "wrf.o*")...)
	return stageOutcome(tr, conf.WRFStage, status,
		firstExisting(tr, wrfDir.Join("rsl.out.0000")), wrfSuccess, candidates)
}

// wrfInputFiles lists the files real leaves for wrf.
func wrfInputFiles(domains int) []string {
	files := []string{"wrfbdy_d01"}
	for d := 1; d <= domains; d++ {
		files = append(files, fmt.Sprintf("wrfinput_d%02d", d))
	}
	return files
}

// wrfJobName builds the name the job shows on the queue,
// keeping the member digit visible in the listings.
func wrfJobName(start time.Time) string {
	name := "wrf"
	if exp := conf.Config.Cycle.ExpName; exp != "" {
		name = "M" + exp[len(exp)-1:]
	}
	return fmt.Sprintf("%s_%s", name, start.Format("02_15"))
}

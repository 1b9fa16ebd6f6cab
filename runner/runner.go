package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/parro-it/fileargs"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/icbc"
	"github.com/meteocima/wrffire-runner/sched"
)

// Init reads the configuration file the runner works with.
func Init(cfgFile vpath.VirtualPath) error {
	return conf.Init(cfgFile)
}

// RunGetIcbc fetches the GRIB files the cycle degribs, one
// per forecast lead hour.
func RunGetIcbc(ctx context.Context, tr *fsutil.Transaction, start time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	template := conf.ResolveTemplate(tr, "namelist.wps", templateVariant())
	interval := ReadIntervalHours(tr, template)
	if tr.Err != nil {
		return tr.Err
	}

	src, err := icbc.FromConf(ctx, tr.Log)
	if err != nil {
		return err
	}

	gribDir := folders.GribDir(start)
	tr.MkDir(gribDir)
	if tr.Err != nil {
		return tr.Err
	}

	leads := icbc.LeadHours(conf.Config.Cycle.SimHours, conf.Config.Cycle.IcbcFcHours, interval)
	tr.Log.Infof("fetching %d grib files from %s", len(leads), src.Name())
	return icbc.Fetch(ctx, src, gribDir, start, leads)
}

func runStage(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, stage conf.Stage, start, end time.Time) error {
	switch stage {
	case conf.GeogridStage:
		return RunGeogrid(ctx, tr, s, start, end)
	case conf.GetIcbcStage:
		return RunGetIcbc(ctx, tr, start)
	case conf.UngribStage:
		return RunUngrib(ctx, tr, s, start)
	case conf.AvgTsfcStage:
		return RunAvgTsfc(ctx, tr, start, end)
	case conf.MetgridStage:
		return RunMetgrid(ctx, tr, s, start, end)
	case conf.RealStage:
		return RunReal(ctx, tr, s, start, end)
	case conf.WRFStage:
		return RunWRF(ctx, tr, s, start, end)
	}
	return fmt.Errorf("unknown stage %s", stage)
}

// runCycle runs every enabled stage of one cycle, in order.
// The first failed stage aborts the ones behind it, a stage
// cannot produce anything sound from a broken input. Nothing
// is rolled back, the work directories stay as the failure
// left them.
func runCycle(ctx context.Context, s sched.Scheduler, log *zap.SugaredLogger, start time.Time) ([]StageResult, error) {
	end := start.Add(time.Duration(conf.Config.Cycle.SimHours) * time.Hour)

	var results []StageResult
	for _, stage := range conf.AllStages {
		if !conf.Config.Stages.Enabled(stage) {
			results = append(results, StageResult{Cycle: start, Stage: stage, Status: conf.StageSkipped})
			continue
		}

		if err := ctx.Err(); err != nil {
			return results, err
		}

		tr := &fsutil.Transaction{Log: log}
		log.Infof("STARTING STAGE %s OF CYCLE %s", stage, folders.CycleTag(start))
		err := runStage(ctx, tr, s, stage, start, end)
		if err == nil {
			err = tr.Err
		}
		if err != nil {
			log.Errorf("stage %s of cycle %s: %s", stage, folders.CycleTag(start), err)
			results = append(results, StageResult{Cycle: start, Stage: stage, Status: conf.StageFailed, Err: err})
			return results, err
		}
		results = append(results, StageResult{Cycle: start, Stage: stage, Status: conf.StageSuccess})
	}

	if conf.Config.Cycle.Archive {
		tr := &fsutil.Transaction{Log: log}
		if err := ArchiveOutputs(tr, start); err != nil {
			return results, err
		}
	}

	return results, nil
}

// Run executes every cycle of every period, in order. Cycle
// starts step CycleIntHours through each period, extremes
// included, and every cycle simulates SimHours from its own
// start. The first failed cycle stops the ones behind it.
func Run(ctx context.Context, s sched.Scheduler, log *zap.SugaredLogger, periods []*fileargs.Period) ([]StageResult, error) {
	step := time.Duration(conf.Config.Cycle.CycleIntHours) * time.Hour

	var results []StageResult
	for _, p := range periods {
		last := p.Start.Add(p.Duration)
		for dt := p.Start; !dt.After(last); dt = dt.Add(step) {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			log.Infof("STARTING CYCLE %s", dt.Format("2006010215"))
			cycleResults, err := runCycle(ctx, s, log, dt)
			results = append(results, cycleResults...)
			if err != nil {
				return results, err
			}
			log.Infof("CYCLE %s COMPLETED", dt.Format("2006010215"))
		}
	}

	return results, nil
}

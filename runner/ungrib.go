package runner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

const ungribSuccess = "Successful completion of program ungrib.exe"

// gribSet is one family of GRIB files a model publishes.
// Each set is degribbed on its own, into products named
// `<prefix>:<instant>`.
type gribSet struct {
	Prefix  string
	Vtable  string
	Pattern string
}

// gribSets returns the sets to degrib for a cycle. GEFS
// spreads its fields over two sets; the B one comes first
// because downstream programs list it first.
func gribSets(cycle time.Time) ([]gribSet, error) {
	gribDir := folders.GribDir(cycle)

	switch conf.Config.Cycle.Model {
	case conf.GFS:
		pattern := gribDir.Join("gfs.0p25.%s.f*", cycle.Format("2006010215")).Path
		if conf.Config.Cycle.Source == conf.AWSSource {
			pattern = gribDir.Join("gfs.t%02dz.pgrb2.0p25.f*", cycle.Hour()).Path
		}
		return []gribSet{{Prefix: "GFS", Vtable: "Vtable.GFS", Pattern: pattern}}, nil

	case conf.GFSFNL:
		return []gribSet{{
			Prefix:  "GFS_FNL",
			Vtable:  "Vtable.GFS",
			Pattern: gribDir.Join("gdas1.fnl0p25.*.grib2").Path,
		}}, nil

	case conf.GEFS:
		member, err := memberID(conf.Config.Cycle.ExpName)
		if err != nil {
			return nil, err
		}
		return []gribSet{
			{
				Prefix:  "GEFS_B",
				Vtable:  "Vtable.GFSENS",
				Pattern: gribDir.Join("pgrb2bp5/gep%s.t%02dz.pgrb2b.0p50.f*", member, cycle.Hour()).Path,
			},
			{
				Prefix:  "GEFS_A",
				Vtable:  "Vtable.GFSENS",
				Pattern: gribDir.Join("pgrb2ap5/gep%s.t%02dz.pgrb2a.0p50.f*", member, cycle.Hour()).Path,
			},
		}, nil
	}

	return nil, fmt.Errorf("no grib sets known for model %s", conf.Config.Cycle.Model)
}

// memberID extracts the ensemble member number from the
// experiment name: `mem03` and `exp3` both give `03`.
func memberID(expName string) (string, error) {
	digits := expName
	for i, r := range expName {
		if r >= '0' && r <= '9' {
			digits = expName[i:]
			break
		}
	}
	member, err := strconv.Atoi(digits)
	if err != nil {
		return "", fmt.Errorf("cannot extract the ensemble member from ExpName `%s`", expName)
	}
	return fmt.Sprintf("%02d", member), nil
}

func ungribProductName(prefix string, instant time.Time) string {
	return fmt.Sprintf("%s:%s", prefix, instant.Format("2006-01-02_15"))
}

type ungribJob struct {
	dir     vpath.VirtualPath
	instant time.Time
	set     gribSet
	handle  sched.JobHandle
}

// RunUngrib degribs the input files of a cycle. Every
// boundary instant of every set runs as its own single core
// job in its own directory, so the jobs can run side by side
// without stepping on each other's intermediate files. The
// products of the verified jobs are then collected into the
// ungrib directory of the cycle.
func RunUngrib(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, start time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	template := conf.ResolveTemplate(tr, "namelist.wps", templateVariant())
	interval := ReadIntervalHours(tr, template)
	if tr.Err != nil {
		return tr.Err
	}

	sets, err := gribSets(start)
	if err != nil {
		return err
	}

	outDir := folders.UngribOutDir(start)
	tr.MkDir(outDir)

	instants := folders.BoundaryTimes(start, conf.Config.Cycle.SimHours, interval)
	tr.Log.Infof("degribbing %d instants of %d set(s)", len(instants), len(sets))

	// every job directory is fully prepared before anything
	// is submitted, so a broken one costs no queue time
	var jobs []*ungribJob
	script := ""
	for _, set := range sets {
		for _, instant := range instants {
			job := &ungribJob{
				dir:     folders.UngribJobDir(start, set.Prefix, instant),
				instant: instant,
				set:     set,
			}
			script = buildUngribDir(ctx, tr, job, template)
			if tr.Err != nil {
				return tr.Err
			}
			jobs = append(jobs, job)
		}
	}

	delay := time.Duration(conf.Config.Sched.SubmitDelaySec) * time.Second
	for i, job := range jobs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		handle, err := submitStage(ctx, tr, s, job.dir, script, "")
		if err != nil {
			return err
		}
		job.handle = handle
	}

	for _, job := range jobs {
		status, err := sched.Poll(ctx, s, job.handle, pollOptions(tr.Log))
		if err != nil {
			return err
		}

		candidates := tr.Glob(job.dir, "ungrib.o*")
		candidates = append(candidates, tr.Glob(job.dir, "log_ungrib.o*")...)
		outcome := stageOutcome(tr, conf.UngribStage, status,
			job.dir.Join("ungrib.log"), ungribSuccess, candidates)
		if outcome != nil {
			return outcome
		}

		product := ungribProductName(job.set.Prefix, job.instant)
		tr.Move(job.dir.Join(product), outDir.Join(product))
	}

	return tr.Err
}

// buildUngribDir prepares the directory where the ungrib job
// of one instant runs, and returns the job script name.
func buildUngribDir(ctx context.Context, tr *fsutil.Transaction, job *ungribJob, template vpath.VirtualPath) string {
	tr.MkDir(job.dir)

	wps := folders.WPSPrg()
	tr.Link(wps.Join("ungrib.exe"), job.dir.Join("ungrib.exe"))
	tr.Link(wps.Join("link_grib.csh"), job.dir.Join("link_grib.csh"))
	tr.Link(wps.Join("ungrib/Variable_Tables/%s", job.set.Vtable), job.dir.Join("Vtable"))

	// the namelist covers just this instant, and the product
	// prefix keeps the sets apart
	nmlFile := job.dir.Join("namelist.wps")
	conf.RenderNameList(tr, template, nmlFile, namelistArgs(job.instant, job.instant))
	content := tr.ReadString(nmlFile)
	content = setNamelistEntry(content, "prefix", fmt.Sprintf("'%s',", job.set.Prefix))
	tr.WriteString(nmlFile, content)

	// a stale product would make a failed run look verified
	product := job.dir.Join(ungribProductName(job.set.Prefix, job.instant))
	if tr.Exists(product) {
		tr.RmFile(product)
	}
	tr.RmGlob(job.dir, "ungrib.log*")
	tr.RmGlob(job.dir, "ungrib.o*")
	tr.RmGlob(job.dir, "log_ungrib.o*")

	tr.Run(ctx, job.dir, vpath.VirtualPath{}, conf.Config.Env.ToSlice(),
		"./link_grib.csh", job.set.Pattern)

	return stageScript(tr, conf.UngribStage, job.dir)
}

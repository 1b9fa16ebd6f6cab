package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meteocima/namelist-prepare/namelist"
	"github.com/meteocima/virtual-server/vpath"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

// ReasonAmbiguousLog is the failure reason of a stage whose
// job terminated but whose logs confirm neither success nor
// failure. Such a stage must not be trusted.
const ReasonAmbiguousLog = "ambiguous-log"

// StageFailure reports a stage whose execution or whose
// logs denote a failed run.
type StageFailure struct {
	Stage   conf.Stage
	Reason  string
	LogFile string
}

func (e *StageFailure) Error() string {
	if e.LogFile != "" {
		return fmt.Sprintf("stage %s failed: %s (see %s)", e.Stage, e.Reason, e.LogFile)
	}
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Reason)
}

// StageResult is the outcome of one stage of one cycle.
type StageResult struct {
	Cycle  time.Time
	Stage  conf.Stage
	Status conf.StageStatus
	Err    error
}

func pollOptions(log *zap.SugaredLogger) sched.PollOptions {
	return sched.PollOptions{
		Interval:          time.Duration(conf.Config.Sched.PollIntervalSec) * time.Second,
		MaxWait:           time.Duration(conf.Config.Sched.PollMaxHours) * time.Hour,
		NotVisibleRetries: conf.Config.Sched.NotVisibleRetries,
		Log:               log,
	}
}

// stageScript copies the job script template of a stage into
// its run directory and returns the script name.
func stageScript(tr *fsutil.Transaction, stage conf.Stage, dir vpath.VirtualPath) string {
	name := fmt.Sprintf("submit_%s.sh", stage)
	template := conf.ResolveTemplate(tr, name, conf.Config.Cycle.Hostname)
	tr.Copy(template, dir.Join(name))
	return name
}

// submitStage enqueues the job script of a stage.
func submitStage(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, dir vpath.VirtualPath, script, jobName string) (sched.JobHandle, error) {
	if tr.Err != nil {
		return sched.JobHandle{}, tr.Err
	}
	job, err := s.Submit(ctx, dir, script, sched.SubmitOptions{
		JobName: jobName,
		Queue:   conf.Config.Sched.Queue,
	})
	if err != nil {
		return sched.JobHandle{}, err
	}
	tr.Log.Infof("job %s submitted from %s", job.ID, dir.String())
	return job, nil
}

// submitAndWait submits a job script and polls the scheduler
// until the job terminates.
func submitAndWait(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, dir vpath.VirtualPath, script, jobName string) (sched.JobStatus, error) {
	job, err := submitStage(ctx, tr, s, dir, script, jobName)
	if err != nil {
		return sched.JobStatus{}, err
	}
	return sched.Poll(ctx, s, job, pollOptions(tr.Log))
}

// stageOutcome decides how a stage whose job reached a
// terminal state went. The logs have the last word: a job
// that completed without confirming success in its logs is a
// failure, and the keyword found in a log names a failure
// better than an exit code does.
func stageOutcome(tr *fsutil.Transaction, stage conf.Stage, status sched.JobStatus, primary vpath.VirtualPath, successKeyword string, candidates []vpath.VirtualPath) error {
	if tr.Err != nil {
		return tr.Err
	}

	logErr := checkStageLog(tr, stage, primary, successKeyword, candidates)
	if tr.Err != nil {
		return tr.Err
	}
	if status.State == sched.StateCompleted {
		return logErr
	}

	if failure, ok := logErr.(*StageFailure); ok && failure.Reason != ReasonAmbiguousLog {
		return failure
	}
	return &StageFailure{
		Stage:  stage,
		Reason: fmt.Sprintf("job terminated as %s with exit code %d", status.State, status.ExitCode),
	}
}

// templateVariant is the suffix of the namelist templates
// specific to the input model.
func templateVariant() string {
	return strings.ToLower(conf.Config.Cycle.Model.String())
}

func namelistArgs(start, end time.Time) namelist.Args {
	return namelist.Args{
		Start: start,
		End:   end,
		Hours: int(end.Sub(start).Hours()),
	}
}

package sched

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
)

// Slurm drives the Slurm workload manager through
// its sbatch and sacct commands.
type Slurm struct{}

// Name ...
func (s *Slurm) Name() string { return "slurm" }

// sbatch answers with a single line like
// `Submitted batch job 123456`.
var sbatchJobID = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submit ...
func (s *Slurm) Submit(ctx context.Context, dir vpath.VirtualPath, script string, opts SubmitOptions) (JobHandle, error) {
	var args []string
	if opts.JobName != "" {
		args = append(args, "-J", opts.JobName)
	}
	if opts.Queue != "" {
		args = append(args, "-p", opts.Queue)
	}
	args = append(args, script)

	cmd := exec.CommandContext(ctx, "sbatch", args...)
	cmd.Dir = dir.Path
	out, err := cmd.CombinedOutput()
	if err != nil {
		return JobHandle{}, &SubmissionError{
			Scheduler: s.Name(),
			Script:    script,
			Output:    string(out),
			Err:       err,
		}
	}

	match := sbatchJobID.FindStringSubmatch(string(out))
	if match == nil {
		return JobHandle{}, &SubmissionError{
			Scheduler: s.Name(),
			Script:    script,
			Output:    string(out),
			Err:       errors.New("no job id in sbatch output"),
		}
	}
	return JobHandle{ID: match[1]}, nil
}

// Status asks the accounting database about the job. Right
// after submission sacct can answer nothing for a while,
// which is reported as ErrJobNotVisible.
func (s *Slurm) Status(ctx context.Context, job JobHandle) (JobStatus, error) {
	cmd := exec.CommandContext(ctx, "sacct", "-n", "-P", "-X", "--format=State,ExitCode", "-j", job.ID)
	out, err := cmd.Output()
	if err != nil {
		return JobStatus{}, &PollingError{
			Scheduler: s.Name(),
			JobID:     job.ID,
			Reason:    "sacct failed",
			Err:       err,
		}
	}

	status, err := parseSacct(string(out))
	if err == ErrJobNotVisible {
		return JobStatus{}, err
	}
	if err != nil {
		return JobStatus{}, &PollingError{
			Scheduler: s.Name(),
			JobID:     job.ID,
			Reason:    err.Error(),
		}
	}
	return status, nil
}

// parseSacct interprets the `State|ExitCode` line of the main
// job record. Steps like `123.batch` are excluded by -X.
func parseSacct(out string) (JobStatus, error) {
	line := ""
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			line = strings.TrimSpace(l)
			break
		}
	}
	if line == "" {
		return JobStatus{}, ErrJobNotVisible
	}

	fields := strings.Split(line, "|")
	if len(fields) < 2 {
		return JobStatus{}, fmt.Errorf("malformed sacct line `%s`", line)
	}

	// `CANCELLED by 502` must become CANCELLED
	words := strings.Fields(fields[0])
	if len(words) == 0 {
		return JobStatus{}, fmt.Errorf("malformed sacct line `%s`", line)
	}
	raw := strings.TrimSuffix(words[0], "+")

	state, err := slurmState(raw)
	if err != nil {
		return JobStatus{}, err
	}

	exitCode := 0
	if code := strings.Split(fields[1], ":"); code[0] != "" {
		if n, err := strconv.Atoi(code[0]); err == nil {
			exitCode = n
		}
	}

	return JobStatus{State: state, ExitCode: exitCode, Raw: raw}, nil
}

func slurmState(raw string) (JobState, error) {
	switch raw {
	case "PENDING", "REQUEUED", "RESIZING":
		return StatePending, nil
	case "RUNNING", "COMPLETING", "SUSPENDED":
		return StateRunning, nil
	case "COMPLETED":
		return StateCompleted, nil
	case "FAILED", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE", "PREEMPTED", "REVOKED":
		return StateFailed, nil
	case "CANCELLED":
		return StateCancelled, nil
	case "TIMEOUT":
		return StateTimeout, nil
	case "NODE_FAIL":
		return StateNodeFail, nil
	}
	return StatePending, fmt.Errorf("unknown job state `%s`", raw)
}

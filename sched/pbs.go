package sched

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
)

// PBS drives PBS Pro through its qsub and qstat commands.
type PBS struct{}

// Name ...
func (p *PBS) Name() string { return "pbs" }

// Submit ...
func (p *PBS) Submit(ctx context.Context, dir vpath.VirtualPath, script string, opts SubmitOptions) (JobHandle, error) {
	var args []string
	if opts.JobName != "" {
		args = append(args, "-N", opts.JobName)
	}
	if opts.Queue != "" {
		args = append(args, "-q", opts.Queue)
	}
	args = append(args, script)

	cmd := exec.CommandContext(ctx, "qsub", args...)
	cmd.Dir = dir.Path
	out, err := cmd.CombinedOutput()
	if err != nil {
		return JobHandle{}, &SubmissionError{
			Scheduler: p.Name(),
			Script:    script,
			Output:    string(out),
			Err:       err,
		}
	}

	// qsub answers with the full job id, like
	// `2215719.casper-pbs`.
	parts := strings.Split(strings.TrimSpace(string(out)), ".")
	if len(parts) < 2 || parts[0] == "" {
		return JobHandle{}, &SubmissionError{
			Scheduler: p.Name(),
			Script:    script,
			Output:    string(out),
			Err:       errors.New("no job id in qsub output"),
		}
	}
	return JobHandle{ID: parts[0], Queue: parts[1]}, nil
}

// Status asks qstat about the job, including finished ones
// kept in the server history.
func (p *PBS) Status(ctx context.Context, job JobHandle) (JobStatus, error) {
	cmd := exec.CommandContext(ctx, "qstat", "-x", "-f", job.ID)
	out, err := cmd.Output()
	if err != nil {
		if execErr, ok := err.(*exec.ExitError); ok &&
			strings.Contains(string(execErr.Stderr), "Unknown Job Id") {
			return JobStatus{}, ErrJobNotVisible
		}
		return JobStatus{}, &PollingError{
			Scheduler: p.Name(),
			JobID:     job.ID,
			Reason:    "qstat failed",
			Err:       err,
		}
	}

	status, err := parseQstat(string(out))
	if err == ErrJobNotVisible {
		return JobStatus{}, err
	}
	if err != nil {
		return JobStatus{}, &PollingError{
			Scheduler: p.Name(),
			JobID:     job.ID,
			Reason:    err.Error(),
		}
	}
	return status, nil
}

// parseQstat reads `job_state` and `Exit_status` from the
// full format qstat output. A finished job without an exit
// status never ran: it was deleted from the queue.
func parseQstat(out string) (JobStatus, error) {
	state := ""
	exitCode := 0
	exitSeen := false

	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " = ", 2)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "job_state":
			state = fields[1]
		case "Exit_status":
			if n, err := strconv.Atoi(fields[1]); err == nil {
				exitCode = n
				exitSeen = true
			}
		}
	}

	if state == "" {
		return JobStatus{}, ErrJobNotVisible
	}

	status := JobStatus{ExitCode: exitCode, Raw: state}
	switch state {
	case "Q", "H", "W", "T":
		status.State = StatePending
	case "R", "E", "B", "S", "U":
		status.State = StateRunning
	case "F", "X", "C":
		switch {
		case !exitSeen:
			status.State = StateCancelled
		case exitCode == 0:
			status.State = StateCompleted
		default:
			status.State = StateFailed
		}
	default:
		return JobStatus{}, fmt.Errorf("unknown job state `%s`", state)
	}
	return status, nil
}

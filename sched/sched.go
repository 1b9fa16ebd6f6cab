// Package sched submits jobs to the workload manager of the
// machine and polls them until completion. Slurm and PBS are
// supported, and the right one can be detected at runtime.
package sched

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
)

// JobHandle identifies a submitted job.
type JobHandle struct {
	// ID is the scheduler identifier of the job.
	ID string
	// Queue is the queue or server the job was routed to,
	// when the scheduler reports one at submission.
	Queue string
}

// JobState is the lifecycle state of a job,
// as reported by the scheduler.
type JobState int

const (
	// StatePending - the job waits for resources
	StatePending JobState = iota
	// StateRunning - the job is executing
	StateRunning
	// StateCompleted - the job terminated with success
	StateCompleted
	// StateFailed - the job terminated with an error
	StateFailed
	// StateCancelled - the job was removed by a user or operator
	StateCancelled
	// StateTimeout - the job exceeded its time limit
	StateTimeout
	// StateNodeFail - the job was lost to a node failure
	StateNodeFail
)

// Terminal returns whether the job has stopped executing.
func (s JobState) Terminal() bool {
	return s >= StateCompleted
}

// String ...
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	case StateTimeout:
		return "TIMEOUT"
	case StateNodeFail:
		return "NODE_FAIL"
	}
	return "UNKNOWN"
}

// JobStatus is the state of a job at one instant,
// together with its exit code when terminal.
type JobStatus struct {
	State    JobState
	ExitCode int
	// Raw is the state as printed by the scheduler.
	Raw string
}

// SubmitOptions ...
type SubmitOptions struct {
	// JobName overrides the name declared by the job script.
	JobName string
	// Queue routes the job to a queue or partition.
	Queue string
}

// Scheduler abstracts the workload manager commands needed
// to run a simulation: submitting a job script and asking
// the state of a job. Nothing here ever cancels a job.
type Scheduler interface {
	// Name returns which scheduler this is.
	Name() string
	// Submit enqueues the script job script found in dir
	// and returns a handle to the created job.
	Submit(ctx context.Context, dir vpath.VirtualPath, script string, opts SubmitOptions) (JobHandle, error)
	// Status reports the current state of a job.
	// It returns ErrJobNotVisible when the scheduler
	// has no record of it.
	Status(ctx context.Context, job JobHandle) (JobStatus, error)
}

// ErrJobNotVisible is returned by Status when the scheduler
// has no record of the job. Right after submission this is
// normal, accounting can lag behind.
var ErrJobNotVisible = errors.New("job not visible to the scheduler")

// SubmissionError reports a job submission that the scheduler
// refused or answered in an unexpected way.
type SubmissionError struct {
	Scheduler string
	Script    string
	Output    string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission of `%s` failed: %v (output: %s)",
		e.Scheduler, e.Script, e.Err, strings.TrimSpace(e.Output))
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// PollingError reports that the state of a submitted job
// cannot be determined.
type PollingError struct {
	Scheduler string
	JobID     string
	Reason    string
	Err       error
}

func (e *PollingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: polling of job %s failed: %s: %v", e.Scheduler, e.JobID, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: polling of job %s failed: %s", e.Scheduler, e.JobID, e.Reason)
}

func (e *PollingError) Unwrap() error {
	return e.Err
}

// Detect returns the scheduler installed on this machine,
// recognized by the submission command found in PATH.
func Detect() (Scheduler, error) {
	if _, err := exec.LookPath("sbatch"); err == nil {
		return &Slurm{}, nil
	}
	if _, err := exec.LookPath("qsub"); err == nil {
		return &PBS{}, nil
	}
	return nil, errors.New("no job scheduler found on this machine")
}

// New returns the scheduler named by kind, detecting the
// installed one when kind is `auto` or empty.
func New(kind string) (Scheduler, error) {
	switch strings.ToLower(kind) {
	case "", "auto":
		return Detect()
	case "slurm":
		return &Slurm{}, nil
	case "pbs":
		return &PBS{}, nil
	}
	return nil, fmt.Errorf("unknown scheduler kind `%s`", kind)
}

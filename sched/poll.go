package sched

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PollOptions ...
type PollOptions struct {
	// Interval between two status queries.
	Interval time.Duration

	// MaxWait bounds the whole polling. 0 means no bound.
	MaxWait time.Duration

	// NotVisibleRetries is how many times in a row a job
	// is allowed to be unknown to the scheduler before
	// the polling gives up. Accounting needs some time to
	// see a freshly submitted job.
	NotVisibleRetries int

	Log *zap.SugaredLogger
}

// Poll queries the state of a job at a fixed interval until
// the job reaches a terminal state, and returns that state.
//
// When the context is interrupted the polling stops and the
// context error is returned, but the job itself is left
// running: the simulation must survive the process that
// submitted it.
func Poll(ctx context.Context, s Scheduler, job JobHandle, opts PollOptions) (JobStatus, error) {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	var expired <-chan time.Time
	if opts.MaxWait > 0 {
		deadline := time.NewTimer(opts.MaxWait)
		defer deadline.Stop()
		expired = deadline.C
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	seen := false
	notVisible := 0
	for {
		status, err := s.Status(ctx, job)
		switch {
		case err == ErrJobNotVisible && seen:
			return JobStatus{}, &PollingError{
				Scheduler: s.Name(),
				JobID:     job.ID,
				Reason:    "job record disappeared from the scheduler",
			}
		case err == ErrJobNotVisible:
			notVisible++
			if notVisible > opts.NotVisibleRetries {
				return JobStatus{}, &PollingError{
					Scheduler: s.Name(),
					JobID:     job.ID,
					Reason:    fmt.Sprintf("job not visible after %d polls", notVisible),
				}
			}
			if opts.Log != nil {
				opts.Log.Debugf("job %s not visible yet (%d/%d)", job.ID, notVisible, opts.NotVisibleRetries)
			}
		case err != nil:
			return JobStatus{}, err
		default:
			seen = true
			if status.State.Terminal() {
				return status, nil
			}
			if opts.Log != nil {
				opts.Log.Debugf("job %s is %s", job.ID, status.State)
			}
		}

		select {
		case <-ctx.Done():
			return JobStatus{}, ctx.Err()
		case <-expired:
			return JobStatus{}, &PollingError{
				Scheduler: s.Name(),
				JobID:     job.ID,
				Reason:    fmt.Sprintf("job not terminated after %s", opts.MaxWait),
			}
		case <-ticker.C:
		}
	}
}

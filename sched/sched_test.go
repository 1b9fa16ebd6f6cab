package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSacct(t *testing.T) {
	status, err := parseSacct("COMPLETED|0:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 0, status.ExitCode)

	status, err = parseSacct("FAILED|127:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, 127, status.ExitCode)

	status, err = parseSacct("CANCELLED by 502|0:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StateCancelled, status.State)

	status, err = parseSacct("TIMEOUT|0:1\n")
	assert.NoError(t, err)
	assert.Equal(t, StateTimeout, status.State)

	status, err = parseSacct("NODE_FAIL|0:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StateNodeFail, status.State)

	status, err = parseSacct("PENDING|0:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StatePending, status.State)
	assert.False(t, status.State.Terminal())

	status, err = parseSacct("RUNNING|0:0\n")
	assert.NoError(t, err)
	assert.Equal(t, StateRunning, status.State)
}

func TestParseSacctNotVisible(t *testing.T) {
	_, err := parseSacct("")
	assert.Equal(t, ErrJobNotVisible, err)

	_, err = parseSacct("\n\n")
	assert.Equal(t, ErrJobNotVisible, err)
}

func TestParseSacctMalformed(t *testing.T) {
	_, err := parseSacct("COMPLETED\n")
	assert.Error(t, err)

	_, err = parseSacct("SOMETHING_NEW|0:0\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SOMETHING_NEW")
}

func TestParseQstat(t *testing.T) {
	out := `Job Id: 2215719.casper-pbs
    Job_Name = M1_20240101_00
    job_state = R
    queue = casper
`
	status, err := parseQstat(out)
	assert.NoError(t, err)
	assert.Equal(t, StateRunning, status.State)

	out = `Job Id: 2215719.casper-pbs
    job_state = F
    Exit_status = 0
`
	status, err = parseQstat(out)
	assert.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 0, status.ExitCode)

	out = `Job Id: 2215719.casper-pbs
    job_state = F
    Exit_status = 271
`
	status, err = parseQstat(out)
	assert.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, 271, status.ExitCode)
}

func TestParseQstatDeleted(t *testing.T) {
	// a job removed from the queue before running
	// finishes without any exit status
	out := `Job Id: 2215720.casper-pbs
    job_state = F
`
	status, err := parseQstat(out)
	assert.NoError(t, err)
	assert.Equal(t, StateCancelled, status.State)
}

func TestParseQstatNotVisible(t *testing.T) {
	_, err := parseQstat("")
	assert.Equal(t, ErrJobNotVisible, err)
}

func TestParseQstatUnknownState(t *testing.T) {
	_, err := parseQstat("    job_state = Z\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "`Z`")
}

func TestNewScheduler(t *testing.T) {
	s, err := New("slurm")
	assert.NoError(t, err)
	assert.Equal(t, "slurm", s.Name())

	s, err = New("PBS")
	assert.NoError(t, err)
	assert.Equal(t, "pbs", s.Name())

	_, err = New("lsf")
	assert.Error(t, err)
}

package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

func testTransaction() *fsutil.Transaction {
	return &fsutil.Transaction{Log: zap.NewNop().Sugar()}
}

func writeLog(t *testing.T, dir, name, content string) vpath.VirtualPath {
	t.Helper()
	file := filepath.Join(dir, name)
	err := os.WriteFile(file, []byte(content), 0644)
	assert.NoError(t, err)
	return vpath.Local(file)
}

func TestFindFailureKeyword(t *testing.T) {
	assert.Equal(t, "FATAL", findFailureKeyword("FATAL CALLED FROM FILE"))
	assert.Equal(t, "forrtl:", findFailureKeyword("forrtl: severe (174)"))
	assert.Equal(t, "BAD TERMINATION", findFailureKeyword("= BAD TERMINATION OF ONE OF YOUR PROCESSES ="))
	assert.Equal(t, "", findFailureKeyword("Timing for main: time 2020-11-26_01:00:00"))
}

func TestCheckStageLogSuccess(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "ungrib.log", "...\nSuccessful completion of program ungrib.exe\n")

	tr := testTransaction()
	err := checkStageLog(tr, conf.UngribStage, log, ungribSuccess, nil)
	assert.NoError(t, err)
}

func TestCheckStageLogFailureKeyword(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "metgrid.log", "ERROR: The mandatory field TT was not found\n")

	tr := testTransaction()
	err := checkStageLog(tr, conf.MetgridStage, log, metgridSuccess, nil)
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, conf.MetgridStage, failure.Stage)
	assert.Contains(t, failure.Reason, "ERROR")
	assert.Equal(t, log.String(), failure.LogFile)
}

func TestCheckStageLogSuccessWins(t *testing.T) {
	// wrf prints harmless `Error` lines while converging, the
	// success keyword settles the outcome
	dir := t.TempDir()
	log := writeLog(t, dir, "rsl.out.0000", "Error in phys while reading...recovered\nd01 2020-11-27_00:00:00 wrf: SUCCESS COMPLETE WRF\n")

	tr := testTransaction()
	err := checkStageLog(tr, conf.WRFStage, log, wrfSuccess, nil)
	assert.NoError(t, err)
}

func TestCheckStageLogCandidates(t *testing.T) {
	dir := t.TempDir()
	primary := vpath.Local(filepath.Join(dir, "rsl.out.0000"))
	candidate := writeLog(t, dir, "rsl.error.0000", "FATAL CALLED FROM FILE: module_initialize_real\n")

	tr := testTransaction()
	err := checkStageLog(tr, conf.RealStage, primary, realSuccess, []vpath.VirtualPath{candidate})
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Contains(t, failure.Reason, "FATAL")
	assert.Equal(t, candidate.String(), failure.LogFile)
}

func TestCheckStageLogAmbiguous(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "ungrib.log", "Inventory for date = 2020-11-26 00:00:00\n")

	tr := testTransaction()
	err := checkStageLog(tr, conf.UngribStage, log, ungribSuccess, nil)
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ReasonAmbiguousLog, failure.Reason)
}

func TestCheckStageLogAllMissing(t *testing.T) {
	dir := t.TempDir()
	primary := vpath.Local(filepath.Join(dir, "metgrid.log"))

	tr := testTransaction()
	err := checkStageLog(tr, conf.MetgridStage, primary, metgridSuccess, []vpath.VirtualPath{
		vpath.Local(filepath.Join(dir, "metgrid.o1")),
	})
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ReasonAmbiguousLog, failure.Reason)
}

func TestStageOutcomeCompleted(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "metgrid.log", "*** Successful completion of program metgrid.exe ***\n")

	tr := testTransaction()
	status := sched.JobStatus{State: sched.StateCompleted}
	err := stageOutcome(tr, conf.MetgridStage, status, log, metgridSuccess, nil)
	assert.NoError(t, err)
}

func TestStageOutcomeCompletedButAmbiguous(t *testing.T) {
	// an exit code of zero is not enough, the log must
	// confirm the success
	dir := t.TempDir()
	log := writeLog(t, dir, "metgrid.log", "Processing domain 1 of 2\n")

	tr := testTransaction()
	status := sched.JobStatus{State: sched.StateCompleted}
	err := stageOutcome(tr, conf.MetgridStage, status, log, metgridSuccess, nil)
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Equal(t, ReasonAmbiguousLog, failure.Reason)
}

func TestStageOutcomeFailedWithKeyword(t *testing.T) {
	// the keyword names the failure better than the exit code
	dir := t.TempDir()
	log := writeLog(t, dir, "rsl.out.0000", "-------------- FATAL CALLED ---------------\n")

	tr := testTransaction()
	status := sched.JobStatus{State: sched.StateFailed, ExitCode: 1}
	err := stageOutcome(tr, conf.WRFStage, status, log, wrfSuccess, nil)
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Contains(t, failure.Reason, "FATAL")
	assert.NotContains(t, failure.Reason, "exit code")
}

func TestStageOutcomeFailedWithoutLogs(t *testing.T) {
	dir := t.TempDir()
	primary := vpath.Local(filepath.Join(dir, "rsl.out.0000"))

	tr := testTransaction()
	status := sched.JobStatus{State: sched.StateFailed, ExitCode: 127}
	err := stageOutcome(tr, conf.WRFStage, status, primary, wrfSuccess, nil)
	failure, ok := err.(*StageFailure)
	if !assert.True(t, ok) {
		return
	}
	assert.Contains(t, failure.Reason, "exit code 127")
}

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	second := writeLog(t, dir, "metgrid.log", "")

	tr := testTransaction()
	found := firstExisting(tr, vpath.Local(filepath.Join(dir, "metgrid.log.0000")), second)
	assert.Equal(t, second.Path, found.Path)

	none := firstExisting(tr, vpath.Local(filepath.Join(dir, "nothing")))
	assert.Equal(t, "", none.Path)
}

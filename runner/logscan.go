package runner

import (
	"fmt"
	"strings"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/fsutil"
)

// failureKeywords appear in the logs of the WPS and WRF
// programs when something went wrong, whatever the program.
var failureKeywords = []string{
	"FATAL",
	"Fatal",
	"ERROR",
	"Error",
	"BAD TERMINATION",
	"forrtl:",
}

func findFailureKeyword(content string) string {
	for _, keyword := range failureKeywords {
		if strings.Contains(content, keyword) {
			return keyword
		}
	}
	return ""
}

// checkStageLog classifies the outcome of a stage from its
// logs. The success keyword is searched in the primary log
// and wins; failure keywords are then searched in the primary
// log and in every candidate log. Logs that confirm neither
// are ambiguous, which is a failure on its own: a simulation
// cannot be trusted on the silence of its logs.
func checkStageLog(tr *fsutil.Transaction, stage conf.Stage, primary vpath.VirtualPath, successKeyword string, candidates []vpath.VirtualPath) error {
	if tr.Err != nil {
		return tr.Err
	}

	if primary.Path != "" && tr.Exists(primary) {
		content := tr.ReadString(primary)
		if tr.Err != nil {
			return tr.Err
		}
		if strings.Contains(content, successKeyword) {
			return nil
		}
		if keyword := findFailureKeyword(content); keyword != "" {
			return &StageFailure{
				Stage:   stage,
				Reason:  fmt.Sprintf("`%s` found", keyword),
				LogFile: primary.String(),
			}
		}
	}

	for _, log := range candidates {
		if !tr.Exists(log) {
			continue
		}
		content := tr.ReadString(log)
		if tr.Err != nil {
			return tr.Err
		}
		if keyword := findFailureKeyword(content); keyword != "" {
			return &StageFailure{
				Stage:   stage,
				Reason:  fmt.Sprintf("`%s` found", keyword),
				LogFile: log.String(),
			}
		}
	}

	return &StageFailure{
		Stage:   stage,
		Reason:  ReasonAmbiguousLog,
		LogFile: primary.String(),
	}
}

// firstExisting returns the first of the given files that
// exists, or an empty path.
func firstExisting(tr *fsutil.Transaction, files ...vpath.VirtualPath) vpath.VirtualPath {
	for _, file := range files {
		if tr.Exists(file) {
			return file
		}
	}
	return vpath.VirtualPath{}
}

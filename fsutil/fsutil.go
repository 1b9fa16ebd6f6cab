package fsutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/meteocima/virtual-server/vpath"
)

// Run executes a command in the cwd directory and waits for
// its termination, returning everything the process wrote to
// stdout and stderr. The returned output is valid even when
// the command fails, so callers can inspect it for error
// keywords.
//
// Processes like the WPS ones write their diagnostics to a
// log file instead of stdout. When logFile is not empty, the
// file is removed before the start and followed while the
// command runs, mirroring every line to the transaction
// logger.
func (tr *Transaction) Run(ctx context.Context, cwd, logFile vpath.VirtualPath, env []string, command string, args ...string) string {
	if tr.Err != nil {
		return ""
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = cwd.Path
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var tailProc *tail.Tail
	if logFile.Path != "" {
		if err := os.Remove(logFile.Path); err != nil && !os.IsNotExist(err) {
			tr.Err = fmt.Errorf("Run `%s`: Remove `%s` error: %w", command, logFile.String(), err)
			return ""
		}

		proc, err := tail.TailFile(logFile.Path, tail.Config{
			Follow:    true,
			MustExist: false,
			ReOpen:    true,
		})
		if err != nil {
			tr.Err = fmt.Errorf("Run `%s`: TailFile `%s` error: %w", command, logFile.String(), err)
			return ""
		}
		tailProc = proc

		go func() {
			for l := range tailProc.Lines {
				if l.Err != nil {
					break
				}
				tr.logf("%s: %s", logFile.Filename(), l.Text)
			}
		}()
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	tr.logf("run `%s %s` in %s", command, strings.Join(args, " "), cwd.String())
	err := cmd.Run()
	if tailProc != nil {
		tailProc.Stop()
	}
	if err != nil {
		tr.Err = fmt.Errorf("Run `%s %s` in `%s`: %w", command, strings.Join(args, " "), cwd.String(), err)
	}

	return output.String()
}

package fires

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/fsutil"
)

// BatchOptions drive one RunBatch invocation.
type BatchOptions struct {
	// Workers is how many fires run at once.
	Workers int
	// DryRun prints the command of every fire instead of
	// running anything.
	DryRun bool
	// WPSParent and WRFParent are the directories the per
	// fire run directories are derived under.
	WPSParent string
	WRFParent string
	// TemplateDir holds the namelists and job scripts every
	// fire starts from.
	TemplateDir string
	// CfgOut is where the per fire configuration files are
	// written.
	CfgOut string
	Log    *zap.SugaredLogger
}

func (opts *BatchOptions) normalize() error {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	for _, dir := range []*string{&opts.WPSParent, &opts.WRFParent, &opts.TemplateDir, &opts.CfgOut} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return err
		}
		*dir = abs
	}
	return nil
}

// Result is the outcome of one fire of the batch.
type Result struct {
	Request *Request
	LogFile string
	Err     error
}

// FireConfigFile returns the path of the configuration file
// of one fire.
func FireConfigFile(cfgOut, fireID string) string {
	return filepath.Join(cfgOut, fireID+".toml")
}

// Command returns the command line that runs the cycles of
// one fire, the same exact bytes in dry and live runs.
func Command(req *Request, cfgOut string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return []string{
		exe, "cycle",
		"-c", FireConfigFile(cfgOut, req.ID),
		"-b", req.Start.Format("2006010215"),
		"-e", req.End.Format("2006010215"),
	}, nil
}

// RunBatch validates and runs every fire of the table through
// a pool of Workers concurrent pipelines. Validation rejects
// the whole batch before anything is written on disk. Each
// fire then runs on its own, a failed one is neither retried
// nor stops the others.
//
// An interrupt stops handing out fires to the pool and waits
// for the running ones. It reaches the fire processes through
// the process group, each one stops its own polling and
// leaves its scheduler jobs on the queue.
func RunBatch(ctx context.Context, requests []*Request, opts *BatchOptions) ([]Result, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	if err := Validate(requests, opts.WPSParent, opts.WRFParent); err != nil {
		return nil, err
	}

	if opts.DryRun {
		for _, req := range requests {
			cmd, err := Command(req, opts.CfgOut)
			if err != nil {
				return nil, err
			}
			fmt.Println(strings.Join(cmd, " "))
		}
		return nil, nil
	}

	// every fire gets its template copy and its configuration
	// before the first one starts
	tr := &fsutil.Transaction{Log: opts.Log}
	tr.MkDir(vpath.Local(opts.CfgOut))
	tr.MkDir(vpath.Local(conf.Config.Folders.LogDir))
	for _, req := range requests {
		writeFireConfig(tr, req, opts)
	}
	if tr.Err != nil {
		return nil, tr.Err
	}

	results := make([]Result, len(requests))
	for i, req := range requests {
		results[i] = Result{Request: req}
	}

	queue := make(chan int)
	alldone := sync.WaitGroup{}
	alldone.Add(opts.Workers)
	for w := 0; w < opts.Workers; w++ {
		go func() {
			for i := range queue {
				results[i] = runFire(requests[i], opts)
			}
			alldone.Done()
		}()
	}

dispatch:
	for i := range requests {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
		}
	}
	close(queue)
	alldone.Wait()

	return results, ctx.Err()
}

func writeFireConfig(tr *fsutil.Transaction, req *Request, opts *BatchOptions) {
	if tr.Err != nil {
		return
	}

	wpsDir, wrfDir := RunDirs(req, opts.WPSParent, opts.WRFParent)

	cfg := conf.Config
	cfg.Folders.WPSRunDir = wpsDir
	cfg.Folders.WRFRunDir = wrfDir
	cfg.Folders.NamelistsDir = BuildTemplateDir(tr, opts.TemplateDir, req)

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		tr.Err = errors.Wrapf(err, "cannot encode the configuration of fire `%s`", req.ID)
		return
	}
	tr.Save(vpath.Local(FireConfigFile(opts.CfgOut, req.ID)), buf.Bytes())
}

func runFire(req *Request, opts *BatchOptions) Result {
	logFile := fireLogFile(req)
	res := Result{Request: req, LogFile: logFile}

	cmd, err := Command(req, opts.CfgOut)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := os.Create(logFile)
	if err != nil {
		res.Err = errors.Wrapf(err, "fire `%s`", req.ID)
		return res
	}
	defer out.Close()

	opts.Log.Infof("fire `%s` started, log in %s", req.ID, logFile)

	proc := exec.Command(cmd[0], cmd[1:]...)
	proc.Stdout = out
	proc.Stderr = out
	if err := proc.Run(); err != nil {
		res.Err = errors.Wrapf(err, "fire `%s` failed, see %s", req.ID, logFile)
		opts.Log.Errorf("%s", res.Err)
		return res
	}

	opts.Log.Infof("fire `%s` completed", req.ID)
	return res
}

func fireLogFile(req *Request) string {
	name := fmt.Sprintf("%s_%s.log", req.ID, req.Start.Format("2006010215"))
	return filepath.Join(conf.Config.Folders.LogDir, name)
}

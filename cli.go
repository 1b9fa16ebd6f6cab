package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/meteocima/virtual-server/vpath"
	"github.com/parro-it/fileargs"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/fires"
	"github.com/meteocima/wrffire-runner/runner"
	"github.com/meteocima/wrffire-runner/sched"
)

// Version of the command
var Version string = "development"

const usage = `
Usage: wrffire-runner <command> [options]

Commands:

  cycle -c <configfile> [-b <startdate> -e <enddate>] [-args <argsfile>] [-outargs <argsfile>]
	Run every simulation cycle of a period, one cycle every
	cycle_int_hours, each one sim_hours long. The period comes
	either from -b and -e or from an arguments file with one
	period per line. Format for dates is YYYYMMDDHH or
	YYYYMMDD_HH. -outargs writes the periods back as an
	arguments file.

  batch [-c <configfile>] [-workers <N>] [-dry-run] [-wps-parent <dir>] [-wrf-parent <dir>]
        [-template <dir>] [-cfg-out <dir>] <fires.csv>
	Run the cycles of every fire of a CSV table, each fire on a
	domain centered on its ignition point. The table columns are
	identifier, start, end, latitude, longitude. -dry-run prints
	the command of every fire without touching anything.

  -v print version to stdout

Both commands honor a .env file and WRFFIRE_* environment
variables for the configuration file, the log directory and
the worker count.
`

func failed(err error) {
	log.Fatalf("%s\n\n%s\n", err, usage)
}

func syntaxInvalid() {
	failed(errors.New("Invalid arguments provided"))
}

func main() {
	if len(os.Args) < 2 {
		syntaxInvalid()
	}

	env, err := conf.LoadEnv()
	if err != nil {
		failed(err)
	}

	switch os.Args[1] {
	case "-v":
		fmt.Printf("wrffire-runner ver. %s\n", Version)
	case "cycle":
		cycleCommand(os.Args[2:], env)
	case "batch":
		batchCommand(os.Args[2:], env)
	default:
		failed(fmt.Errorf("Unknown command `%s`", os.Args[1]))
	}
}

func cycleCommand(args []string, env *conf.EnvOverrides) {
	flags := flag.NewFlagSet("cycle", flag.ExitOnError)
	cfgFileF := flags.String("c", env.ConfigFile, "path of the configuration file")
	startF := flags.String("b", "", "start date of the period")
	endF := flags.String("e", "", "end date of the period")
	argsFileF := flags.String("args", "", "arguments file with the periods to run")
	outArgsFileF := flags.String("outargs", "", "write the periods to this arguments file")
	verboseF := flags.Bool("verbose", env.Verbose, "log debug details")
	flags.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flags.Parse(args)

	dates := cycleDates(*startF, *endF, *argsFileF)

	cfgPath := *cfgFileF
	if cfgPath == "" {
		cfgPath = dates.CfgPath
	}
	if cfgPath == "" {
		failed(errors.New("no configuration file, use -c or a config line in the arguments file"))
	}
	cfgPath = absPath(cfgPath)

	if *outArgsFileF != "" {
		writeOutargs(*outArgsFileF, cfgPath, dates)
	}

	logger := newLogger(*verboseF)

	if err := runner.Init(vpath.Local(cfgPath)); err != nil {
		failed(err)
	}
	if env.LogDir != "" {
		conf.Config.Folders.LogDir = env.LogDir
	}

	s, err := sched.New(conf.Config.Sched.Kind)
	if err != nil {
		failed(err)
	}
	logger.Infof("using the %s scheduler", s.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := runner.Run(ctx, s, logger, dates.Periods)
	reportResults(logger, results)
	if err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func batchCommand(args []string, env *conf.EnvOverrides) {
	flags := flag.NewFlagSet("batch", flag.ExitOnError)
	cfgFileF := flags.String("c", env.ConfigFile, "path of the base configuration file")
	workersF := flags.Int("workers", defaultWorkers(env), "how many fires run at once")
	dryRunF := flags.Bool("dry-run", false, "print the commands without running anything")
	wpsParentF := flags.String("wps-parent", "", "parent directory of the per fire WPS run directories")
	wrfParentF := flags.String("wrf-parent", "", "parent directory of the per fire WRF run directories")
	templateF := flags.String("template", "", "directory with the template namelists and job scripts")
	cfgOutF := flags.String("cfg-out", "config/generated", "directory for the per fire configuration files")
	verboseF := flags.Bool("verbose", env.Verbose, "log debug details")
	flags.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flags.Parse(args)

	if flags.NArg() != 1 {
		syntaxInvalid()
	}
	table := flags.Arg(0)

	if *cfgFileF == "" {
		failed(errors.New("no configuration file, use -c"))
	}

	logger := newLogger(*verboseF)

	if err := runner.Init(vpath.Local(absPath(*cfgFileF))); err != nil {
		failed(err)
	}
	if env.LogDir != "" {
		conf.Config.Folders.LogDir = env.LogDir
	}

	requests, err := fires.ReadTable(table)
	if err != nil {
		failed(err)
	}

	opts := &fires.BatchOptions{
		Workers:     *workersF,
		DryRun:      *dryRunF,
		WPSParent:   stringOr(*wpsParentF, conf.Config.Folders.WPSRunDir),
		WRFParent:   stringOr(*wrfParentF, conf.Config.Folders.WRFRunDir),
		TemplateDir: stringOr(*templateF, conf.Config.Folders.NamelistsDir),
		CfgOut:      *cfgOutF,
		Log:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := fires.RunBatch(ctx, requests, opts)
	if err != nil {
		logger.Errorf("%s", err)
	}

	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
		}
	}
	if failures > 0 {
		logger.Errorf("%d of %d fires failed", failures, len(results))
	}
	if err != nil || failures > 0 {
		os.Exit(1)
	}
	if !*dryRunF {
		logger.Infof("%d fires completed", len(results))
	}
}

func cycleDates(startF, endF, argsFile string) *fileargs.FileArguments {
	if argsFile != "" {
		dates, err := runner.ReadTimes(argsFile)
		if err != nil {
			failed(err)
		}
		return dates
	}

	if startF == "" {
		syntaxInvalid()
	}
	if endF == "" {
		endF = startF
	}

	startDate, err := fires.ParseTimestamp(startF)
	if err != nil {
		log.Fatal(usage + err.Error() + "\n")
	}
	endDate, err := fires.ParseTimestamp(endF)
	if err != nil {
		log.Fatal(usage + err.Error() + "\n")
	}
	if endDate.Before(startDate) {
		failed(fmt.Errorf("end date %s comes before start date %s", endF, startF))
	}

	return &fileargs.FileArguments{
		Periods: []*fileargs.Period{{
			Start:    startDate,
			Duration: endDate.Sub(startDate),
		}},
		CfgPath: "",
	}
}

func writeOutargs(outargs, cfgPath string, dates *fileargs.FileArguments) {
	_, err := os.Stat(outargs)
	fileargsExists := err == nil

	var buf lineBuf
	if !fileargsExists {
		buf.AddLine("%s", cfgPath)
	}

	for _, p := range dates.Periods {
		buf.AddLine("%s", p.String())
	}

	if fileargsExists {
		err = buf.AppendTo(outargs)
	} else {
		err = buf.WriteTo(outargs)
	}

	if err != nil {
		failed(err)
	}
}

func reportResults(logger *zap.SugaredLogger, results []runner.StageResult) {
	completed, failures, skipped := 0, 0, 0
	for _, res := range results {
		switch res.Status {
		case conf.StageSuccess:
			completed++
		case conf.StageFailed:
			failures++
			logger.Errorf("cycle %s stage %s: %s", res.Cycle.Format("2006010215"), res.Stage, res.Err)
		case conf.StageSkipped:
			skipped++
		}
	}
	logger.Infof("%d stages completed, %d failed, %d skipped", completed, failures, skipped)
}

func newLogger(verbose bool) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err.Error())
	}
	return logger.Sugar()
}

func defaultWorkers(env *conf.EnvOverrides) int {
	if env.Workers > 0 {
		return env.Workers
	}
	return 1
}

func stringOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		log.Fatal(err.Error())
	}
	return abs
}

type lineBuf struct {
	buf bytes.Buffer
}

func (lines *lineBuf) AddLine(lineFormat string, arguments ...interface{}) {
	line := fmt.Sprintf(lineFormat, arguments...)
	lines.buf.WriteString(line)
	lines.buf.WriteRune('\n')
}

func (lines *lineBuf) WriteTo(filepath string) error {
	f, err := os.OpenFile(filepath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fs.FileMode(0644))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(lines.buf.Bytes())
	lines.buf.Truncate(0)

	return err
}

func (lines *lineBuf) AppendTo(filepath string) error {
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_WRONLY, fs.FileMode(0644))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(lines.buf.Bytes())
	lines.buf.Truncate(0)

	return err
}

package conf

// This module contains data structures
// used to keep configuration variables
// for the command.

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/meteocima/namelist-prepare/namelist"
	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"

	"github.com/meteocima/wrffire-runner/fsutil"
)

// ConfigurationError represents an invalid or
// incomplete configuration.
type ConfigurationError struct {
	File   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration `%s` invalid: %s", e.File, e.Reason)
}

// FoldersConf contains paths of all
// files and directories somehow needed by the command.
// Relative paths are resolved against the directory
// of the configuration file.
type FoldersConf struct {
	// WPSPrg is the root of the WPS installation.
	WPSPrg string
	// WRFPrg is the root of the WRF installation.
	WRFPrg string
	// GeodataDir contains the static geographical dataset.
	// When empty, the path compiled in the namelist
	// template is used.
	GeodataDir string
	// NamelistsDir contains namelist and job script templates.
	NamelistsDir string
	// WPSRunDir is the parent of all WPS cycle directories.
	WPSRunDir string
	// WRFRunDir is the parent of all WRF cycle directories.
	WRFRunDir string
	// GribDir is the parent of the per cycle GRIB directories.
	GribDir string
	// IcbcArchive is the root of the local GRIB archive,
	// used when [Cycle] Source is `archive`.
	IcbcArchive string
	// ArchiveDir is the parent of the per cycle
	// results archive, used when [Cycle] Archive is true.
	ArchiveDir string
	// LogDir receives one log file for every
	// simulation started by the batch command.
	LogDir string
}

// CycleConf ...
type CycleConf struct {
	// SimHours ...
	SimHours int

	// CycleIntHours ...
	CycleIntHours int

	// IcbcFcHours is the last forecast hour of the input
	// model to acquire. 0 means SimHours.
	IcbcFcHours int

	Model  IcbcModel
	Source IcbcSource

	// ExpName distinguishes experiments that share
	// the same cycle directories parent.
	ExpName string

	// MonitorWRF, when false, makes the wrf stage
	// terminate right after the job submission.
	MonitorWRF bool

	// Archive ...
	Archive bool

	// Hostname selects host specific template variants.
	// When empty, it is detected from the machine hostname.
	Hostname string
}

// StagesConf enables or disables each
// stage of a cycle.
type StagesConf struct {
	Geogrid bool
	GetIcbc bool
	Ungrib  bool
	AvgTsfc bool
	Metgrid bool
	Real    bool
	WRF     bool
}

// Enabled returns whether a stage must run.
func (st StagesConf) Enabled(stage Stage) bool {
	switch stage {
	case GeogridStage:
		return st.Geogrid
	case GetIcbcStage:
		return st.GetIcbc
	case UngribStage:
		return st.Ungrib
	case AvgTsfcStage:
		return st.AvgTsfc
	case MetgridStage:
		return st.Metgrid
	case RealStage:
		return st.Real
	case WRFStage:
		return st.WRF
	}
	return false
}

// SchedConf ...
type SchedConf struct {
	// Kind is one of `auto`, `slurm` or `pbs`.
	Kind string

	// Queue ...
	Queue string

	// PollIntervalSec ...
	PollIntervalSec int

	// PollMaxHours bounds how long a job is polled for.
	// 0 means no bound.
	PollMaxHours int

	// NotVisibleRetries is how many poll rounds a job
	// is allowed to stay invisible after submission.
	NotVisibleRetries int

	// SubmitDelaySec is a pause between submissions
	// of jobs of the same stage.
	SubmitDelaySec int
}

// AWSConf ...
type AWSConf struct {
	Bucket string
	Region string
}

type EnvVars map[string]string

// ToSlice converts variables to a slice of string, each one
// in the format NAME=VALUE
func (vars EnvVars) ToSlice() []string {
	res := make([]string, len(vars))
	i := 0
	for name, val := range vars {
		res[i] = fmt.Sprintf("%s=%s", name, val)
		i++
	}
	return res
}

// Configuration contains all configuration
// sub structures
type Configuration struct {
	Folders FoldersConf
	Cycle   CycleConf
	Stages  StagesConf
	Sched   SchedConf
	AWS     AWSConf
	Env     EnvVars
}

// Config is the runtime configuration readed from file.
var Config Configuration

func defaults() Configuration {
	return Configuration{
		Folders: FoldersConf{
			LogDir: "logs",
		},
		Cycle: CycleConf{
			SimHours:      24,
			CycleIntHours: 24,
			MonitorWRF:    true,
		},
		Sched: SchedConf{
			Kind:              "auto",
			PollIntervalSec:   5,
			NotVisibleRetries: 12,
			SubmitDelaySec:    3,
		},
		AWS: AWSConf{
			Bucket: "noaa-gfs-bdp-pds",
			Region: "us-east-1",
		},
	}
}

// Init initializes the system by reading configuration
// from `confFile` file.
func Init(confFile vpath.VirtualPath) error {
	Config = defaults()

	if _, err := toml.DecodeFile(confFile.Path, &Config); err != nil {
		return &ConfigurationError{File: confFile.Path, Reason: err.Error()}
	}
	confDir := confFile.Dir()

	absolutize(confDir, &Config.Folders.WPSPrg)
	absolutize(confDir, &Config.Folders.WRFPrg)
	absolutize(confDir, &Config.Folders.GeodataDir)
	absolutize(confDir, &Config.Folders.NamelistsDir)
	absolutize(confDir, &Config.Folders.WPSRunDir)
	absolutize(confDir, &Config.Folders.WRFRunDir)
	absolutize(confDir, &Config.Folders.GribDir)
	absolutize(confDir, &Config.Folders.IcbcArchive)
	absolutize(confDir, &Config.Folders.ArchiveDir)
	absolutize(confDir, &Config.Folders.LogDir)
	//fmt.Println(Config.Folders)

	if Config.Cycle.Hostname == "" {
		Config.Cycle.Hostname = detectHostname()
	}

	return validate(confFile.Path, &Config)
}

func absolutize(confDir vpath.VirtualPath, folder *string) {
	if *folder == "" || path.IsAbs(*folder) {
		return
	}
	*folder = path.Join(confDir.Path, *folder)
}

func validate(file string, cfg *Configuration) error {
	var missing []string
	requireFolder := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	requireFolder("WPSPrg", cfg.Folders.WPSPrg)
	requireFolder("WRFPrg", cfg.Folders.WRFPrg)
	requireFolder("NamelistsDir", cfg.Folders.NamelistsDir)
	requireFolder("WPSRunDir", cfg.Folders.WPSRunDir)
	requireFolder("WRFRunDir", cfg.Folders.WRFRunDir)
	if cfg.Stages.GetIcbc || cfg.Stages.Ungrib {
		requireFolder("GribDir", cfg.Folders.GribDir)
	}
	if cfg.Stages.GetIcbc && cfg.Cycle.Source == ArchiveSource {
		requireFolder("IcbcArchive", cfg.Folders.IcbcArchive)
	}
	if cfg.Cycle.Archive {
		requireFolder("ArchiveDir", cfg.Folders.ArchiveDir)
	}
	if len(missing) > 0 {
		return &ConfigurationError{
			File:   file,
			Reason: fmt.Sprintf("missing folders: %s", strings.Join(missing, ", ")),
		}
	}

	if cfg.Cycle.SimHours <= 0 {
		return &ConfigurationError{File: file, Reason: "SimHours must be positive"}
	}
	if cfg.Cycle.CycleIntHours <= 0 {
		return &ConfigurationError{File: file, Reason: "CycleIntHours must be positive"}
	}
	if cfg.Stages.GetIcbc && cfg.Cycle.Model != GFS {
		return &ConfigurationError{
			File:   file,
			Reason: fmt.Sprintf("icbc acquisition implemented for GFS only, not for %s", cfg.Cycle.Model),
		}
	}

	return nil
}

// detectHostname returns the machine hostname without
// domain parts and without the trailing digits that
// distinguish login nodes of the same cluster.
func detectHostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	name = strings.Split(name, ".")[0]
	return strings.TrimRight(name, "0123456789")
}

// NamelistFile ...
func NamelistFile(source string) vpath.VirtualPath {
	return vpath.Local(Config.Folders.NamelistsDir).Join(source)
}

// ResolveTemplate returns the first `base.variant` template
// found in the namelists directory, the plain `base` one when
// no variant exists. A missing default template fails the
// transaction.
func ResolveTemplate(tr *fsutil.Transaction, base string, variants ...string) vpath.VirtualPath {
	if tr.Err != nil {
		return vpath.VirtualPath{}
	}

	tried := false
	for _, variant := range variants {
		if variant == "" {
			continue
		}
		tried = true
		variantFile := NamelistFile(base + "." + variant)
		if tr.Exists(variantFile) {
			return variantFile
		}
	}

	defaultFile := NamelistFile(base)
	if !tr.Exists(defaultFile) {
		tr.Err = &ConfigurationError{
			File:   Config.Folders.NamelistsDir,
			Reason: fmt.Sprintf("template `%s` not found", base),
		}
		return vpath.VirtualPath{}
	}
	if tried {
		tr.Log.Warnf("no variant of `%s` found for [%s], using the default template",
			base, strings.Join(variants, ", "))
	}
	return defaultFile
}

// RenderNameList ...
func RenderNameList(tr *fsutil.Transaction, source vpath.VirtualPath, target vpath.VirtualPath, args namelist.Args) {
	if tr.Err != nil {
		return
	}

	tmplFile := tr.ReadString(source)
	if tr.Err != nil {
		return
	}

	//args.Hours = int(args.End.Sub(args.Start).Hours())

	tmpl := namelist.Tmpl{}
	tmpl.ReadTemplateFrom(strings.NewReader(tmplFile))

	var renderedNamelist strings.Builder
	tmpl.RenderTo(args, &renderedNamelist)
	tr.WriteString(target, renderedNamelist.String())
}

// EnvOverrides are startup options that can be set from
// the process environment or from a `.env` file, with
// the WRFFIRE prefix. Command line flags win over them.
type EnvOverrides struct {
	ConfigFile string `split_words:"true"`
	LogDir     string `split_words:"true"`
	Workers    int    `default:"0"`
	Verbose    bool
}

// LoadEnv ...
func LoadEnv() (*EnvOverrides, error) {
	_ = godotenv.Load()

	var env EnvOverrides
	if err := envconfig.Process("wrffire", &env); err != nil {
		return nil, errors.Wrap(err, "reading environment overrides")
	}
	return &env, nil
}

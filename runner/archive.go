package runner

import (
	"time"

	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
)

// ArchiveOutputs collects the products of a completed cycle
// under the archive directory, the namelists and inputs that
// produced them under config, the model outputs under wrfout.
// Outputs are moved instead of copied, a season of wrfout
// files does not fit on the work filesystem twice.
func ArchiveOutputs(tr *fsutil.Transaction, start time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	root := folders.ArchiveDirFor(start)
	cfgDir := root.Join("config")
	outDir := root.Join("wrfout")
	tr.MkDir(cfgDir)
	tr.MkDir(outDir)

	wpsDir := folders.WPSCycleDir(start)
	wrfDir := folders.WRFCycleDir(start)

	if tr.Exists(wpsDir.Join("namelist.wps")) {
		tr.Copy(wpsDir.Join("namelist.wps"), cfgDir.Join("namelist.wps"))
	}
	if tr.Exists(wrfDir.Join("namelist.input")) {
		tr.Copy(wrfDir.Join("namelist.input"), cfgDir.Join("namelist.input"))
	}
	for _, f := range tr.Glob(wrfDir, "wrfinput_d*") {
		tr.Copy(f, cfgDir.Join("%s", f.Filename()))
	}
	for _, f := range tr.Glob(wrfDir, "wrfbdy_d*") {
		tr.Copy(f, cfgDir.Join("%s", f.Filename()))
	}

	for _, f := range tr.Glob(wrfDir, "wrfout_d*") {
		tr.Move(f, outDir.Join("%s", f.Filename()))
	}
	for _, f := range tr.Glob(wrfDir, "wrfxtrm_d*") {
		tr.Move(f, outDir.Join("%s", f.Filename()))
	}

	tr.Log.Infof("cycle %s archived in %s", folders.CycleTag(start), root.String())
	return tr.Err
}

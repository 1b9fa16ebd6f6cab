package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
)

// RunAvgTsfc computes the TAVGSFC mean surface temperature
// file from the degribbed products. The program is quick and
// serial, so it runs in process instead of through the queue.
func RunAvgTsfc(ctx context.Context, tr *fsutil.Transaction, start, end time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	if conf.Config.Cycle.SimHours < 24 {
		return &StageFailure{
			Stage:  conf.AvgTsfcStage,
			Reason: fmt.Sprintf("%d simulated hours cannot cover a diurnal cycle, at least 24 are needed", conf.Config.Cycle.SimHours),
		}
	}
	if conf.Config.Cycle.SimHours%24 != 0 {
		tr.Log.Warnf("%d simulated hours are not a whole number of days, the diurnal average will be skewed", conf.Config.Cycle.SimHours)
	}

	sets, err := gribSets(start)
	if err != nil {
		return err
	}

	wpsDir := folders.WPSCycleDir(start)
	tr.MkDir(wpsDir)
	tr.Link(folders.WPSPrg().Join("avg_tsfc.exe"), wpsDir.Join("avg_tsfc.exe"))

	template := conf.ResolveTemplate(tr, "namelist.wps", templateVariant())
	nmlFile := wpsDir.Join("namelist.wps")
	conf.RenderNameList(tr, template, nmlFile, namelistArgs(start, end))
	content := tr.ReadString(nmlFile)
	content = setNamelistEntry(content, "fg_name", fgName(folders.UngribOutDir(start), sets))
	tr.WriteString(nmlFile, content)

	tavgsfc := wpsDir.Join("TAVGSFC")
	if tr.Exists(tavgsfc) {
		tr.RmFile(tavgsfc)
	}
	if tr.Err != nil {
		return tr.Err
	}

	out := tr.Run(ctx, wpsDir, vpath.VirtualPath{}, conf.Config.Env.ToSlice(), "./avg_tsfc.exe")
	if strings.Contains(out, "ERROR") {
		return &StageFailure{Stage: conf.AvgTsfcStage, Reason: "`ERROR` found in the program output"}
	}
	if tr.Err != nil {
		return tr.Err
	}
	if !tr.Exists(tavgsfc) {
		return &StageFailure{Stage: conf.AvgTsfcStage, Reason: "no TAVGSFC file produced"}
	}

	return tr.Err
}

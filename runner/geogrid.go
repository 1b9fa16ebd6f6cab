package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/conf"
	"github.com/meteocima/wrffire-runner/folders"
	"github.com/meteocima/wrffire-runner/fsutil"
	"github.com/meteocima/wrffire-runner/sched"
)

const geogridSuccess = "*** Successful completion of program geogrid.exe ***"

// RunGeogrid builds the simulation domains with geogrid.exe.
// The domains depend on the namelist only, not on the cycle
// instant, so they are built in a directory shared by all
// cycles and rebuilt only when missing.
func RunGeogrid(ctx context.Context, tr *fsutil.Transaction, s sched.Scheduler, start, end time.Time) error {
	if tr.Err != nil {
		return tr.Err
	}

	geoDir := folders.GeogridDir()
	template := conf.ResolveTemplate(tr, "namelist.wps", templateVariant())
	domains := ReadDomainCount(tr, template)
	if tr.Err != nil {
		return tr.Err
	}

	if geogridDone(tr, geoDir, domains) {
		tr.Log.Infof("domains already built in %s", geoDir.String())
		return tr.Err
	}

	tr.Log.Infof("building %d domains in %s", domains, geoDir.String())
	tr.MkDir(geoDir)
	tr.Link(folders.WPSPrg().Join("geogrid.exe"), geoDir.Join("geogrid.exe"))

	conf.RenderNameList(tr, template, geoDir.Join("namelist.wps"), namelistArgs(start, end))
	rewriteGeogridNamelist(tr, geoDir)

	script := stageScript(tr, conf.GeogridStage, geoDir)

	tr.RmGlob(geoDir, "geogrid.log*")
	tr.RmGlob(geoDir, "log_geogrid.o*")
	tr.RmGlob(geoDir, "geogrid.o*")

	status, err := submitAndWait(ctx, tr, s, geoDir, script, "")
	if err != nil {
		return err
	}

	candidates := tr.Glob(geoDir, "log_geogrid.o*")
	candidates = append(candidates, tr.Glob(geoDir, "geogrid.o*")...)
	primary := firstExisting(tr, geoDir.Join("geogrid.log.0000"), geoDir.Join("geogrid.log"))
	return stageOutcome(tr, conf.GeogridStage, status, primary, geogridSuccess, candidates)
}

// rewriteGeogridNamelist points the rendered namelist at the
// configured static dataset and at the geogrid tables of the
// WPS installation, so the stage works from any directory.
func rewriteGeogridNamelist(tr *fsutil.Transaction, geoDir vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	nmlFile := geoDir.Join("namelist.wps")
	content := tr.ReadString(nmlFile)
	if tr.Err != nil {
		return
	}

	if conf.Config.Folders.GeodataDir != "" {
		content = setNamelistEntry(content, "geog_data_path",
			fmt.Sprintf("'%s',", folders.GeodataDir().Path))
	}
	content = ensureNamelistEntry(content, "&geogrid", "opt_geogrid_tbl_path",
		fmt.Sprintf("'%s/',", folders.WPSPrg().Join("geogrid").Path))

	tr.WriteString(nmlFile, content)
}

func geogridDone(tr *fsutil.Transaction, geoDir vpath.VirtualPath, domains int) bool {
	if tr.Err != nil || domains == 0 {
		return false
	}
	for d := 1; d <= domains; d++ {
		if !tr.Exists(geoDir.Join("geo_em.d%02d.nc", d)) {
			return false
		}
	}
	return true
}

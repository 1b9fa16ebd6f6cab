package fires

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/meteocima/virtual-server/vpath"

	"github.com/meteocima/wrffire-runner/fsutil"
)

// FireTemplateDir returns the directory holding the namelists
// and job scripts of one fire, derived from the shared
// template directory.
func FireTemplateDir(templateDir, fireID string) string {
	return filepath.Join(filepath.Dir(templateDir), filepath.Base(templateDir)+"_"+fireID)
}

// BuildTemplateDir copies the shared template directory into
// the per fire one and centers the WPS domains on the fire.
// A leftover copy from a previous batch is replaced.
func BuildTemplateDir(tr *fsutil.Transaction, templateDir string, req *Request) string {
	fireDir := FireTemplateDir(templateDir, req.ID)
	tr.CopyTree(vpath.Local(templateDir), vpath.Local(fireDir))

	for _, nml := range tr.Glob(vpath.Local(fireDir), "namelist.wps*") {
		content := tr.ReadString(nml)
		tr.WriteString(nml, CenterOnFire(content, req.Lat, req.Lon))
	}

	return fireDir
}

// CenterOnFire rewrites the domain center coordinates of a
// WPS namelist onto the ignition point. Both projection
// parallels and the standard longitude move with the center.
func CenterOnFire(content string, lat, lon float64) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch coordName(line) {
		case "ref_lat":
			lines[i] = fmt.Sprintf(" ref_lat   = %.7f,", lat)
		case "ref_lon":
			lines[i] = fmt.Sprintf(" ref_lon   = %.7f,", lon)
		case "truelat1":
			lines[i] = fmt.Sprintf(" truelat1  = %.7f,", lat)
		case "truelat2":
			lines[i] = fmt.Sprintf(" truelat2  = %.7f,", lat)
		case "stand_lon":
			lines[i] = fmt.Sprintf(" stand_lon = %.7f,", lon)
		}
	}
	return strings.Join(lines, "\n")
}

func coordName(line string) string {
	trimmed := strings.TrimSpace(line)
	eq := strings.Index(trimmed, "=")
	if eq < 0 {
		return ""
	}
	return strings.TrimSpace(trimmed[:eq])
}

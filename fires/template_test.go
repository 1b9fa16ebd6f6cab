package fires

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meteocima/wrffire-runner/fsutil"
)

const sampleGeogrid = `&geogrid
 parent_id         =   1,   1,
 ref_lat   = 34.83,
 ref_lon   = -81.03,
 truelat1  = 30.0,
 truelat2  = 60.0,
 stand_lon = -98.0,
 geog_data_path = '/data/geog'
/
`

func TestCenterOnFire(t *testing.T) {
	content := CenterOnFire(sampleGeogrid, 44.4049, 8.6813)

	assert.Contains(t, content, " ref_lat   = 44.4049000,\n")
	assert.Contains(t, content, " ref_lon   = 8.6813000,\n")
	assert.Contains(t, content, " truelat1  = 44.4049000,\n")
	assert.Contains(t, content, " truelat2  = 44.4049000,\n")
	assert.Contains(t, content, " stand_lon = 8.6813000,\n")

	// anything that is not a projection coordinate survives
	assert.Contains(t, content, " parent_id         =   1,   1,\n")
	assert.Contains(t, content, " geog_data_path = '/data/geog'\n")
}

func TestCenterOnFireAnySpacing(t *testing.T) {
	content := CenterOnFire("&geogrid\n   ref_lat=10.0\n/\n", -33.92, 151.18)
	assert.Contains(t, content, " ref_lat   = -33.9200000,\n")
}

func TestFireTemplateDir(t *testing.T) {
	assert.Equal(t, "/etc/wrffire/namelists_arenzano", FireTemplateDir("/etc/wrffire/namelists", "arenzano"))
	assert.Equal(t, "namelists_arenzano", FireTemplateDir("namelists", "arenzano"))
}

func TestBuildTemplateDir(t *testing.T) {
	templateDir := filepath.Join(t.TempDir(), "namelists")
	assert.NoError(t, os.Mkdir(templateDir, 0755))
	assert.NoError(t, os.WriteFile(filepath.Join(templateDir, "namelist.wps.gfs"), []byte(sampleGeogrid), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(templateDir, "namelist.input.gfs"), []byte("&time_control\n/\n"), 0644))

	req := &Request{ID: "arenzano", Lat: 44.4049, Lon: 8.6813}
	tr := &fsutil.Transaction{Log: zap.NewNop().Sugar()}
	fireDir := BuildTemplateDir(tr, templateDir, req)
	assert.NoError(t, tr.Err)
	assert.Equal(t, templateDir+"_arenzano", fireDir)

	content, err := os.ReadFile(filepath.Join(fireDir, "namelist.wps.gfs"))
	assert.NoError(t, err)
	assert.Contains(t, string(content), " ref_lat   = 44.4049000,")
	assert.Contains(t, string(content), " stand_lon = 8.6813000,")

	// the other templates are copied as they are
	input, err := os.ReadFile(filepath.Join(fireDir, "namelist.input.gfs"))
	assert.NoError(t, err)
	assert.Equal(t, "&time_control\n/\n", string(input))
}

func TestBuildTemplateDirReplacesStale(t *testing.T) {
	templateDir := filepath.Join(t.TempDir(), "namelists")
	assert.NoError(t, os.Mkdir(templateDir, 0755))
	assert.NoError(t, os.WriteFile(filepath.Join(templateDir, "namelist.wps"), []byte(sampleGeogrid), 0644))

	fireDir := FireTemplateDir(templateDir, "arenzano")
	assert.NoError(t, os.Mkdir(fireDir, 0755))
	stale := filepath.Join(fireDir, "namelist.wps.leftover")
	assert.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	tr := &fsutil.Transaction{Log: zap.NewNop().Sugar()}
	req := &Request{ID: "arenzano", Lat: 44.4049, Lon: 8.6813}
	BuildTemplateDir(tr, templateDir, req)
	assert.NoError(t, tr.Err)

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

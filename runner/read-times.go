package runner

import (
	"os"
	"path/filepath"

	"github.com/parro-it/fileargs"
)

// ReadTimes reads the periods to run from an arguments file.
// The first line names the configuration file, resolved
// relative to the arguments file itself; every following line
// holds the start instant and the duration in hours of one
// period.
func ReadTimes(file string) (*fileargs.FileArguments, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)

	args, err := fileargs.ReadFile(os.DirFS(dir), filepath.Base(abs))
	if err != nil {
		return nil, err
	}

	if args.CfgPath != "" && !filepath.IsAbs(args.CfgPath) {
		args.CfgPath = filepath.Join(dir, args.CfgPath)
	}
	return args, nil
}

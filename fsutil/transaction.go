package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meteocima/virtual-server/vpath"
	"go.uber.org/zap"
)

// Transaction executes a sequence of filesystem operations,
// stopping at the first one that fails. After a failure every
// other operation is a no op, so a whole sequence can be
// written without intermediate error checks and the Err
// field inspected once at the end.
type Transaction struct {
	Log *zap.SugaredLogger
	Err error
}

func (tr *Transaction) logf(format string, args ...interface{}) {
	if tr.Log != nil {
		tr.Log.Debugf(format, args...)
	}
}

// Exists ...
func (tr *Transaction) Exists(file vpath.VirtualPath) bool {
	if tr.Err != nil {
		return false
	}
	_, err := os.Stat(file.Path)
	if !os.IsNotExist(err) && err != nil {
		tr.Err = fmt.Errorf("Exists `%s`: Stat error: %w", file.String(), err)
	}
	return err == nil
}

// ReadDir returns the names of the entries of dir,
// sorted by name.
func (tr *Transaction) ReadDir(dir vpath.VirtualPath) []string {
	if tr.Err != nil {
		return nil
	}
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		tr.Err = fmt.Errorf("ReadDir `%s`: %w", dir.String(), err)
		return nil
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names
}

// Glob returns the files of dir whose name matches pattern,
// sorted by name.
func (tr *Transaction) Glob(dir vpath.VirtualPath, pattern string) []vpath.VirtualPath {
	if tr.Err != nil {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(dir.Path, pattern))
	if err != nil {
		tr.Err = fmt.Errorf("Glob `%s` in `%s`: %w", pattern, dir.String(), err)
		return nil
	}
	res := make([]vpath.VirtualPath, len(matches))
	for i, m := range matches {
		res[i] = vpath.New(dir.Host, m)
	}
	return res
}

// RmGlob removes all files of dir whose name matches pattern.
func (tr *Transaction) RmGlob(dir vpath.VirtualPath, pattern string) {
	for _, file := range tr.Glob(dir, pattern) {
		tr.RmFile(file)
	}
}

// Copy ...
func (tr *Transaction) Copy(from, to vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	tr.logf("copy %s to %s", from.String(), to.String())
	if err := copyFile(from.Path, to.Path, os.FileMode(0664)); err != nil {
		tr.Err = fmt.Errorf("Copy from `%s` to `%s`: %w", from.String(), to.String(), err)
	}
}

// CopyTree copies the whole `from` directory to `to`,
// replacing `to` when it already exists.
func (tr *Transaction) CopyTree(from, to vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	tr.logf("copy tree %s to %s", from.String(), to.String())
	if err := os.RemoveAll(to.Path); err != nil {
		tr.Err = fmt.Errorf("CopyTree to `%s`: RemoveAll error: %w", to.String(), err)
		return
	}

	err := filepath.WalkDir(from.Path, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from.Path, name)
		if err != nil {
			return err
		}
		target := filepath.Join(to.Path, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, os.FileMode(0755))
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		return copyFile(name, target, info.Mode().Perm())
	})
	if err != nil {
		tr.Err = fmt.Errorf("CopyTree from `%s` to `%s`: %w", from.String(), to.String(), err)
	}
}

func copyFile(from, to string, mode os.FileMode) error {
	source, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("Open error: %w", err)
	}
	defer source.Close()

	target, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("OpenFile error: %w", err)
	}
	defer target.Close()

	if _, err = io.Copy(target, source); err != nil {
		return fmt.Errorf("Copy error: %w", err)
	}
	return nil
}

// ReadString ...
func (tr *Transaction) ReadString(file vpath.VirtualPath) string {
	if tr.Err != nil {
		return ""
	}
	content, err := os.ReadFile(file.Path)
	if err != nil {
		tr.Err = fmt.Errorf("ReadString `%s`: %w", file.String(), err)
		return ""
	}
	return string(content)
}

// WriteString ...
func (tr *Transaction) WriteString(file vpath.VirtualPath, content string) {
	tr.Save(file, []byte(content))
}

// Save ...
func (tr *Transaction) Save(targetPath vpath.VirtualPath, content []byte) {
	if tr.Err != nil {
		return
	}

	err := os.WriteFile(targetPath.Path, content, os.FileMode(0664))
	if err != nil {
		tr.Err = fmt.Errorf("Save to `%s`: WriteFile error: %w", targetPath.String(), err)
	}
}

// Link makes `to` a symbolic link pointing to `from`,
// replacing any link already there.
func (tr *Transaction) Link(from, to vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	tr.logf("link %s to %s", from.String(), to.String())
	if err := os.Remove(to.Path); err != nil && !os.IsNotExist(err) {
		tr.Err = fmt.Errorf("Link from `%s` to `%s`: Remove error: %w", from.String(), to.String(), err)
		return
	}
	if err := os.Symlink(from.Path, to.Path); err != nil {
		tr.Err = fmt.Errorf("Link from `%s` to `%s`: Symlink error: %w", from.String(), to.String(), err)
	}
}

// Move ...
func (tr *Transaction) Move(from, to vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	tr.logf("move %s to %s", from.String(), to.String())
	if err := os.Rename(from.Path, to.Path); err != nil {
		tr.Err = fmt.Errorf("Move from `%s` to `%s`: Rename error: %w", from.String(), to.String(), err)
	}
}

// MkDir ...
func (tr *Transaction) MkDir(dir vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}

	err := os.MkdirAll(dir.Path, os.FileMode(0755))
	if err != nil {
		tr.Err = fmt.Errorf("MkDir `%s`: MkdirAll error: %w", dir.String(), err)
	}
}

// RmDir ...
func (tr *Transaction) RmDir(dir vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}
	tr.logf("rmdir %s", dir.String())

	err := os.RemoveAll(dir.Path)
	if err != nil {
		tr.Err = fmt.Errorf("RmDir `%s`: RemoveAll error: %w", dir.String(), err)
	}
}

// RmFile ...
func (tr *Transaction) RmFile(file vpath.VirtualPath) {
	if tr.Err != nil {
		return
	}
	tr.logf("rm %s", file.String())
	err := os.Remove(file.Path)
	if err != nil {
		tr.Err = fmt.Errorf("RmFile `%s`: Remove error: %w", file.String(), err)
	}
}

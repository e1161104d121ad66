// Package utils contains small helpers shared by the kdextract packages.
package utils

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}

// SafeJoinDir performs a filepath.Join of 'parent' and 'subdir' but returns an error
// if the resulting path points outside of 'parent'.
func SafeJoinDir(parent, subdir string) (string, error) {
	res := filepath.Join(parent, subdir)
	if !strings.HasPrefix(filepath.Clean(res), filepath.Clean(parent)+string(os.PathSeparator)) {
		return res, errors.Errorf("unsafe path join: '%s' with '%s'", parent, subdir)
	}
	return res, nil
}

// OutputFileMode is the mode of every file WriteFileAtomic creates.
const OutputFileMode os.FileMode = 0o644

// WriteFileAtomic writes a file through a temporary sibling and renames it into place once write
// returned successfully, so readers never observe a partially written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrapf(err, "cannot create temporary file for %q", path)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			RemoveFileNoError(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return multierr.Combine(err, tmp.Close())
	}
	if err = bw.Flush(); err != nil {
		return multierr.Combine(errors.Wrapf(err, "cannot write %q", path), tmp.Close())
	}
	if err = tmp.Chmod(OutputFileMode); err != nil {
		return multierr.Combine(errors.Wrapf(err, "cannot set the mode of %q", path), tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "cannot close %q", path)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "cannot move %q into place", path)
	}
	return nil
}

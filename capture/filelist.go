package capture

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// ReadFileList reads a list of recording paths, one per line. Blank lines and lines starting with
// # are skipped. Relative paths are resolved against the list's directory.
func ReadFileList(path string) ([]string, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open file list")
	}
	defer goutils.UncheckedErrorFunc(f.Close)

	base := filepath.Dir(path)
	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read file list %q", path)
	}
	return paths, nil
}

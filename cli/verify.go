package cli

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/kdlab/kdextract/pointcloud"
)

type plyReport struct {
	path   string
	points int
	err    error
}

// collectPLYFiles expands directories into the .ply files below them.
func collectPLYFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".ply") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list %q", path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// verifyPointClouds reads every file and reports the ones whose header and data disagree.
func verifyPointClouds(files []string) []plyReport {
	return lo.Map(files, func(f string, _ int) plyReport {
		cloud, err := pointcloud.ReadPLYFile(f)
		r := plyReport{path: f, err: err}
		if err == nil {
			r.points = cloud.Size()
		}
		return r
	})
}

// VerifyAction checks point cloud files.
func VerifyAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("expected point cloud files or directories")
	}
	files, err := collectPLYFiles(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no point clouds found")
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"File", "Points", "Status"})
	reports := verifyPointClouds(files)
	for _, r := range reports {
		status := "ok"
		if r.err != nil {
			status = r.err.Error()
		}
		t.AppendRow(table.Row{r.path, r.points, status})
	}
	failed := lo.CountBy(reports, func(r plyReport) bool { return r.err != nil })
	printf(c.App.Writer, "%s", t.Render())
	if failed > 0 {
		return errors.Errorf("%d of %d point clouds are malformed", failed, len(files))
	}
	return nil
}

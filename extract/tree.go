package extract

import (
	"bytes"
	"context"
	"image"
	// registers the jpeg decoder for DecodeConfig.
	_ "image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
	"github.com/kdlab/kdextract/utils"
)

// OpenSource opens a recording file with its driver, or replays a directory written by a previous
// extraction.
func OpenSource(ctx context.Context, path string, logger logging.Logger) (capture.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open source")
	}
	if info.IsDir() {
		return OpenTree(ctx, path, logger)
	}
	return capture.OpenPlayback(ctx, path, logger)
}

type treeFile struct {
	path string
	ts   uint64
}

// treeSource replays an extracted tree. Modalities are paired by their order in the tree.
type treeSource struct {
	root   string
	cal    *transform.Calibration
	depth  []treeFile
	color  []treeFile
	ir     []treeFile
	imu    []capture.IMUSample
	next   int
	logger logging.Logger
}

func listFrames(dir string) ([]treeFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	files := make([]treeFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		ts, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			return nil, errors.Errorf("%q is not named after a timestamp", filepath.Join(dir, e.Name()))
		}
		files = append(files, treeFile{path: filepath.Join(dir, e.Name()), ts: ts})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ts < files[j].ts })
	return files, nil
}

// OpenTree replays the tree under root as a single device source.
func OpenTree(ctx context.Context, root string, logger logging.Logger) (capture.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layout := NewLayout(root, "", "")
	cal, err := transform.NewCalibrationFromJSONFile(layout.Calibration())
	if err != nil {
		return nil, errors.Wrapf(err, "%q is not an extracted tree", root)
	}
	src := &treeSource{root: root, cal: cal, logger: logger}
	for _, m := range []struct {
		dir   string
		files *[]treeFile
	}{
		{filepath.Join(root, DepthDir, RawMatricesDir), &src.depth},
		{filepath.Join(root, ColorDir, ImagesDir), &src.color},
		{filepath.Join(root, IRDir, RawMatricesDir), &src.ir},
	} {
		files, err := listFrames(m.dir)
		if err != nil {
			return nil, err
		}
		*m.files = files
	}
	if _, err := os.Stat(layout.IMU()); err == nil {
		if src.imu, err = ReadIMUFile(layout.IMU()); err != nil {
			return nil, err
		}
	}
	logger.Infow("replaying extracted tree",
		"root", root, "depth", len(src.depth), "color", len(src.color), "ir", len(src.ir), "imu", len(src.imu))
	return src, nil
}

func (t *treeSource) Name() string {
	return filepath.Base(t.root)
}

func (t *treeSource) Devices() int {
	return 1
}

func (t *treeSource) Length() time.Duration {
	if len(t.depth) < 2 {
		return 0
	}
	return time.Duration(t.depth[len(t.depth)-1].ts-t.depth[0].ts) * time.Microsecond
}

func (t *treeSource) Calibration(ctx context.Context, device int) (*transform.Calibration, error) {
	if device != 0 {
		return nil, errors.Errorf("tree %q has no device %d", t.root, device)
	}
	return t.cal, nil
}

func readDepthFrame(f treeFile, format rimage.Format) (*rimage.Frame, error) {
	dm, err := rimage.ReadDepthFile(f.path)
	if err != nil {
		return nil, err
	}
	return rimage.EncodeDepthFrame(dm, format, f.ts), nil
}

func readColorFrame(f treeFile) (*rimage.Frame, error) {
	mimeType, err := utils.MimeTypeFromPath(f.path)
	if err != nil {
		return nil, err
	}
	if mimeType == utils.MimeTypeJPEG {
		//nolint:gosec
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %q", f.path)
		}
		return &rimage.Frame{
			Format:        rimage.FormatMJPG,
			Width:         cfg.Width,
			Height:        cfg.Height,
			Data:          data,
			TimestampUsec: f.ts,
		}, nil
	}
	img, err := rimage.ReadImageFile(f.path)
	if err != nil {
		return nil, err
	}
	return rimage.EncodeBGRAFrame(img, f.ts), nil
}

func (t *treeSource) NextCapture(ctx context.Context) (*capture.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := t.next
	if i >= len(t.depth) && i >= len(t.color) && i >= len(t.ir) {
		return nil, io.EOF
	}
	t.next++

	var depth, color, ir *rimage.Frame
	var err error
	if i < len(t.depth) {
		if depth, err = readDepthFrame(t.depth[i], rimage.FormatDepth16); err != nil {
			return nil, err
		}
	}
	if i < len(t.color) {
		if color, err = readColorFrame(t.color[i]); err != nil {
			return nil, err
		}
	}
	if i < len(t.ir) {
		if ir, err = readDepthFrame(t.ir[i], rimage.FormatIR16); err != nil {
			return nil, err
		}
	}
	return capture.NewCapture(0, depth, color, ir, nil), nil
}

func (t *treeSource) NextIMUSample(ctx context.Context) (capture.IMUSample, error) {
	if len(t.imu) == 0 {
		return capture.IMUSample{}, io.EOF
	}
	s := t.imu[0]
	t.imu = t.imu[1:]
	return s, nil
}

func (t *treeSource) Close(ctx context.Context) error {
	return nil
}

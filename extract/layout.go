package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Names of the directories and files in an output tree.
const (
	DepthDir        = "depth"
	ColorDir        = "color"
	IRDir           = "ir"
	ImagesDir       = "images"
	RawMatricesDir  = "raw_matrices"
	PointCloudsDir  = "point_clouds"
	TimestampsFile  = "timestamps.txt"
	IMUFile         = "imu.json"
	CalibrationFile = "calibration.json"
)

// Layout is one output tree. Every file of a frame is named after a device timestamp.
type Layout struct {
	Root string
	// ImageExt is the extension of color images and previews, without the dot.
	ImageExt string
	// RawExt is the extension of 16-bit raw matrices, without the dot.
	RawExt string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root, imageExt, rawExt string) *Layout {
	return &Layout{Root: root, ImageExt: imageExt, RawExt: rawExt}
}

// PlaybackRoot is where a recording is extracted to: its path without the extension.
func PlaybackRoot(recording string) string {
	recording = strings.TrimRight(recording, string(os.PathSeparator))
	if ext := filepath.Ext(recording); ext != "" {
		return strings.TrimSuffix(recording, ext)
	}
	return recording + "_extracted"
}

// OnlineRoot is where a live device's frames go.
func OnlineRoot(outputDir string, device int) string {
	return filepath.Join(outputDir, fmt.Sprint(device))
}

// FileName is the name of a frame file: the timestamp in microseconds padded to 20 digits.
func FileName(timestampUsec uint64, ext string) string {
	return fmt.Sprintf("%020d.%s", timestampUsec, ext)
}

func (l *Layout) path(elem ...string) string {
	return filepath.Join(append([]string{l.Root}, elem...)...)
}

// DepthImage is the path of a depth preview.
func (l *Layout) DepthImage(ts uint64) string {
	return l.path(DepthDir, ImagesDir, FileName(ts, l.ImageExt))
}

// DepthRaw is the path of a raw depth matrix.
func (l *Layout) DepthRaw(ts uint64) string {
	return l.path(DepthDir, RawMatricesDir, FileName(ts, l.RawExt))
}

// PointCloud is the path of a point cloud.
func (l *Layout) PointCloud(ts uint64) string {
	return l.path(DepthDir, PointCloudsDir, FileName(ts, "ply"))
}

// ColorImage is the path of a color image.
func (l *Layout) ColorImage(ts uint64) string {
	return l.path(ColorDir, ImagesDir, FileName(ts, l.ImageExt))
}

// IRImage is the path of an IR preview.
func (l *Layout) IRImage(ts uint64) string {
	return l.path(IRDir, ImagesDir, FileName(ts, l.ImageExt))
}

// IRRaw is the path of a raw IR matrix.
func (l *Layout) IRRaw(ts uint64) string {
	return l.path(IRDir, RawMatricesDir, FileName(ts, l.RawExt))
}

// DepthTimestamps is the depth timestamp log.
func (l *Layout) DepthTimestamps() string {
	return l.path(DepthDir, TimestampsFile)
}

// ColorTimestamps is the color timestamp log.
func (l *Layout) ColorTimestamps() string {
	return l.path(ColorDir, TimestampsFile)
}

// IRTimestamps is the IR timestamp log.
func (l *Layout) IRTimestamps() string {
	return l.path(IRDir, TimestampsFile)
}

// IMU is the path of the inertial samples.
func (l *Layout) IMU() string {
	return l.path(IMUFile)
}

// Calibration is the path of the calibration the tree was written with.
func (l *Layout) Calibration() string {
	return l.path(CalibrationFile)
}

// Create makes every directory of the tree. Existing directories are fine.
func (l *Layout) Create() error {
	for _, dir := range [][]string{
		{DepthDir, ImagesDir},
		{DepthDir, RawMatricesDir},
		{DepthDir, PointCloudsDir},
		{ColorDir, ImagesDir},
		{IRDir, ImagesDir},
		{IRDir, RawMatricesDir},
	} {
		if err := os.MkdirAll(l.path(dir...), 0o750); err != nil {
			return errors.Wrapf(err, "cannot create output directory under %q", l.Root)
		}
	}
	return nil
}

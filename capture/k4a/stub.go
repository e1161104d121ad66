//go:build !k4a
// +build !k4a

package k4a

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/logging"
)

// ErrNotEnabled is returned by every constructor when the SDK is not compiled in.
var ErrNotEnabled = errors.New("Azure Kinect support not enabled: rebuild with -tags=k4a")

func openPlayback(ctx context.Context, path string, logger logging.Logger) (capture.Source, error) {
	return nil, errors.Wrapf(ErrNotEnabled, "cannot play back %q", path)
}

func openDevices(ctx context.Context, cfg capture.DeviceConfig, logger logging.Logger) ([]capture.Device, error) {
	return nil, ErrNotEnabled
}

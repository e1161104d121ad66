//go:build k4a
// +build k4a

package k4a

/*
#include <stdlib.h>
#include <k4a/k4a.h>
#include <k4arecord/playback.h>
*/
import "C"

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/rimage/transform"
)

type playback struct {
	path   string
	handle C.k4a_playback_t
	cal    *transform.Calibration
	length time.Duration
	logger logging.Logger

	closeOnce sync.Once
}

func openPlayback(ctx context.Context, path string, logger logging.Logger) (capture.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var handle C.k4a_playback_t
	if err := resultError(C.k4a_playback_open(cPath, &handle), "opening recording"); err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	p := &playback{path: path, handle: handle, logger: logger}

	var cal C.k4a_calibration_t
	if err := resultError(C.k4a_playback_get_calibration(handle, &cal), "reading calibration"); err != nil {
		C.k4a_playback_close(handle)
		return nil, errors.Wrapf(err, "cannot read calibration of %q", path)
	}
	calibration, err := calibrationFromSDK(&cal)
	if err != nil {
		C.k4a_playback_close(handle)
		return nil, errors.Wrapf(err, "invalid calibration in %q", path)
	}
	p.cal = calibration
	p.length = time.Duration(C.k4a_playback_get_recording_length_usec(handle)) * time.Microsecond

	var config C.k4a_record_configuration_t
	if C.k4a_playback_get_record_configuration(handle, &config) == C.K4A_RESULT_SUCCEEDED {
		format, _ := imageFormatFromSDK(int(config.color_format))
		logger.Infow("opened recording",
			"path", path,
			"length", p.length,
			"depth_mode", calibration.DepthMode,
			"color_resolution", calibration.ColorResolution,
			"color_format", format,
			"color_track", bool(config.color_track_enabled),
			"depth_track", bool(config.depth_track_enabled),
			"ir_track", bool(config.ir_track_enabled),
			"imu_track", bool(config.imu_track_enabled),
		)
	}
	return p, nil
}

func (p *playback) Name() string {
	return filepath.Base(p.path)
}

func (p *playback) Devices() int {
	return 1
}

func (p *playback) Length() time.Duration {
	return p.length
}

func (p *playback) Calibration(ctx context.Context, device int) (*transform.Calibration, error) {
	if device != 0 {
		return nil, errors.Errorf("recording %q has no device %d", p.path, device)
	}
	return p.cal, nil
}

func (p *playback) NextCapture(ctx context.Context) (*capture.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var c C.k4a_capture_t
	switch C.k4a_playback_get_next_capture(p.handle, &c) {
	case C.K4A_STREAM_RESULT_SUCCEEDED:
		return captureFromSDK(0, c)
	case C.K4A_STREAM_RESULT_EOF:
		return nil, io.EOF
	default:
		return nil, errors.Errorf("cannot read next capture from %q", p.path)
	}
}

func (p *playback) NextIMUSample(ctx context.Context) (capture.IMUSample, error) {
	if err := ctx.Err(); err != nil {
		return capture.IMUSample{}, err
	}
	var sample C.k4a_imu_sample_t
	switch C.k4a_playback_get_next_imu_sample(p.handle, &sample) {
	case C.K4A_STREAM_RESULT_SUCCEEDED:
		return imuSampleFromSDK(&sample), nil
	case C.K4A_STREAM_RESULT_EOF:
		return capture.IMUSample{}, io.EOF
	default:
		return capture.IMUSample{}, errors.Errorf("cannot read next imu sample from %q", p.path)
	}
}

func (p *playback) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		C.k4a_playback_close(p.handle)
	})
	return nil
}

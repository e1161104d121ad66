//go:build k4a
// +build k4a

package k4a

/*
#include <stdlib.h>
#include <k4a/k4a.h>
*/
import "C"

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/logging"
	"github.com/kdlab/kdextract/rimage/transform"
)

const captureTimeout = 60 * time.Second

type device struct {
	index  int
	handle C.k4a_device_t
	serial string
	syncIn bool
	// syncOut is set when the device can drive subordinates.
	syncOut bool
	cal     *transform.Calibration
	logger  logging.Logger

	closeOnce sync.Once
}

func serialNumber(handle C.k4a_device_t) string {
	var size C.size_t
	if C.k4a_device_get_serialnum(handle, nil, &size) != C.K4A_BUFFER_RESULT_TOO_SMALL {
		return ""
	}
	buf := (*C.char)(C.malloc(size))
	defer C.free(unsafe.Pointer(buf))
	if C.k4a_device_get_serialnum(handle, buf, &size) != C.K4A_BUFFER_RESULT_SUCCEEDED {
		return ""
	}
	return C.GoString(buf)
}

func openDevice(index int, logger logging.Logger) (*device, error) {
	var handle C.k4a_device_t
	if err := resultError(C.k4a_device_open(C.uint32_t(index), &handle), "opening device"); err != nil {
		return nil, errors.Wrapf(err, "device %d", index)
	}
	d := &device{index: index, handle: handle, serial: serialNumber(handle), logger: logger}
	var syncIn, syncOut C.bool
	if err := resultError(C.k4a_device_get_sync_jack(handle, &syncIn, &syncOut), "reading sync jacks"); err != nil {
		C.k4a_device_close(handle)
		return nil, errors.Wrapf(err, "device %d", index)
	}
	d.syncIn, d.syncOut = bool(syncIn), bool(syncOut)
	return d, nil
}

func (d *device) setColorControls(cfg capture.DeviceConfig) error {
	if cfg.ColorExposureUsec > 0 {
		if err := resultError(C.k4a_device_set_color_control(d.handle,
			C.K4A_COLOR_CONTROL_EXPOSURE_TIME_ABSOLUTE,
			C.K4A_COLOR_CONTROL_MODE_MANUAL,
			C.int32_t(cfg.ColorExposureUsec),
		), "setting color exposure"); err != nil {
			return err
		}
	}
	var powerline int32
	switch cfg.PowerlineHz {
	case 0:
		return nil
	case 50:
		powerline = 1
	case 60:
		powerline = 2
	default:
		return errors.Errorf("unsupported powerline frequency %d Hz", cfg.PowerlineHz)
	}
	return resultError(C.k4a_device_set_color_control(d.handle,
		C.K4A_COLOR_CONTROL_POWERLINE_FREQUENCY,
		C.K4A_COLOR_CONTROL_MODE_MANUAL,
		C.int32_t(powerline),
	), "setting powerline frequency")
}

func (d *device) start(config *C.k4a_device_configuration_t) error {
	var cal C.k4a_calibration_t
	if err := resultError(
		C.k4a_device_get_calibration(d.handle, config.depth_mode, config.color_resolution, &cal),
		"reading calibration",
	); err != nil {
		return err
	}
	calibration, err := calibrationFromSDK(&cal)
	if err != nil {
		return err
	}
	d.cal = calibration
	return resultError(C.k4a_device_start_cameras(d.handle, config), "starting cameras")
}

func (d *device) ReadCapture(ctx context.Context) (*capture.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var c C.k4a_capture_t
	switch C.k4a_device_get_capture(d.handle, &c, C.int32_t(captureTimeout/time.Millisecond)) {
	case C.K4A_WAIT_RESULT_SUCCEEDED:
		return captureFromSDK(d.index, c)
	case C.K4A_WAIT_RESULT_TIMEOUT:
		return nil, errors.Errorf("timed out waiting for a capture from device %d (%s)", d.index, d.serial)
	default:
		return nil, errors.Errorf("cannot read a capture from device %d (%s)", d.index, d.serial)
	}
}

func (d *device) Calibration(ctx context.Context) (*transform.Calibration, error) {
	if d.cal == nil {
		return nil, errors.Errorf("device %d has not been started", d.index)
	}
	return d.cal, nil
}

func (d *device) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		C.k4a_device_stop_cameras(d.handle)
		C.k4a_device_close(d.handle)
	})
	return nil
}

// orderDevices puts the master first. With several devices the master is the one whose sync out jack
// is connected and whose sync in jack is not, and every other device must have sync in connected.
func orderDevices(devices []*device) ([]*device, error) {
	if len(devices) == 1 {
		return devices, nil
	}
	var master *device
	subs := make([]*device, 0, len(devices)-1)
	for _, d := range devices {
		if d.syncOut && !d.syncIn && master == nil {
			master = d
			continue
		}
		if !d.syncIn {
			return nil, errors.Errorf("device %d (%s) has no sync in cable", d.index, d.serial)
		}
		subs = append(subs, d)
	}
	if master == nil {
		return nil, errors.New("no device has only its sync out cable connected, cannot pick a master")
	}
	return append([]*device{master}, subs...), nil
}

func openDevices(ctx context.Context, cfg capture.DeviceConfig, logger logging.Logger) (_ []capture.Device, err error) {
	if cfg.Count < 1 {
		return nil, errors.Errorf("need at least one device, got %d", cfg.Count)
	}
	if installed := int(C.k4a_device_get_installed_count()); installed < cfg.Count {
		return nil, errors.Errorf("asked for %d devices but only %d are connected", cfg.Count, installed)
	}
	depthMode, err := ParseDepthMode(cfg.DepthMode)
	if err != nil {
		return nil, err
	}
	colorResolution, err := ParseColorResolution(cfg.ColorResolution)
	if err != nil {
		return nil, err
	}
	fps, err := ParseFPS(cfg.FPS)
	if err != nil {
		return nil, err
	}
	colorFormat, err := imageFormatToSDK(cfg.ColorFormat)
	if err != nil {
		return nil, err
	}

	opened := make([]*device, 0, cfg.Count)
	defer func() {
		if err != nil {
			for _, d := range opened {
				err = multierr.Combine(err, d.Close(ctx))
			}
		}
	}()
	for i := 0; i < cfg.Count; i++ {
		d, err := openDevice(i, logger)
		if err != nil {
			return nil, err
		}
		opened = append(opened, d)
	}
	ordered, err := orderDevices(opened)
	if err != nil {
		return nil, err
	}

	base := C.k4a_device_configuration_t{
		color_format:             C.k4a_image_format_t(colorFormat),
		color_resolution:         C.k4a_color_resolution_t(colorResolution),
		depth_mode:               C.k4a_depth_mode_t(depthMode),
		camera_fps:               C.k4a_fps_t(fps),
		synchronized_images_only: C.bool(true),
		wired_sync_mode:          C.K4A_WIRED_SYNC_MODE_STANDALONE,
	}
	halfDelay := C.int32_t(capture.MinSubordinateDelay / time.Microsecond / 2)

	// subordinates must be running before the master starts sending pulses
	for i := len(ordered) - 1; i >= 0; i-- {
		d := ordered[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := d.setColorControls(cfg); err != nil {
			return nil, errors.Wrapf(err, "device %d", d.index)
		}
		config := base
		switch {
		case len(ordered) == 1:
		case i == 0:
			config.wired_sync_mode = C.K4A_WIRED_SYNC_MODE_MASTER
			config.depth_delay_off_color_usec = -halfDelay
		default:
			config.wired_sync_mode = C.K4A_WIRED_SYNC_MODE_SUBORDINATE
			config.depth_delay_off_color_usec = halfDelay
			config.subordinate_delay_off_master_usec = C.uint32_t(i * cfg.SubordinateDelayUsec)
		}
		if err := d.start(&config); err != nil {
			return nil, errors.Wrapf(err, "device %d", d.index)
		}
		logger.Infow("started device", "index", d.index, "serial", d.serial, "role", role(i, len(ordered)))
	}

	devices := make([]capture.Device, len(ordered))
	for i, d := range ordered {
		devices[i] = d
	}
	return devices, nil
}

func role(position, count int) string {
	switch {
	case count == 1:
		return "standalone"
	case position == 0:
		return "master"
	default:
		return "subordinate"
	}
}

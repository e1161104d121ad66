//go:build k4a
// +build k4a

package k4a

/*
#cgo LDFLAGS: -lk4a -lk4arecord
#include <stdlib.h>
#include <string.h>
#include <k4a/k4a.h>
#include <k4arecord/playback.h>

static void kd_camera_params(const k4a_calibration_camera_t *camera, float *out) {
	memcpy(out, camera->intrinsics.parameters.v, sizeof(camera->intrinsics.parameters.v));
}

static void kd_imu_sample(const k4a_imu_sample_t *sample, float *acc, float *gyro) {
	memcpy(acc, sample->acc_sample.v, 3 * sizeof(float));
	memcpy(gyro, sample->gyro_sample.v, 3 * sizeof(float));
}
*/
import "C"

import (
	"unsafe"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
)

func resultError(res C.k4a_result_t, op string) error {
	if res == C.K4A_RESULT_SUCCEEDED {
		return nil
	}
	return errors.Errorf("k4a: %s failed", op)
}

// frameFromImage wraps the image's buffer without copying it. The image must outlive the frame.
func frameFromImage(img C.k4a_image_t) (*rimage.Frame, error) {
	if img == nil {
		return nil, nil
	}
	format, err := imageFormatFromSDK(int(C.k4a_image_get_format(img)))
	if err != nil {
		return nil, err
	}
	frame := &rimage.Frame{
		Format:        format,
		Width:         int(C.k4a_image_get_width_pixels(img)),
		Height:        int(C.k4a_image_get_height_pixels(img)),
		Stride:        int(C.k4a_image_get_stride_bytes(img)),
		TimestampUsec: uint64(C.k4a_image_get_device_timestamp_usec(img)),
	}
	size := int(C.k4a_image_get_size(img))
	if buf := C.k4a_image_get_buffer(img); buf != nil && size > 0 {
		frame.Data = unsafe.Slice((*byte)(unsafe.Pointer(buf)), size)
	}
	return frame, nil
}

// captureFromSDK takes ownership of c. The SDK buffers are released when the capture is closed.
func captureFromSDK(device int, c C.k4a_capture_t) (*capture.Capture, error) {
	images := [3]C.k4a_image_t{
		C.k4a_capture_get_depth_image(c),
		C.k4a_capture_get_color_image(c),
		C.k4a_capture_get_ir_image(c),
	}
	release := func() error {
		for _, img := range images {
			if img != nil {
				C.k4a_image_release(img)
			}
		}
		C.k4a_capture_release(c)
		return nil
	}
	var frames [3]*rimage.Frame
	for i, img := range images {
		f, err := frameFromImage(img)
		if err != nil {
			//nolint:errcheck
			release()
			return nil, err
		}
		frames[i] = f
	}
	return capture.NewCapture(device, frames[0], frames[1], frames[2], release), nil
}

func rawCameraFromSDK(camera *C.k4a_calibration_camera_t) rawCamera {
	raw := rawCamera{
		Model:        int(camera.intrinsics._type),
		Width:        int(camera.resolution_width),
		Height:       int(camera.resolution_height),
		MetricRadius: float32(camera.metric_radius),
	}
	var params [paramCount]C.float
	C.kd_camera_params(camera, &params[0])
	for i, v := range params {
		raw.Params[i] = float32(v)
	}
	return raw
}

func calibrationFromSDK(cal *C.k4a_calibration_t) (*transform.Calibration, error) {
	raw := rawCalibration{
		Depth:           rawCameraFromSDK(&cal.depth_camera_calibration),
		Color:           rawCameraFromSDK(&cal.color_camera_calibration),
		DepthMode:       int(cal.depth_mode),
		ColorResolution: int(cal.color_resolution),
	}
	ext := &cal.extrinsics[C.K4A_CALIBRATION_TYPE_DEPTH][C.K4A_CALIBRATION_TYPE_COLOR]
	for i, v := range ext.rotation {
		raw.DepthToColor.Rotation[i] = float32(v)
	}
	for i, v := range ext.translation {
		raw.DepthToColor.Translation[i] = float32(v)
	}
	return raw.calibration()
}

func imuSampleFromSDK(sample *C.k4a_imu_sample_t) capture.IMUSample {
	var acc, gyro [3]C.float
	C.kd_imu_sample(sample, &acc[0], &gyro[0])
	return capture.IMUSample{
		Acc:               r3.Vector{X: float64(acc[0]), Y: float64(acc[1]), Z: float64(acc[2])},
		AccTimestampUsec:  uint64(sample.acc_timestamp_usec),
		Gyro:              r3.Vector{X: float64(gyro[0]), Y: float64(gyro[1]), Z: float64(gyro[2])},
		GyroTimestampUsec: uint64(sample.gyro_timestamp_usec),
		Temperature:       float64(sample.temperature),
	}
}

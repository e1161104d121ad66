// Package capture defines the sources kdextract reads synchronized depth, color and IR frames from.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
)

// Source produces captures from one recording, extracted tree or set of live devices.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Devices is the number of devices captures may come from.
	Devices() int
	// Calibration returns the calibration of one device.
	Calibration(ctx context.Context, device int) (*transform.Calibration, error)
	// NextCapture returns the next capture, or io.EOF once the source is exhausted.
	// The caller must Close every returned capture.
	NextCapture(ctx context.Context) (*Capture, error)
	Close(ctx context.Context) error
}

// IMUSource is implemented by sources that also carry inertial samples.
type IMUSource interface {
	// NextIMUSample returns the next sample, or io.EOF once there are none left.
	NextIMUSample(ctx context.Context) (IMUSample, error)
}

// LengthReporter is implemented by sources that know how much time they span.
type LengthReporter interface {
	Length() time.Duration
}

// Capture is a set of frames taken together by one device. Frames may be missing.
type Capture struct {
	Device int
	Depth  *rimage.Frame
	Color  *rimage.Frame
	IR     *rimage.Frame

	closeOnce sync.Once
	release   func() error
	closeErr  error
}

// NewCapture returns a capture whose release function runs exactly once, on the first Close.
func NewCapture(device int, depth, color, ir *rimage.Frame, release func() error) *Capture {
	return &Capture{Device: device, Depth: depth, Color: color, IR: ir, release: release}
}

// Complete reports whether the capture holds depth, color and IR frames.
func (c *Capture) Complete() bool {
	return c.Depth != nil && c.Color != nil && c.IR != nil
}

// Close releases the frames' native buffers. Frames must not be used afterwards.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		if c.release != nil {
			c.closeErr = c.release()
		}
		c.Depth, c.Color, c.IR = nil, nil, nil
	})
	return c.closeErr
}

// IMUSample is one accelerometer and gyroscope reading.
type IMUSample struct {
	// Acc is in meters per second squared.
	Acc              r3.Vector
	AccTimestampUsec uint64
	// Gyro is in radians per second.
	Gyro              r3.Vector
	GyroTimestampUsec uint64
	// Temperature is in degrees Celsius.
	Temperature float64
}

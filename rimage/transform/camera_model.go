package transform

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// CameraModel is a pinhole camera with an optional lens distortion model.
type CameraModel struct {
	*PinholeCameraIntrinsics
	Distortion Distorter
	// MetricRadius bounds the undistorted normalized radius where the distortion model is trusted.
	// Zero means unbounded.
	MetricRadius float64
}

type distortionJSON struct {
	Type       DistortionType `json:"type"`
	Parameters []float64      `json:"parameters"`
}

type cameraModelJSON struct {
	Intrinsics   *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion   *distortionJSON          `json:"distortion,omitempty"`
	MetricRadius float64                  `json:"metric_radius,omitempty"`
}

// MarshalJSON writes the distortion model as its type and parameter list.
func (cm CameraModel) MarshalJSON() ([]byte, error) {
	out := cameraModelJSON{Intrinsics: cm.PinholeCameraIntrinsics, MetricRadius: cm.MetricRadius}
	if cm.Distortion != nil {
		out.Distortion = &distortionJSON{Type: cm.Distortion.ModelType(), Parameters: cm.Distortion.Parameters()}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a model written by MarshalJSON.
func (cm *CameraModel) UnmarshalJSON(data []byte) error {
	var in cameraModelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	cm.PinholeCameraIntrinsics = in.Intrinsics
	cm.MetricRadius = in.MetricRadius
	cm.Distortion = nil
	if in.Distortion != nil {
		d, err := NewDistorter(in.Distortion.Type, in.Distortion.Parameters)
		if err != nil {
			return err
		}
		cm.Distortion = d
	}
	return nil
}

// CheckValid checks that the model can be used for projection.
func (cm *CameraModel) CheckValid() error {
	if cm == nil {
		return NewNoIntrinsicsError("camera model does not exist")
	}
	if err := cm.PinholeCameraIntrinsics.CheckValid(); err != nil {
		return err
	}
	if cm.Distortion != nil {
		if err := cm.Distortion.CheckValid(); err != nil {
			return err
		}
	}
	if cm.MetricRadius < 0 || !isFinite(cm.MetricRadius) {
		return errors.Errorf("invalid metric radius %v", cm.MetricRadius)
	}
	return nil
}

// Unproject back-projects the pixel (u, v) onto the z = 1 plane. ok is false when the pixel has no
// valid ray: undistortion failed, or the ray leaves the trusted radius. An error means the model itself
// is unusable.
func (cm *CameraModel) Unproject(u, v float64) (r2.Point, bool, error) {
	if err := cm.CheckValid(); err != nil {
		return r2.Point{}, false, err
	}
	p, ok := cm.unproject(u, v)
	return p, ok, nil
}

// unproject is Unproject without validating the model.
func (cm *CameraModel) unproject(u, v float64) (r2.Point, bool) {
	invalid := r2.Point{X: math.NaN(), Y: math.NaN()}
	dist := cm.Normalize(u, v)
	x, y, ok := Undistort(cm.Distortion, dist.X, dist.Y)
	if !ok {
		return invalid, false
	}
	if cm.MetricRadius > 0 && x*x+y*y > cm.MetricRadius*cm.MetricRadius {
		return invalid, false
	}
	return r2.Point{X: x, Y: y}, true
}

// Project maps a 3D point in the camera frame to a subpixel. ok is false for points at or behind the
// camera, outside the trusted radius, or where the distortion model is undefined.
func (cm *CameraModel) Project(p r3.Vector) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	x := p.X / p.Z
	y := p.Y / p.Z
	if cm.MetricRadius > 0 && x*x+y*y > cm.MetricRadius*cm.MetricRadius {
		return r2.Point{}, false
	}
	if cm.Distortion != nil {
		x, y = cm.Distortion.Transform(x, y)
	}
	if !isFinite(x) || !isFinite(y) {
		return r2.Point{}, false
	}
	return cm.Denormalize(r2.Point{X: x, Y: y}), true
}

// Scaled returns the model sampled at another resolution. Distortion acts on normalized coordinates and
// is shared.
func (cm *CameraModel) Scaled(width, height int) (*CameraModel, error) {
	if err := cm.CheckValid(); err != nil {
		return nil, err
	}
	intrinsics, err := cm.PinholeCameraIntrinsics.Scaled(width, height)
	if err != nil {
		return nil, err
	}
	return &CameraModel{
		PinholeCameraIntrinsics: intrinsics,
		Distortion:              cm.Distortion,
		MetricRadius:            cm.MetricRadius,
	}, nil
}

package k4a

import (
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/rimage/transform"
)

// Indices into the SDK's intrinsic parameter array.
const (
	paramCx = iota
	paramCy
	paramFx
	paramFy
	paramK1
	paramK2
	paramK3
	paramK4
	paramK5
	paramK6
	paramCodx
	paramCody
	paramP2
	paramP1
	paramMetricRadius
	paramCount
)

// rawCamera is one camera of a device calibration, as the SDK reports it.
type rawCamera struct {
	Model        int
	Width        int
	Height       int
	Params       [paramCount]float32
	MetricRadius float32
}

type rawExtrinsics struct {
	Rotation    [9]float32
	Translation [3]float32
}

type rawCalibration struct {
	Depth           rawCamera
	Color           rawCamera
	DepthToColor    rawExtrinsics
	DepthMode       int
	ColorResolution int
}

func (raw *rawCamera) cameraModel() (*transform.CameraModel, error) {
	p := func(i int) float64 { return float64(raw.Params[i]) }
	model := &transform.CameraModel{
		PinholeCameraIntrinsics: &transform.PinholeCameraIntrinsics{
			Width:  raw.Width,
			Height: raw.Height,
			Fx:     p(paramFx),
			Fy:     p(paramFy),
			Ppx:    p(paramCx),
			Ppy:    p(paramCy),
		},
		MetricRadius: float64(raw.MetricRadius),
	}
	if model.MetricRadius == 0 {
		model.MetricRadius = p(paramMetricRadius)
	}
	switch raw.Model {
	case lensModelRational6KT, lensModelBrownConrady:
		model.Distortion = &transform.Rational{
			K1:   p(paramK1),
			K2:   p(paramK2),
			K3:   p(paramK3),
			K4:   p(paramK4),
			K5:   p(paramK5),
			K6:   p(paramK6),
			P1:   p(paramP1),
			P2:   p(paramP2),
			CodX: p(paramCodx),
			CodY: p(paramCody),
		}
	case lensModelPolynomial3K:
		model.Distortion = &transform.BrownConrady{
			RadialK1:     p(paramK1),
			RadialK2:     p(paramK2),
			RadialK3:     p(paramK3),
			TangentialP1: p(paramP1),
			TangentialP2: p(paramP2),
		}
	default:
		return nil, errors.Errorf("unsupported lens distortion model %d", raw.Model)
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

func (raw *rawExtrinsics) extrinsics() *transform.Extrinsics {
	var e transform.Extrinsics
	for i, v := range raw.Rotation {
		e.Rotation[i] = float64(v)
	}
	for i, v := range raw.Translation {
		e.Translation[i] = float64(v)
	}
	return &e
}

func (raw *rawCalibration) calibration() (*transform.Calibration, error) {
	depth, err := raw.Depth.cameraModel()
	if err != nil {
		return nil, errors.Wrap(err, "depth camera")
	}
	color, err := raw.Color.cameraModel()
	if err != nil {
		return nil, errors.Wrap(err, "color camera")
	}
	cal := &transform.Calibration{
		Depth:           depth,
		Color:           color,
		DepthToColor:    raw.DepthToColor.extrinsics(),
		DepthMode:       nameOf(raw.DepthMode, depthModes),
		ColorResolution: nameOf(raw.ColorResolution, colorResolutions),
	}
	if err := cal.CheckValid(); err != nil {
		return nil, err
	}
	return cal, nil
}

package transform

import "github.com/pkg/errors"

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// RationalDistortionType is the rational polynomial (6 radial, 2 tangential, shifted center)
	// model the Azure Kinect factory calibration uses for both of its cameras.
	RationalDistortionType = DistortionType("rational")
)

// Distorter defines a Transform that takes undistorted normalized coordinates and distorts them according
// to the model.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

// jacobianDistorter is implemented by models that know the derivatives of their forward transform.
type jacobianDistorter interface {
	// Jacobian returns [[dxd/dx, dxd/dy], [dyd/dx, dyd/dy]] at (x, y).
	Jacobian(x, y float64) (float64, float64, float64, float64)
}

// InvalidDistortionError is used when the distortion_parameters are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errors.New("invalid distortion_parameters"), msg)
}

// NewDistorter returns a Distorter given a valid DistortionType and its parameters.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	switch distortionType {
	case BrownConradyDistortionType:
		return NewBrownConrady(parameters)
	case RationalDistortionType:
		return NewRational(parameters)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
}

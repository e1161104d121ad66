package transform

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// azureKinectColor is a factory calibration of a 1280x720 color camera.
func azureKinectColor() *CameraModel {
	return &CameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width:  1280,
			Height: 720,
			Fx:     605.8,
			Fy:     605.6,
			Ppx:    637.4,
			Ppy:    366.2,
		},
		Distortion: &Rational{
			K1: 0.466, K2: -2.58, K3: 1.47, K4: 0.35, K5: -2.41, K6: 1.40,
			P1: 0.0008, P2: -0.0002,
		},
		MetricRadius: 1.7,
	}
}

func brownConradyModel() *CameraModel {
	return &CameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width:  640,
			Height: 480,
			Fx:     500,
			Fy:     500,
			Ppx:    319.5,
			Ppy:    239.5,
		},
		Distortion: &BrownConrady{RadialK1: -0.1, RadialK2: 0.02, TangentialP1: 0.001, TangentialP2: -0.0005},
	}
}

func TestUndistortInvertsDistortion(t *testing.T) {
	distorters := []Distorter{
		&BrownConrady{RadialK1: -0.1, RadialK2: 0.02, RadialK3: -0.001, TangentialP1: 0.001, TangentialP2: -0.0005},
		azureKinectColor().Distortion,
	}
	for _, d := range distorters {
		t.Run(string(d.ModelType()), func(t *testing.T) {
			for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 0.1, Y: -0.2}, {X: -0.4, Y: 0.3}, {X: 0.5, Y: 0.5}, {X: -0.6, Y: -0.1}} {
				xd, yd := d.Transform(p.X, p.Y)
				xu, yu, ok := Undistort(d, xd, yd)
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, xu, test.ShouldAlmostEqual, p.X, 1e-9)
				test.That(t, yu, test.ShouldAlmostEqual, p.Y, 1e-9)
			}
		})
	}
}

func TestUndistortFailures(t *testing.T) {
	xu, yu, ok := Undistort(nil, 0.3, 0.4)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, xu, test.ShouldEqual, 0.3)
	test.That(t, yu, test.ShouldEqual, 0.4)

	_, _, ok = Undistort(&BrownConrady{}, math.NaN(), 0)
	test.That(t, ok, test.ShouldBeFalse)

	// the radial term is undefined on the unit circle, where the iteration starts
	singular := &Rational{K4: -1}
	xu, yu, ok = Undistort(singular, 1, 0)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, math.IsNaN(xu), test.ShouldBeTrue)
	test.That(t, math.IsNaN(yu), test.ShouldBeTrue)
}

func TestBrownConradyJacobian(t *testing.T) {
	bc := &BrownConrady{RadialK1: -0.1, RadialK2: 0.02, RadialK3: 0.003, TangentialP1: 0.001, TangentialP2: -0.0005}
	a, b, c, d := bc.Jacobian(0.3, -0.2)
	na, nb, nc, nd := numericJacobian(bc, 0.3, -0.2)
	test.That(t, a, test.ShouldAlmostEqual, na, 1e-6)
	test.That(t, b, test.ShouldAlmostEqual, nb, 1e-6)
	test.That(t, c, test.ShouldAlmostEqual, nc, 1e-6)
	test.That(t, d, test.ShouldAlmostEqual, nd, 1e-6)
}

func TestUnprojectProject(t *testing.T) {
	for _, model := range []*CameraModel{azureKinectColor(), brownConradyModel()} {
		for _, px := range []r2.Point{{X: 10, Y: 10}, {X: model.Ppx, Y: model.Ppy}, {X: 200, Y: 300}, {X: float64(model.Width - 1), Y: 0}} {
			ray, ok, err := model.Unproject(px.X, px.Y)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, ok, test.ShouldBeTrue)
			back, ok := model.Project(r3.Vector{X: ray.X * 1500, Y: ray.Y * 1500, Z: 1500})
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, back.X, test.ShouldAlmostEqual, px.X, 1e-6)
			test.That(t, back.Y, test.ShouldAlmostEqual, px.Y, 1e-6)
		}
	}

	model := brownConradyModel()
	ray, ok, err := model.Unproject(model.Ppx, model.Ppy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ray.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, ray.Y, test.ShouldAlmostEqual, 0, 1e-12)

	_, ok = model.Project(r3.Vector{X: 1, Y: 1, Z: 0})
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = model.Project(r3.Vector{X: 1, Y: 1, Z: -5})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestUnprojectOutsideMetricRadius(t *testing.T) {
	model := brownConradyModel()
	model.MetricRadius = 0.1
	_, ok, err := model.Unproject(model.Ppx, model.Ppy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)

	ray, ok, err := model.Unproject(0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, math.IsNaN(ray.X), test.ShouldBeTrue)
}

func TestCameraModelCheckValid(t *testing.T) {
	var nilModel *CameraModel
	_, _, err := nilModel.Unproject(0, 0)
	test.That(t, err, test.ShouldBeError, NewNoIntrinsicsError("camera model does not exist"))

	model := brownConradyModel()
	model.Fx = 0
	_, _, err = model.Unproject(0, 0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid focal length Fx")

	model = brownConradyModel()
	model.Distortion = &BrownConrady{RadialK1: math.Inf(1)}
	test.That(t, model.CheckValid(), test.ShouldNotBeNil)

	model = &CameraModel{}
	test.That(t, model.CheckValid(), test.ShouldNotBeNil)
}

func TestCameraModelJSON(t *testing.T) {
	model := azureKinectColor()
	data, err := json.Marshal(model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"type":"rational"`)
	test.That(t, string(data), test.ShouldContainSubstring, `"width_px":1280`)

	var back CameraModel
	test.That(t, json.Unmarshal(data, &back), test.ShouldBeNil)
	test.That(t, back.PinholeCameraIntrinsics, test.ShouldResemble, model.PinholeCameraIntrinsics)
	test.That(t, back.Distortion, test.ShouldResemble, model.Distortion)
	test.That(t, back.MetricRadius, test.ShouldEqual, model.MetricRadius)

	err = json.Unmarshal([]byte(`{"intrinsic_parameters":{"width_px":1},"distortion":{"type":"fisheye"}}`), &back)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewDistorter(t *testing.T) {
	d, err := NewDistorter(BrownConradyDistortionType, []float64{0.1, 0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Parameters(), test.ShouldResemble, []float64{0.1, 0.2, 0, 0, 0})

	d, err = NewDistorter(RationalDistortionType, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.(*Rational).CodY, test.ShouldEqual, 10.)

	_, err = NewDistorter(RationalDistortionType, make([]float64, 11))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDistorter(BrownConradyDistortionType, make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDistorter("kannala_brandt", nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsicsScaled(t *testing.T) {
	intrinsics := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 400, Ppx: 319.5, Ppy: 239.5}
	half, err := intrinsics.Scaled(320, 240)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, half, test.ShouldResemble, &PinholeCameraIntrinsics{Width: 320, Height: 240, Fx: 250, Fy: 200, Ppx: 159.5, Ppy: 119.5})

	same, err := intrinsics.Scaled(640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same, test.ShouldResemble, intrinsics)
	test.That(t, same, test.ShouldNotPointTo, intrinsics)

	_, err = intrinsics.Scaled(0, 480)
	test.That(t, err, test.ShouldNotBeNil)

	matrix := intrinsics.GetCameraMatrix()
	test.That(t, matrix.At(0, 0), test.ShouldEqual, 500.)
	test.That(t, matrix.At(1, 2), test.ShouldEqual, 239.5)
	test.That(t, matrix.At(2, 2), test.ShouldEqual, 1.)
}

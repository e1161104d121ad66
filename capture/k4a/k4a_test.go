package k4a

import (
	"testing"

	"go.viam.com/test"

	"github.com/kdlab/kdextract/capture"
	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
)

func TestModes(t *testing.T) {
	mode, err := ParseDepthMode("nfov_unbinned")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, depthModeNFOVUnbinned)
	_, err = ParseDepthMode("NFOV")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "WFOV_2X2BINNED")

	res, err := ParseColorResolution("1080p")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res, test.ShouldEqual, colorResolution1080P)
	_, err = ParseColorResolution("4K")
	test.That(t, err, test.ShouldNotBeNil)

	fps, err := ParseFPS(15)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fps, test.ShouldEqual, fps15)
	_, err = ParseFPS(25)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, nameOf(depthModeWFOV2x2Binned, depthModes), test.ShouldEqual, "WFOV_2X2BINNED")
	test.That(t, nameOf(99, colorResolutions), test.ShouldEqual, "UNKNOWN")
}

func TestImageFormats(t *testing.T) {
	f, err := imageFormatFromSDK(imageFormatDepth16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, rimage.FormatDepth16)
	_, err = imageFormatFromSDK(42)
	test.That(t, err, test.ShouldNotBeNil)

	v, err := imageFormatToSDK(rimage.FormatBGRA32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, imageFormatBGRA32)
	_, err = imageFormatToSDK(rimage.Format("h264"))
	test.That(t, err, test.ShouldNotBeNil)
}

func rawAzureKinect() rawCalibration {
	var depthParams, colorParams [paramCount]float32
	depthParams[paramCx], depthParams[paramCy] = 319.5, 330.25
	depthParams[paramFx], depthParams[paramFy] = 504.5, 504.75
	depthParams[paramK1], depthParams[paramK2], depthParams[paramK3] = 0.5, 0.25, 0.0125
	depthParams[paramK4], depthParams[paramK5], depthParams[paramK6] = 0.75, 0.375, 0.0625
	depthParams[paramP1], depthParams[paramP2] = -0.0001, 0.0002
	depthParams[paramMetricRadius] = 1.75

	colorParams[paramCx], colorParams[paramCy] = 638.5, 366
	colorParams[paramFx], colorParams[paramFy] = 605.25, 605
	colorParams[paramK1] = 0.5

	return rawCalibration{
		Depth: rawCamera{Model: lensModelBrownConrady, Width: 640, Height: 576, Params: depthParams},
		Color: rawCamera{Model: lensModelRational6KT, Width: 1280, Height: 720, Params: colorParams, MetricRadius: 1.5},
		DepthToColor: rawExtrinsics{
			Rotation:    [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			Translation: [3]float32{-32, -2, 4},
		},
		DepthMode:       depthModeNFOVUnbinned,
		ColorResolution: colorResolution720P,
	}
}

func TestCalibrationConversion(t *testing.T) {
	raw := rawAzureKinect()
	cal, err := raw.calibration()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.DepthMode, test.ShouldEqual, "NFOV_UNBINNED")
	test.That(t, cal.ColorResolution, test.ShouldEqual, "720P")
	test.That(t, cal.Registered, test.ShouldBeFalse)

	test.That(t, *cal.Depth.PinholeCameraIntrinsics, test.ShouldResemble, transform.PinholeCameraIntrinsics{
		Width: 640, Height: 576, Fx: 504.5, Fy: 504.75, Ppx: 319.5, Ppy: 330.25,
	})
	test.That(t, cal.Depth.MetricRadius, test.ShouldEqual, 1.75)
	rational, ok := cal.Depth.Distortion.(*transform.Rational)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, rational.K1, test.ShouldEqual, 0.5)
	test.That(t, rational.K6, test.ShouldEqual, 0.0625)
	test.That(t, rational.P1, test.ShouldEqual, float64(float32(-0.0001)))
	test.That(t, rational.P2, test.ShouldEqual, float64(float32(0.0002)))

	test.That(t, cal.Color.MetricRadius, test.ShouldEqual, 1.5)
	test.That(t, cal.Color.Width, test.ShouldEqual, 1280)
	test.That(t, cal.DepthToColor.Translation, test.ShouldResemble, [3]float64{-32, -2, 4})
	test.That(t, cal.DepthToColor.Rotation, test.ShouldResemble, transform.IdentityExtrinsics().Rotation)

	raw.Color.Model = lensModelPolynomial3K
	cal, err = raw.calibration()
	test.That(t, err, test.ShouldBeNil)
	bc, ok := cal.Color.Distortion.(*transform.BrownConrady)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, bc.RadialK1, test.ShouldEqual, 0.5)

	raw.Depth.Model = lensModelTheta
	_, err = raw.calibration()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "depth camera")

	raw = rawAzureKinect()
	raw.DepthToColor.Rotation = [9]float32{2, 0, 0, 0, 1, 0, 0, 0, 1}
	_, err = raw.calibration()
	test.That(t, err, test.ShouldNotBeNil)

	raw = rawAzureKinect()
	raw.Color.Params[paramFx] = 0
	_, err = raw.calibration()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "color camera")
}

func TestRegistered(t *testing.T) {
	reg, ok := capture.Lookup(DriverName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, reg.Extensions, test.ShouldResemble, []string{".mkv"})
	test.That(t, reg.OpenPlayback, test.ShouldNotBeNil)
	test.That(t, reg.OpenDevices, test.ShouldNotBeNil)
}

// Package k4a plays back Azure Kinect recordings and drives live Azure Kinect devices.
//
// The native implementation needs the Azure Kinect Sensor SDK and is only compiled with
// -tags=k4a. Without the tag the driver is still registered but every constructor fails.
package k4a

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/rimage"
)

// DriverName is the name the driver registers under.
const DriverName = "k4a"

// Values mirror the SDK's enums.
const (
	depthModeOff = iota
	depthModeNFOV2x2Binned
	depthModeNFOVUnbinned
	depthModeWFOV2x2Binned
	depthModeWFOVUnbinned
	depthModePassiveIR
)

const (
	colorResolutionOff = iota
	colorResolution720P
	colorResolution1080P
	colorResolution1440P
	colorResolution1536P
	colorResolution2160P
	colorResolution3072P
)

const (
	fps5 = iota
	fps15
	fps30
)

const (
	imageFormatMJPG = iota
	imageFormatNV12
	imageFormatYUY2
	imageFormatBGRA32
	imageFormatDepth16
	imageFormatIR16
	imageFormatCustom8
	imageFormatCustom16
)

const (
	lensModelUnknown = iota
	lensModelTheta
	lensModelPolynomial3K
	lensModelRational6KT
	lensModelBrownConrady
)

var depthModes = map[string]int{
	"OFF":            depthModeOff,
	"NFOV_2X2BINNED": depthModeNFOV2x2Binned,
	"NFOV_UNBINNED":  depthModeNFOVUnbinned,
	"WFOV_2X2BINNED": depthModeWFOV2x2Binned,
	"WFOV_UNBINNED":  depthModeWFOVUnbinned,
	"PASSIVE_IR":     depthModePassiveIR,
}

var colorResolutions = map[string]int{
	"OFF":   colorResolutionOff,
	"720P":  colorResolution720P,
	"1080P": colorResolution1080P,
	"1440P": colorResolution1440P,
	"1536P": colorResolution1536P,
	"2160P": colorResolution2160P,
	"3072P": colorResolution3072P,
}

var framesPerSecond = map[int]int{
	5:  fps5,
	15: fps15,
	30: fps30,
}

var imageFormats = map[int]rimage.Format{
	imageFormatMJPG:     rimage.FormatMJPG,
	imageFormatNV12:     rimage.FormatNV12,
	imageFormatYUY2:     rimage.FormatYUY2,
	imageFormatBGRA32:   rimage.FormatBGRA32,
	imageFormatDepth16:  rimage.FormatDepth16,
	imageFormatIR16:     rimage.FormatIR16,
	imageFormatCustom8:  rimage.FormatCustom8,
	imageFormatCustom16: rimage.FormatCustom16,
}

func lookupName(kind, name string, table map[string]int) (int, error) {
	if v, ok := table[strings.ToUpper(name)]; ok {
		return v, nil
	}
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	return 0, errors.Errorf("unknown %s %q, expected one of %s", kind, name, strings.Join(names, ", "))
}

func nameOf(value int, table map[string]int) string {
	for n, v := range table {
		if v == value {
			return n
		}
	}
	return "UNKNOWN"
}

// ParseDepthMode parses a depth mode name such as NFOV_UNBINNED.
func ParseDepthMode(name string) (int, error) {
	return lookupName("depth mode", name, depthModes)
}

// ParseColorResolution parses a color resolution name such as 720P.
func ParseColorResolution(name string) (int, error) {
	return lookupName("color resolution", name, colorResolutions)
}

// ParseFPS maps a frame rate to the device setting.
func ParseFPS(fps int) (int, error) {
	if v, ok := framesPerSecond[fps]; ok {
		return v, nil
	}
	return 0, errors.Errorf("unsupported frame rate %d, expected 5, 15 or 30", fps)
}

func imageFormatFromSDK(value int) (rimage.Format, error) {
	if f, ok := imageFormats[value]; ok {
		return f, nil
	}
	return "", errors.Errorf("unsupported image format %d", value)
}

func imageFormatToSDK(format rimage.Format) (int, error) {
	for v, f := range imageFormats {
		if f == format {
			return v, nil
		}
	}
	return 0, errors.Errorf("image format %q cannot be requested from the device", format)
}

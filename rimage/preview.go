package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Preview full scales used when rendering 8-bit previews.
const (
	// DefaultDepthPreviewMax is the far end of the NFOV unbinned depth range, in millimeters.
	DefaultDepthPreviewMax = 3860
	// DefaultIRPreviewMax is the IR intensity rendered as white.
	DefaultIRPreviewMax = 1000
)

// Colormap names accepted by RenderPreview.
const (
	ColormapGray = "gray"
	ColormapHCL  = "hcl"
)

// ScaleToGray renders the map as 8-bit gray where maxRange maps to 255. Larger readings saturate.
func ScaleToGray(dm *DepthMap, maxRange float64) (*image.Gray, error) {
	if maxRange <= 0 {
		return nil, errors.Errorf("preview range must be positive, got %v", maxRange)
	}
	img := image.NewGray(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.Pix[y*img.Stride+x] = scaleToByte(float64(dm.GetDepth(x, y)) * 255 / maxRange)
		}
	}
	return img, nil
}

func scaleToByte(v float64) uint8 {
	v = math.Round(v)
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v)
}

var (
	nearColor = colorful.Hcl(20, 0.9, 0.55)
	farColor  = colorful.Hcl(260, 0.7, 0.35)
)

// Colorize renders the map with a near-warm to far-cool HCL ramp. Missing readings are black.
func Colorize(dm *DepthMap, maxRange float64) (*image.RGBA, error) {
	if maxRange <= 0 {
		return nil, errors.Errorf("preview range must be positive, got %v", maxRange)
	}
	img := image.NewRGBA(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			d := dm.GetDepth(x, y)
			if d == 0 {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
				continue
			}
			t := math.Min(float64(d)/maxRange, 1)
			r, g, b := nearColor.BlendHcl(farColor, t).Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return img, nil
}

// RenderPreview renders the map with the named colormap.
func RenderPreview(dm *DepthMap, colormap string, maxRange float64) (image.Image, error) {
	switch colormap {
	case "", ColormapGray:
		return ScaleToGray(dm, maxRange)
	case ColormapHCL:
		return Colorize(dm, maxRange)
	default:
		return nil, errors.Errorf("unknown colormap %q", colormap)
	}
}

package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Depth is the depth reading of one pixel in millimeters. Zero means no reading.
type Depth uint16

// MaxDepth is the largest representable depth.
const MaxDepth = Depth(65535)

// DepthMap is a row-major grid of 16-bit depth readings.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// IRMap holds active infrared intensities. It shares the 16-bit layout of a depth map.
type IRMap = DepthMap

// NewEmptyDepthMap returns an all-zero depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps existing row-major readings. The slice is not copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map %dx%d needs %d samples, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the horizontal size of the map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle dimensions of the image.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains reports whether (x, y) is inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[y*dm.width+x]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[y*dm.width+x] = val
}

// Data returns the underlying row-major samples. Callers must not resize it.
func (dm *DepthMap) Data() []Depth {
	return dm.data
}

// Len is the number of pixels.
func (dm *DepthMap) Len() int {
	return len(dm.data)
}

// MinMax returns the smallest and largest non-zero readings. Both are zero for an empty map.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	var lo, hi Depth
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if lo == 0 || d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

// Clone makes a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	ret := NewEmptyDepthMap(dm.width, dm.height)
	copy(ret.data, dm.data)
	return ret
}

// ToGray16 converts the map into a lossless 16-bit grayscale image.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ConvertImageToDepthMap reads a 16-bit grayscale image (as written by ToGray16) back into a depth map.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.New("cannot convert an empty image to a depth map")
	}
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	switch ii := img.(type) {
	case *image.Gray16:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(ii.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	case *image.Gray:
		return nil, errors.New("8-bit grayscale images lose depth precision; expected 16-bit")
	default:
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				g := color.Gray16Model.Convert(ii.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				dm.Set(x, y, Depth(g.Y))
			}
		}
	}
	return dm, nil
}

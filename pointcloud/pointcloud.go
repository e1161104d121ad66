// Package pointcloud defines organized point clouds synthesized from depth frames and their PLY encoding.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PointCloud is a general purpose container of points.
type PointCloud interface {
	// Size returns the number of valid points in the cloud.
	Size() int

	// Iterate calls fn for each valid point in order. If fn returns false, iteration stops.
	Iterate(fn func(p r3.Vector) bool)
}

// Organized is a point cloud laid out on the pixel grid it was computed from. Pixels without a point hold
// NaN in all three components.
type Organized struct {
	width  int
	height int
	points []r3.Vector
	size   int
}

// NewOrganized wraps row-major points. Entries with any NaN component are treated as missing.
func NewOrganized(width, height int, points []r3.Vector) (*Organized, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid point cloud size %dx%d", width, height)
	}
	if len(points) != width*height {
		return nil, errors.Errorf("point cloud %dx%d needs %d points, got %d", width, height, width*height, len(points))
	}
	pc := &Organized{width: width, height: height, points: points}
	for i, p := range points {
		if isInvalid(p) {
			pc.points[i] = invalidPoint()
			continue
		}
		pc.size++
	}
	return pc, nil
}

func invalidPoint() r3.Vector {
	return r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
}

func isInvalid(p r3.Vector) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z)
}

// Width returns the horizontal size of the grid.
func (pc *Organized) Width() int {
	return pc.width
}

// Height returns the vertical size of the grid.
func (pc *Organized) Height() int {
	return pc.height
}

// Size is the number of valid points.
func (pc *Organized) Size() int {
	return pc.size
}

// At returns the point of pixel (x, y) and whether it is valid.
func (pc *Organized) At(x, y int) (r3.Vector, bool) {
	p := pc.points[y*pc.width+x]
	return p, !isInvalid(p)
}

// Points returns the row-major grid, including invalid entries. Callers must not modify it.
func (pc *Organized) Points() []r3.Vector {
	return pc.points
}

// Iterate calls fn for each valid point in row-major order.
func (pc *Organized) Iterate(fn func(p r3.Vector) bool) {
	for _, p := range pc.points {
		if isInvalid(p) {
			continue
		}
		if !fn(p) {
			return
		}
	}
}

// Basic is an unorganized list of points, as read back from a file.
type Basic []r3.Vector

// Size is the number of points.
func (b Basic) Size() int {
	return len(b)
}

// Iterate calls fn for each point in order.
func (b Basic) Iterate(fn func(p r3.Vector) bool) {
	for _, p := range b {
		if !fn(p) {
			return
		}
	}
}

// BoundingBox returns the per-axis minimum and maximum of the cloud's points. ok is false for an empty cloud.
func BoundingBox(pc PointCloud) (lo, hi r3.Vector, ok bool) {
	pc.Iterate(func(p r3.Vector) bool {
		if !ok {
			lo, hi, ok = p, p, true
			return true
		}
		lo = r3.Vector{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vector{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
		return true
	})
	return lo, hi, ok
}

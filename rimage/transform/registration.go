package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/rimage"
)

// Registration resamples depth (and IR) frames into the color camera's geometry.
type Registration struct {
	depthTable   *DirectionTable
	color        *CameraModel
	depthToColor *Extrinsics
}

// NewRegistration prepares registration of depth frames matching depthTable onto a colorWidth x colorHeight
// color image.
func NewRegistration(cal *Calibration, depthTable *DirectionTable, colorWidth, colorHeight int) (*Registration, error) {
	if err := cal.CheckValid(); err != nil {
		return nil, err
	}
	if depthTable == nil {
		return nil, errors.New("registration needs the depth direction table")
	}
	color, err := cal.Color.Scaled(colorWidth, colorHeight)
	if err != nil {
		return nil, errors.Wrap(err, "color camera")
	}
	ext := cal.DepthToColor
	if ext == nil {
		ext = IdentityExtrinsics()
	}
	if err := ext.CheckValid(); err != nil {
		return nil, err
	}
	return &Registration{depthTable: depthTable, color: color, depthToColor: ext}, nil
}

// Width is the width of registered frames.
func (reg *Registration) Width() int {
	return reg.color.Width
}

// Height is the height of registered frames.
func (reg *Registration) Height() int {
	return reg.color.Height
}

// maxFootprint bounds the color-pixel extent of one depth pixel's footprint. Larger footprints only come
// from degenerate projections and are drawn as a single pixel.
const maxFootprint = 64

// Register maps every valid depth sample into the color camera. Each depth pixel covers the quad spanned by
// its four projected corners, drawn as two triangles, and the nearest surface wins where quads overlap.
// ir is optional; when given, each IR value follows its depth sample. Unmapped pixels are zero.
func (reg *Registration) Register(depth *rimage.DepthMap, ir *rimage.IRMap) (*rimage.DepthMap, *rimage.IRMap, error) {
	if depth == nil {
		return nil, nil, errors.New("no depth map to register")
	}
	if depth.Width() != reg.depthTable.Width() || depth.Height() != reg.depthTable.Height() {
		return nil, nil, errors.Errorf("depth map %dx%d does not match direction table %dx%d",
			depth.Width(), depth.Height(), reg.depthTable.Width(), reg.depthTable.Height())
	}
	if ir != nil && (ir.Width() != depth.Width() || ir.Height() != depth.Height()) {
		return nil, nil, errors.Errorf("ir map %dx%d does not match depth map %dx%d",
			ir.Width(), ir.Height(), depth.Width(), depth.Height())
	}

	r := &rasterizer{depth: rimage.NewEmptyDepthMap(reg.Width(), reg.Height())}
	if ir != nil {
		r.ir = rimage.NewEmptyDepthMap(reg.Width(), reg.Height())
	}

	for y := 0; y < depth.Height(); y++ {
		for x := 0; x < depth.Width(); x++ {
			d := depth.GetDepth(x, y)
			if d == 0 || !reg.depthTable.Valid(x, y) {
				continue
			}
			z := float64(d)
			center, zc, ok := reg.toColor(reg.depthTable.At(x, y), z)
			if !ok {
				continue
			}
			var irValue rimage.Depth
			if ir != nil {
				irValue = ir.GetDepth(x, y)
			}

			var quad [4]r2.Point
			drawn := false
			if corners, ok := reg.corners(x, y); ok {
				projected := true
				for i, dir := range corners {
					if quad[i], _, ok = reg.toColor(dir, z); !ok {
						projected = false
						break
					}
				}
				if projected {
					drawn = r.quad(quad, zc, irValue)
				}
			}
			if !drawn {
				r.point(int(math.Round(center.X)), int(math.Round(center.Y)), zc, irValue)
			}
		}
	}
	return r.depth, r.ir, nil
}

// toColor moves the depth-camera point along dir at depth z into color pixel coordinates, returning the
// point's depth in the color camera.
func (reg *Registration) toColor(dir r2.Point, z float64) (r2.Point, rimage.Depth, bool) {
	p := reg.depthToColor.Apply(r3.Vector{X: dir.X * z, Y: dir.Y * z, Z: z})
	uv, ok := reg.color.Project(p)
	if !ok {
		return r2.Point{}, 0, false
	}
	zc := math.Round(p.Z)
	if zc < 1 || zc > float64(rimage.MaxDepth) {
		return r2.Point{}, 0, false
	}
	return uv, rimage.Depth(zc), true
}

// corners returns the ray directions through the corners of depth pixel (x, y), in order around the pixel.
// The direction field is linearized from the neighboring table entries.
func (reg *Registration) corners(x, y int) ([4]r2.Point, bool) {
	c := reg.depthTable.At(x, y)
	stepX, okX := reg.step(x, y, 1, 0)
	stepY, okY := reg.step(x, y, 0, 1)
	if !okX || !okY {
		return [4]r2.Point{}, false
	}
	hx, hy := stepX.Mul(0.5), stepY.Mul(0.5)
	return [4]r2.Point{
		c.Sub(hx).Sub(hy),
		c.Add(hx).Sub(hy),
		c.Add(hx).Add(hy),
		c.Sub(hx).Add(hy),
	}, true
}

// step is the change in direction from pixel (x, y) to its neighbor along (dx, dy), taken backwards when
// the forward neighbor has no ray.
func (reg *Registration) step(x, y, dx, dy int) (r2.Point, bool) {
	t := reg.depthTable
	valid := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < t.Width() && y < t.Height() && t.Valid(x, y)
	}
	switch {
	case valid(x+dx, y+dy):
		return t.At(x+dx, y+dy).Sub(t.At(x, y)), true
	case valid(x-dx, y-dy):
		return t.At(x, y).Sub(t.At(x-dx, y-dy)), true
	default:
		return r2.Point{}, false
	}
}

// rasterizer draws registered samples with a z-buffer held in depth itself.
type rasterizer struct {
	depth *rimage.DepthMap
	ir    *rimage.IRMap
}

func (r *rasterizer) point(u, v int, z, irValue rimage.Depth) {
	if !r.depth.Contains(u, v) {
		return
	}
	if prev := r.depth.GetDepth(u, v); prev != 0 && prev <= z {
		return
	}
	r.depth.Set(u, v, z)
	if r.ir != nil {
		r.ir.Set(u, v, irValue)
	}
}

// quad fills the pixel centers inside q, split into the triangles (0, 1, 2) and (0, 2, 3). It reports false
// when q is too large to be a pixel footprint.
func (r *rasterizer) quad(q [4]r2.Point, z, irValue rimage.Depth) bool {
	minU, maxU := math.Inf(1), math.Inf(-1)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, p := range q {
		minU, maxU = math.Min(minU, p.X), math.Max(maxU, p.X)
		minV, maxV = math.Min(minV, p.Y), math.Max(maxV, p.Y)
	}
	if maxU-minU > maxFootprint || maxV-minV > maxFootprint {
		return false
	}
	u0 := max(int(math.Ceil(minU)), 0)
	u1 := min(int(math.Floor(maxU)), r.depth.Width()-1)
	v0 := max(int(math.Ceil(minV)), 0)
	v1 := min(int(math.Floor(maxV)), r.depth.Height()-1)
	for v := v0; v <= v1; v++ {
		for u := u0; u <= u1; u++ {
			p := r2.Point{X: float64(u), Y: float64(v)}
			if inTriangle(p, q[0], q[1], q[2]) || inTriangle(p, q[0], q[2], q[3]) {
				r.point(u, v, z, irValue)
			}
		}
	}
	return true
}

// inTriangle reports whether p lies inside or on the edges of triangle abc, in either winding.
func inTriangle(p, a, b, c r2.Point) bool {
	e0 := b.Sub(a).Cross(p.Sub(a))
	e1 := c.Sub(b).Cross(p.Sub(b))
	e2 := a.Sub(c).Cross(p.Sub(c))
	if e0 == 0 && e1 == 0 && e2 == 0 {
		return false
	}
	return (e0 >= 0 && e1 >= 0 && e2 >= 0) || (e0 <= 0 && e1 <= 0 && e2 <= 0)
}

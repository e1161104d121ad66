package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/rimage"
	"github.com/kdlab/kdextract/rimage/transform"
)

// Synthesize scales every pixel's ray by its depth reading. Pixels with no reading or no ray become
// invalid points. Coordinates are in the depth map's units.
func Synthesize(dm *rimage.DepthMap, table *transform.DirectionTable) (*Organized, error) {
	if dm == nil {
		return nil, errors.New("no depth map to synthesize a point cloud from")
	}
	if table == nil {
		return nil, errors.New("no direction table to synthesize a point cloud with")
	}
	if dm.Width() != table.Width() || dm.Height() != table.Height() {
		return nil, errors.Errorf("depth map %dx%d does not match direction table %dx%d",
			dm.Width(), dm.Height(), table.Width(), table.Height())
	}

	pc := &Organized{width: dm.Width(), height: dm.Height(), points: make([]r3.Vector, dm.Len())}
	for i, d := range dm.Data() {
		dir := table.Index(i)
		if d == 0 || math.IsNaN(dir.X) || math.IsNaN(dir.Y) {
			pc.points[i] = invalidPoint()
			continue
		}
		z := float64(d)
		pc.points[i] = r3.Vector{X: dir.X * z, Y: dir.Y * z, Z: z}
		pc.size++
	}
	return pc, nil
}

package transform

import (
	"context"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/kdlab/kdextract/utils"
)

// DirectionTable holds, for every pixel of one resolution, the x and y of the pixel's ray at z = 1.
// Pixels without a valid ray hold NaN in both components. A table is immutable once built.
type DirectionTable struct {
	width  int
	height int
	data   []r2.Point
}

// NewDirectionTable wraps row-major directions. The slice is copied.
func NewDirectionTable(width, height int, data []r2.Point) (*DirectionTable, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid direction table size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("direction table %dx%d needs %d entries, got %d", width, height, width*height, len(data))
	}
	table := &DirectionTable{width: width, height: height, data: make([]r2.Point, len(data))}
	for i, p := range data {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			p = invalidDirection()
		}
		table.data[i] = p
	}
	return table, nil
}

// BuildDirectionTable back-projects every pixel of a width x height image through model. The model is
// rescaled when its native resolution differs. The build fails only when the model is malformed;
// pixels without a ray are NaN.
func BuildDirectionTable(ctx context.Context, model *CameraModel, width, height int) (*DirectionTable, error) {
	if err := model.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "cannot build direction table")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid direction table size %dx%d", width, height)
	}
	scaled, err := model.Scaled(width, height)
	if err != nil {
		return nil, err
	}

	table := &DirectionTable{width: width, height: height, data: make([]r2.Point, width*height)}
	err = utils.GroupWorkParallel(ctx, height, func(groupNum, groupSize, from, to int) utils.MemberWorkFunc {
		return func(memberNum, y int) {
			row := table.data[y*width : (y+1)*width]
			for x := range row {
				p, ok := scaled.unproject(float64(x), float64(y))
				if !ok {
					p = invalidDirection()
				}
				row[x] = p
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func invalidDirection() r2.Point {
	return r2.Point{X: math.NaN(), Y: math.NaN()}
}

// Width returns the horizontal size of the table.
func (t *DirectionTable) Width() int {
	return t.width
}

// Height returns the vertical size of the table.
func (t *DirectionTable) Height() int {
	return t.height
}

// Len is the number of entries.
func (t *DirectionTable) Len() int {
	return len(t.data)
}

// Index returns the entry at row-major position i.
func (t *DirectionTable) Index(i int) r2.Point {
	return t.data[i]
}

// At returns the direction of pixel (x, y).
func (t *DirectionTable) At(x, y int) r2.Point {
	return t.data[y*t.width+x]
}

// Valid reports whether pixel (x, y) has a ray.
func (t *DirectionTable) Valid(x, y int) bool {
	p := t.At(x, y)
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y)
}

// ValidCount is the number of pixels with a ray.
func (t *DirectionTable) ValidCount() int {
	n := 0
	for _, p := range t.data {
		if !math.IsNaN(p.X) && !math.IsNaN(p.Y) {
			n++
		}
	}
	return n
}

// Data returns a copy of the row-major entries.
func (t *DirectionTable) Data() []r2.Point {
	out := make([]r2.Point, len(t.data))
	copy(out, t.data)
	return out
}

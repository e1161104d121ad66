package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// rotations further than this from orthonormal are rejected.
const rotationTolerance = 1e-3

// Extrinsics is the rigid transform from one camera's frame into another's.
type Extrinsics struct {
	// Rotation is a row-major 3x3 rotation matrix.
	Rotation [9]float64 `json:"rotation"`
	// Translation is in millimeters.
	Translation [3]float64 `json:"translation_mm"`
}

// IdentityExtrinsics maps every point onto itself.
func IdentityExtrinsics() *Extrinsics {
	return &Extrinsics{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// RotationMatrix returns the rotation as a gonum matrix.
func (e *Extrinsics) RotationMatrix() *mat.Dense {
	data := make([]float64, 9)
	copy(data, e.Rotation[:])
	return mat.NewDense(3, 3, data)
}

// CheckValid checks that the rotation is a proper rotation and every value is finite.
func (e *Extrinsics) CheckValid() error {
	if e == nil {
		return errors.New("extrinsics do not exist")
	}
	for _, v := range append(e.Rotation[:], e.Translation[:]...) {
		if !isFinite(v) {
			return errors.New("extrinsics must be finite")
		}
	}
	rot := e.RotationMatrix()
	if det := mat.Det(rot); math.Abs(det-1) > rotationTolerance {
		return errors.Errorf("extrinsic rotation has determinant %v, expected 1", det)
	}
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	identity := mat.NewDiagDense(3, []float64{1, 1, 1})
	if !mat.EqualApprox(&rtr, identity, rotationTolerance) {
		return errors.New("extrinsic rotation is not orthonormal")
	}
	return nil
}

// Apply transforms p from the source frame into the destination frame.
func (e *Extrinsics) Apply(p r3.Vector) r3.Vector {
	r := &e.Rotation
	return r3.Vector{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z + e.Translation[0],
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z + e.Translation[1],
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z + e.Translation[2],
	}
}

// Inverse returns the transform from the destination frame back into the source frame.
func (e *Extrinsics) Inverse() (*Extrinsics, error) {
	if err := e.CheckValid(); err != nil {
		return nil, err
	}
	var inv mat.Dense
	if err := inv.Inverse(e.RotationMatrix()); err != nil {
		return nil, errors.Wrap(err, "cannot invert extrinsic rotation")
	}
	t := mat.NewVecDense(3, []float64{e.Translation[0], e.Translation[1], e.Translation[2]})
	var invT mat.VecDense
	invT.MulVec(&inv, t)

	ret := &Extrinsics{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ret.Rotation[3*i+j] = inv.At(i, j)
		}
		ret.Translation[i] = -invT.AtVec(i)
	}
	return ret, nil
}

package transform

import (
	"math"

	"github.com/pkg/errors"
)

// BrownConrady is the forward Brown-Conrady lens model:
//
//	x_d = x * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x*y + p1*(r² + 2*y²)
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	RadialK3     float64 `json:"rk3"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats (k1, k2, k3, p1, p2) that will be passed into the struct in order.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		return nil, errors.Errorf("list of parameters too long, expected max 5, got %d", len(inp))
	}
	params := make([]float64, 5)
	copy(params, inp)
	bc := &BrownConrady{params[0], params[1], params[2], params[3], params[4]}
	if err := bc.CheckValid(); err != nil {
		return nil, err
	}
	return bc, nil
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("BrownConrady parameters must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.RadialK3, bc.TangentialP1, bc.TangentialP2}
}

// Transform distorts the normalized point (x, y).
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2
	radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
	tanDistX := 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
	tanDistY := 2.0*bc.TangentialP2*x*y + bc.TangentialP1*(r2+2.0*y*y)
	return x*radDist + tanDistX, y*radDist + tanDistY
}

// Jacobian returns the partial derivatives of Transform at (x, y).
func (bc *BrownConrady) Jacobian(x, y float64) (float64, float64, float64, float64) {
	r2 := x*x + y*y
	r4 := r2 * r2
	radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
	dRad := bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4
	dRadDx := 2.0 * x * dRad
	dRadDy := 2.0 * y * dRad

	dxdx := radDist + x*dRadDx + 2.0*bc.TangentialP1*y + 6.0*bc.TangentialP2*x
	dxdy := x*dRadDy + 2.0*bc.TangentialP1*x + 2.0*bc.TangentialP2*y
	dydx := y*dRadDx + 2.0*bc.TangentialP2*y + 2.0*bc.TangentialP1*x
	dydy := radDist + y*dRadDy + 2.0*bc.TangentialP2*x + 6.0*bc.TangentialP1*y
	return dxdx, dxdy, dydx, dydy
}

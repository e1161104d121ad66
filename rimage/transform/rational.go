package transform

import (
	"math"

	"github.com/pkg/errors"
)

// Rational is the rational polynomial lens model with a shifted distortion center:
//
//	x' = x - codx, y' = y - cody, r² = x'² + y'²
//	d  = (1 + k1*r² + k2*r⁴ + k3*r⁶) / (1 + k4*r² + k5*r⁴ + k6*r⁶)
//	x_d = x'*d + 2*p1*x'*y' + p2*(r² + 2*x'²) + codx
//	y_d = y'*d + 2*p2*x'*y' + p1*(r² + 2*y'²) + cody
type Rational struct {
	K1   float64 `json:"k1"`
	K2   float64 `json:"k2"`
	K3   float64 `json:"k3"`
	K4   float64 `json:"k4"`
	K5   float64 `json:"k5"`
	K6   float64 `json:"k6"`
	P1   float64 `json:"p1"`
	P2   float64 `json:"p2"`
	CodX float64 `json:"codx"`
	CodY float64 `json:"cody"`
}

const rationalParameterCount = 10

// denominators closer to zero than this make the model undefined.
const minRationalDenominator = 1e-12

// NewRational takes (k1..k6, p1, p2, codx, cody) in order. Missing trailing values are zero.
func NewRational(inp []float64) (*Rational, error) {
	if len(inp) > rationalParameterCount {
		return nil, errors.Errorf("list of parameters too long, expected max %d, got %d", rationalParameterCount, len(inp))
	}
	p := make([]float64, rationalParameterCount)
	copy(p, inp)
	r := &Rational{p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7], p[8], p[9]}
	if err := r.CheckValid(); err != nil {
		return nil, err
	}
	return r, nil
}

// CheckValid checks if the fields for Rational have valid inputs.
func (r *Rational) CheckValid() error {
	if r == nil {
		return InvalidDistortionError("Rational shaped distortion_parameters not provided")
	}
	for _, p := range r.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("Rational parameters must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (r *Rational) ModelType() DistortionType {
	return RationalDistortionType
}

// Parameters returns the parameters of the distortion model as a list of floats.
func (r *Rational) Parameters() []float64 {
	if r == nil {
		return []float64{}
	}
	return []float64{r.K1, r.K2, r.K3, r.K4, r.K5, r.K6, r.P1, r.P2, r.CodX, r.CodY}
}

// Transform distorts the normalized point (x, y). It returns NaN where the radial term is undefined.
func (r *Rational) Transform(x, y float64) (float64, float64) {
	if r == nil {
		return x, y
	}
	xp := x - r.CodX
	yp := y - r.CodY
	rs := xp*xp + yp*yp
	rss := rs * rs
	rsc := rss * rs
	num := 1 + r.K1*rs + r.K2*rss + r.K3*rsc
	den := 1 + r.K4*rs + r.K5*rss + r.K6*rsc
	if math.Abs(den) < minRationalDenominator {
		return math.NaN(), math.NaN()
	}
	d := num / den
	xd := xp*d + 2*r.P1*xp*yp + r.P2*(rs+2*xp*xp) + r.CodX
	yd := yp*d + 2*r.P2*xp*yp + r.P1*(rs+2*yp*yp) + r.CodY
	return xd, yd
}

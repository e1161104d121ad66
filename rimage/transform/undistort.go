package transform

import "math"

const (
	undistortMaxIterations = 20
	undistortTolerance     = 1e-10
	// step for central differences when a model has no analytic Jacobian.
	jacobianStep = 1e-7
)

// Undistort inverts the forward model of d: given distorted normalized coordinates it finds the
// undistorted coordinates that d maps onto them, using Newton-Raphson iterations seeded with the
// distorted point. ok is false when the iteration does not converge, hits a singular Jacobian, or
// produces non-finite values. A nil Distorter is the identity.
func Undistort(d Distorter, xd, yd float64) (xu, yu float64, ok bool) {
	if d == nil {
		return xd, yd, true
	}
	if !isFinite(xd) || !isFinite(yd) {
		return math.NaN(), math.NaN(), false
	}
	jd, hasJacobian := d.(jacobianDistorter)

	xu, yu = xd, yd
	for i := 0; i < undistortMaxIterations; i++ {
		xdEst, ydEst := d.Transform(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if !isFinite(errX) || !isFinite(errY) {
			return math.NaN(), math.NaN(), false
		}
		if errX*errX+errY*errY < undistortTolerance*undistortTolerance {
			return xu, yu, true
		}

		var dxdx, dxdy, dydx, dydy float64
		if hasJacobian {
			dxdx, dxdy, dydx, dydy = jd.Jacobian(xu, yu)
		} else {
			dxdx, dxdy, dydx, dydy = numericJacobian(d, xu, yu)
		}
		det := dxdx*dydy - dxdy*dydx
		if det == 0 || !isFinite(det) {
			return math.NaN(), math.NaN(), false
		}
		xu -= (dydy*errX - dxdy*errY) / det
		yu -= (-dydx*errX + dxdx*errY) / det
		if !isFinite(xu) || !isFinite(yu) {
			return math.NaN(), math.NaN(), false
		}
	}

	// the last update may have landed within tolerance
	xdEst, ydEst := d.Transform(xu, yu)
	errX := xdEst - xd
	errY := ydEst - yd
	if errX*errX+errY*errY < undistortTolerance*undistortTolerance {
		return xu, yu, true
	}
	return math.NaN(), math.NaN(), false
}

func numericJacobian(d Distorter, x, y float64) (float64, float64, float64, float64) {
	xpx, ypx := d.Transform(x+jacobianStep, y)
	xmx, ymx := d.Transform(x-jacobianStep, y)
	xpy, ypy := d.Transform(x, y+jacobianStep)
	xmy, ymy := d.Transform(x, y-jacobianStep)
	return (xpx - xmx) / (2 * jacobianStep), (xpy - xmy) / (2 * jacobianStep),
		(ypx - ymx) / (2 * jacobianStep), (ypy - ymy) / (2 * jacobianStep)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

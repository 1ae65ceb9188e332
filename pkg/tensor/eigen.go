package tensor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RootKind reports the multiplicity pattern of the characteristic cubic's
// roots, as found by the closed-form solver.
type RootKind int

const (
	RootUnknown RootKind = iota
	// RootThree means three distinct real roots.
	RootThree
	// RootSingleDouble means one single and one repeated root.
	RootSingleDouble
	// RootTriple means all three roots coincide (isotropic tensor).
	RootTriple
)

func (k RootKind) String() string {
	switch k {
	case RootThree:
		return "three"
	case RootSingleDouble:
		return "single-double"
	case RootTriple:
		return "triple"
	default:
		return "unknown"
	}
}

const (
	// rootEpsilon bounds the cubic discriminant R^2-Q^3 of the unit-norm
	// deviator below which two roots are taken as equal.
	rootEpsilon = 1e-11

	// isotropicEpsilon is the deviator norm, relative to the mean
	// diffusivity, below which a tensor is treated as isotropic.
	isotropicEpsilon = 1e-12
)

// Eigensystem is the eigendecomposition of a tensor. Values are sorted in
// descending order and Vectors[i] belongs to Values[i]. The vectors form an
// orthonormal right-handed frame.
type Eigensystem struct {
	Values  [3]float64
	Vectors [3]r3.Vec
	Roots   RootKind
}

// Major returns the eigenvector of the largest eigenvalue.
func (e Eigensystem) Major() r3.Vec { return e.Vectors[0] }

// sym holds the six unique entries of a symmetric matrix in tensor order.
type sym [6]float64

func (m sym) row(i int) r3.Vec {
	switch i {
	case 0:
		return r3.Vec{X: m[0], Y: m[1], Z: m[2]}
	case 1:
		return r3.Vec{X: m[1], Y: m[3], Z: m[4]}
	default:
		return r3.Vec{X: m[2], Y: m[4], Z: m[5]}
	}
}

func (m sym) shift(s float64) sym {
	m[0] -= s
	m[3] -= s
	m[5] -= s
	return m
}

// deviator splits t into its mean diffusivity, the Frobenius norm of the
// deviatoric part, and the deviatoric part scaled to unit norm. The scaling
// makes the root classification independent of the tensor's magnitude.
func deviator(t Tensor) (mean, norm float64, d sym) {
	mean = t.Trace() / 3
	d = sym{t[XX] - mean, t[XY], t[XZ], t[YY] - mean, t[YZ], t[ZZ] - mean}
	norm = math.Sqrt(d[0]*d[0] + d[3]*d[3] + d[5]*d[5] +
		2*(d[1]*d[1]+d[2]*d[2]+d[4]*d[4]))
	if norm == 0 || norm <= isotropicEpsilon*math.Abs(mean) {
		return mean, 0, sym{}
	}
	for i := range d {
		d[i] /= norm
	}
	return mean, norm, d
}

// cubicRoots solves the characteristic cubic of a traceless unit-norm
// symmetric matrix, x^3 + p x + q = 0, and returns the roots in descending
// order together with their multiplicity pattern.
func cubicRoots(d sym) ([3]float64, RootKind) {
	p := d[0]*d[3] + d[0]*d[5] + d[3]*d[5] - d[1]*d[1] - d[2]*d[2] - d[4]*d[4]
	q := -(d[0]*(d[3]*d[5]-d[4]*d[4]) -
		d[1]*(d[1]*d[5]-d[4]*d[2]) +
		d[2]*(d[1]*d[4]-d[3]*d[2]))

	Q := -p / 3
	R := q / 2
	if Q <= 0 {
		return [3]float64{}, RootTriple
	}
	QQQ := Q * Q * Q
	D := R*R - QQQ

	if D < -rootEpsilon {
		theta := math.Acos(math.Max(-1, math.Min(1, -R/math.Sqrt(QQQ)))) / 3
		s := 2 * math.Sqrt(Q)
		roots := [3]float64{
			s * math.Cos(theta),
			s * math.Cos(theta-2*math.Pi/3),
			s * math.Cos(theta+2*math.Pi/3),
		}
		sortDesc(&roots)
		return roots, RootThree
	}

	// A symmetric matrix has only real roots, so a positive D is rounding
	// error around a repeated root.
	single := 3 * q / p
	double := -3 * q / (2 * p)
	if single > double {
		return [3]float64{single, double, double}, RootSingleDouble
	}
	return [3]float64{double, double, single}, RootSingleDouble
}

func sortDesc(v *[3]float64) {
	if v[0] < v[1] {
		v[0], v[1] = v[1], v[0]
	}
	if v[1] < v[2] {
		v[1], v[2] = v[2], v[1]
	}
	if v[0] < v[1] {
		v[0], v[1] = v[1], v[0]
	}
}

// Eigenvalues returns the eigenvalues of t in descending order without
// computing eigenvectors.
func Eigenvalues(t Tensor) ([3]float64, RootKind) {
	mean, norm, d := deviator(t)
	if norm == 0 {
		return [3]float64{mean, mean, mean}, RootTriple
	}
	roots, kind := cubicRoots(d)
	if kind == RootTriple {
		return [3]float64{mean, mean, mean}, RootTriple
	}
	for i := range roots {
		roots[i] = mean + norm*roots[i]
	}
	return roots, kind
}

// Eigensolve computes the eigenvalues and eigenvectors of t. It never fails:
// physically invalid tensors (negative eigenvalues) are decomposed like any
// other symmetric matrix.
func Eigensolve(t Tensor) Eigensystem {
	mean, norm, d := deviator(t)
	if norm == 0 {
		return isotropic(mean)
	}
	roots, kind := cubicRoots(d)
	es := Eigensystem{Roots: kind}

	switch kind {
	case RootThree:
		e0 := nullspace1(d.shift(roots[0]))
		e1 := nullspace1(d.shift(roots[1]))
		e1 = unit(r3.Sub(e1, r3.Scale(r3.Dot(e1, e0), e0)))
		e2 := nullspace1(d.shift(roots[2]))
		if r3.Dot(r3.Cross(e0, e1), e2) < 0 {
			e2 = r3.Scale(-1, e2)
		}
		es.Vectors = [3]r3.Vec{e0, e1, e2}
	case RootSingleDouble:
		if roots[0] > roots[1] {
			// single root is the largest
			e0 := nullspace1(d.shift(roots[0]))
			e1 := perp(e0)
			es.Vectors = [3]r3.Vec{e0, e1, unit(r3.Cross(e0, e1))}
		} else {
			single := nullspace1(d.shift(roots[2]))
			e0 := perp(single)
			e1 := unit(r3.Cross(single, e0))
			es.Vectors = [3]r3.Vec{e0, e1, unit(r3.Cross(e0, e1))}
		}
	default:
		return isotropic(mean)
	}
	for i := range roots {
		es.Values[i] = mean + norm*roots[i]
	}
	return es
}

func isotropic(mean float64) Eigensystem {
	return Eigensystem{
		Values: [3]float64{mean, mean, mean},
		Vectors: [3]r3.Vec{
			{X: 1},
			{Y: 1},
			{Z: 1},
		},
		Roots: RootTriple,
	}
}

// nullspace1 returns a unit vector spanning the null space of a rank-2
// symmetric matrix. Every pair of rows gives a candidate through their cross
// product; the candidates are sign-aligned to the longest one and summed.
func nullspace1(m sym) r3.Vec {
	r0, r1, r2 := m.row(0), m.row(1), m.row(2)
	c := [3]r3.Vec{r3.Cross(r0, r1), r3.Cross(r0, r2), r3.Cross(r1, r2)}
	best := 0
	for i := 1; i < 3; i++ {
		if r3.Norm2(c[i]) > r3.Norm2(c[best]) {
			best = i
		}
	}
	if r3.Norm2(c[best]) == 0 {
		return r3.Vec{X: 1}
	}
	var sum r3.Vec
	for i := range c {
		if r3.Dot(c[i], c[best]) < 0 {
			sum = r3.Sub(sum, c[i])
		} else {
			sum = r3.Add(sum, c[i])
		}
	}
	return unit(sum)
}

// perp returns a unit vector perpendicular to v, built against the axis
// where v has its smallest component.
func perp(v r3.Vec) r3.Vec {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	var axis r3.Vec
	switch {
	case ax <= ay && ax <= az:
		axis = r3.Vec{X: 1}
	case ay <= az:
		axis = r3.Vec{Y: 1}
	default:
		axis = r3.Vec{Z: 1}
	}
	return unit(r3.Cross(v, axis))
}

func unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}

package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Aniso identifies a scalar anisotropy or invariant metric computed from a
// sorted eigenvalue triple.
type Aniso int

const (
	AnisoUnknown Aniso = iota
	Cl1                // Westin linear, normalized by trace
	Cp1                // Westin planar, normalized by trace
	Ca1                // Cl1 + Cp1
	Clpmin1            // min(Cl1, Cp1)
	Cs1                // Westin spherical, normalized by trace
	Ct1                // Cp1 / Ca1
	Cl2                // Westin linear, normalized by largest eigenvalue
	Cp2                // Westin planar, normalized by largest eigenvalue
	Ca2                // Cl2 + Cp2
	Clpmin2            // min(Cl2, Cp2)
	Cs2                // Westin spherical, normalized by largest eigenvalue
	Ct2                // Cp2 / Ca2
	RA                 // relative anisotropy
	FA                 // fractional anisotropy
	VF                 // volume fraction
	B                  // second principal invariant
	Q                  // variance invariant, (S-B)/9
	R                  // skewness invariant
	S                  // squared Frobenius norm
	Skew               // R/sqrt(2 Q^3)
	Mode               // normalized third moment of the deviator
	Th                 // acos(sqrt(2) Skew)/3
	Omega              // FA*(1+Mode)/2
	Det                // product of eigenvalues
	Tr                 // sum of eigenvalues
	Eval0              // largest eigenvalue
	Eval1              // middle eigenvalue
	Eval2              // smallest eigenvalue
	anisoLast
)

// AnisoCount is the length of an AnisoVector. Index 0 (AnisoUnknown) is unused.
const AnisoCount = int(anisoLast)

// anisoEpsilon pads the denominators of the normalized metrics so that an
// all-zero eigenvalue triple yields zero instead of NaN.
const anisoEpsilon = 1e-10

var anisoNames = [...]string{
	AnisoUnknown: "unknown",
	Cl1:          "cl1",
	Cp1:          "cp1",
	Ca1:          "ca1",
	Clpmin1:      "clpmin1",
	Cs1:          "cs1",
	Ct1:          "ct1",
	Cl2:          "cl2",
	Cp2:          "cp2",
	Ca2:          "ca2",
	Clpmin2:      "clpmin2",
	Cs2:          "cs2",
	Ct2:          "ct2",
	RA:           "ra",
	FA:           "fa",
	VF:           "vf",
	B:            "b",
	Q:            "q",
	R:            "r",
	S:            "s",
	Skew:         "skew",
	Mode:         "mode",
	Th:           "th",
	Omega:        "omega",
	Det:          "det",
	Tr:           "tr",
	Eval0:        "eval0",
	Eval1:        "eval1",
	Eval2:        "eval2",
}

func (a Aniso) String() string {
	if a < 0 || a >= anisoLast {
		return fmt.Sprintf("Aniso(%d)", int(a))
	}
	return anisoNames[a]
}

// Valid reports whether a names a real metric.
func (a Aniso) Valid() bool {
	return a > AnisoUnknown && a < anisoLast
}

// Normalized reports whether the metric is invariant under a uniform
// positive scaling of the eigenvalues.
func (a Aniso) Normalized() bool {
	switch a {
	case B, Q, R, S, Det, Tr, Eval0, Eval1, Eval2:
		return false
	}
	return a.Valid()
}

// ParseAniso looks a metric up by its lower-case name ("fa", "cl1", ...).
func ParseAniso(name string) (Aniso, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := Cl1; i < anisoLast; i++ {
		if anisoNames[i] == name {
			return i, nil
		}
	}
	return AnisoUnknown, fmt.Errorf("unknown anisotropy metric %q", name)
}

// AnisoVector holds every metric for one eigenvalue triple, indexed by Aniso.
type AnisoVector [AnisoCount]float64

// Eval computes a single metric from eigenvalues sorted in descending order.
// Unlike Calc, the result is not clamped: FA, RA and VF of a tensor with
// negative eigenvalues may leave [0,1].
func Eval(a Aniso, e [3]float64) float64 {
	e0, e1, e2 := e[0], e[1], e[2]
	sum := e0 + e1 + e2
	switch a {
	case Cl1:
		return (e0 - e1) / (anisoEpsilon + sum)
	case Cp1:
		return 2 * (e1 - e2) / (anisoEpsilon + sum)
	case Ca1:
		return (e0 + e1 - 2*e2) / (anisoEpsilon + sum)
	case Clpmin1:
		return math.Min(Eval(Cl1, e), Eval(Cp1, e))
	case Cs1:
		return 3 * e2 / (anisoEpsilon + sum)
	case Ct1:
		return Eval(Cp1, e) / (anisoEpsilon + Eval(Ca1, e))
	case Cl2:
		return (e0 - e1) / (anisoEpsilon + e0)
	case Cp2:
		return (e1 - e2) / (anisoEpsilon + e0)
	case Ca2:
		return (e0 - e2) / (anisoEpsilon + e0)
	case Clpmin2:
		return math.Min(Eval(Cl2, e), Eval(Cp2, e))
	case Cs2:
		return e2 / (anisoEpsilon + e0)
	case Ct2:
		return Eval(Cp2, e) / (anisoEpsilon + Eval(Ca2, e))
	case RA:
		mean := sum / 3
		return math.Sqrt(devSquares(e)) / (anisoEpsilon + math.Sqrt(6)*mean)
	case FA:
		sq := e0*e0 + e1*e1 + e2*e2
		if sq == 0 {
			return 0
		}
		return math.Sqrt(3 * devSquares(e) / (2 * sq))
	case VF:
		mean := sum / 3
		return 1 - e0*e1*e2/(anisoEpsilon+mean*mean*mean)
	case B:
		return e0*e1 + e0*e2 + e1*e2
	case Q:
		return (Eval(S, e) - Eval(B, e)) / 9
	case R:
		return (2*sum*sum*sum - 9*sum*Eval(B, e) + 27*e0*e1*e2) / 54
	case S:
		return e0*e0 + e1*e1 + e2*e2
	case Skew:
		q := Eval(Q, e)
		return Eval(R, e) / (anisoEpsilon + math.Sqrt(2*q*q*q))
	case Mode:
		mean := sum / 3
		d0, d1, d2 := e0-mean, e1-mean, e2-mean
		n := math.Sqrt(devSquares(e))
		return 3 * math.Sqrt(6) * d0 * d1 * d2 / (anisoEpsilon + n*n*n)
	case Th:
		return math.Acos(math.Max(-1, math.Min(1, math.Sqrt2*Eval(Skew, e)))) / 3
	case Omega:
		return Eval(FA, e) * (1 + Eval(Mode, e)) / 2
	case Det:
		return e0 * e1 * e2
	case Tr:
		return sum
	case Eval0:
		return e0
	case Eval1:
		return e1
	case Eval2:
		return e2
	}
	return math.NaN()
}

// Calc computes every metric for a descending eigenvalue triple. FA, RA and
// VF are clamped to [0,1] here; Eval leaves them unclamped.
func Calc(e [3]float64) AnisoVector {
	var v AnisoVector
	for a := Cl1; a < anisoLast; a++ {
		v[a] = Eval(a, e)
	}
	for _, a := range []Aniso{FA, RA, VF} {
		v[a] = math.Max(0, math.Min(1, v[a]))
	}
	return v
}

func devSquares(e [3]float64) float64 {
	mean := (e[0] + e[1] + e[2]) / 3
	d0, d1, d2 := e[0]-mean, e[1]-mean, e[2]-mean
	return d0*d0 + d1*d1 + d2*d2
}

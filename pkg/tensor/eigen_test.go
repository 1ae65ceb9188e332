package tensor

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// randomFrame returns a random orthonormal right-handed frame.
func randomFrame(rng *rand.Rand) [3]r3.Vec {
	a := unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
	b := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
	b = unit(r3.Sub(b, r3.Scale(r3.Dot(a, b), a)))
	return [3]r3.Vec{a, b, r3.Cross(a, b)}
}

func checkFrame(t *testing.T, es Eigensystem, tol float64) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if n := r3.Norm(es.Vectors[i]); math.Abs(n-1) > tol {
			t.Errorf("vector %d has norm %g", i, n)
		}
		for j := i + 1; j < 3; j++ {
			if d := r3.Dot(es.Vectors[i], es.Vectors[j]); math.Abs(d) > tol {
				t.Errorf("vectors %d and %d not orthogonal: dot %g", i, j, d)
			}
		}
	}
	triple := r3.Dot(r3.Cross(es.Vectors[0], es.Vectors[1]), es.Vectors[2])
	if math.Abs(triple-1) > tol {
		t.Errorf("frame is not right-handed: triple product %g", triple)
	}
	if es.Values[0] < es.Values[1] || es.Values[1] < es.Values[2] {
		t.Errorf("eigenvalues not descending: %v", es.Values)
	}
}

// referenceValues solves the same tensor with gonum's iterative solver and
// returns the eigenvalues in descending order.
func referenceValues(t Tensor) [3]float64 {
	s := mat.NewSymDense(3, []float64{
		t[XX], t[XY], t[XZ],
		t[XY], t[YY], t[YZ],
		t[XZ], t[YZ], t[ZZ],
	})
	var es mat.EigenSym
	if !es.Factorize(s, false) {
		panic("reference factorization failed")
	}
	v := es.Values(nil)
	return [3]float64{v[2], v[1], v[0]}
}

func TestEigensolveRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 200; n++ {
		evals := [3]float64{
			1 + rng.Float64(),
			0.4 + 0.5*rng.Float64(),
			-0.3 + 0.6*rng.Float64(),
		}
		ten := FromEigen(1, evals, randomFrame(rng))

		es := Eigensolve(ten)
		if es.Roots != RootThree {
			t.Fatalf("case %d: expected three distinct roots, got %v", n, es.Roots)
		}
		checkFrame(t, es, 1e-9)

		want := referenceValues(ten)
		for i := 0; i < 3; i++ {
			if math.Abs(es.Values[i]-want[i]) > 1e-10 {
				t.Errorf("case %d: eigenvalue %d = %.12f, want %.12f", n, i, es.Values[i], want[i])
			}
		}

		// A v = lambda v for every pair.
		for i := 0; i < 3; i++ {
			av := ten.MulVec(es.Vectors[i])
			lv := r3.Scale(es.Values[i], es.Vectors[i])
			if d := r3.Norm(r3.Sub(av, lv)); d > 1e-9 {
				t.Errorf("case %d: residual for pair %d is %g", n, i, d)
			}
		}
	}
}

func TestEigensolveSingleDouble(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	testCases := []struct {
		name  string
		evals [3]float64
	}{
		{"linear", [3]float64{1.0, 0.1, 0.1}},
		{"planar", [3]float64{1.0, 1.0, 0.2}},
		{"scaled linear", [3]float64{1.7e-3, 3e-4, 3e-4}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := randomFrame(rng)
			ten := FromEigen(1, tc.evals, frame)
			es := Eigensolve(ten)

			if es.Roots != RootSingleDouble {
				t.Fatalf("expected single-double roots, got %v", es.Roots)
			}
			checkFrame(t, es, 1e-9)

			c := r3.Cross(es.Vectors[0], es.Vectors[1])
			want := r3.Scale(1/r3.Norm(c), c)
			if es.Vectors[2] != want {
				t.Errorf("third vector %v is not the normalized cross product %v", es.Vectors[2], want)
			}

			for i := 0; i < 3; i++ {
				if math.Abs(es.Values[i]-tc.evals[i]) > 1e-9*math.Max(1, tc.evals[0]) {
					t.Errorf("eigenvalue %d = %g, want %g", i, es.Values[i], tc.evals[i])
				}
			}

			// The distinct eigenvector must match the input axis up to sign.
			if tc.evals[0] > tc.evals[1] {
				if d := math.Abs(r3.Dot(es.Vectors[0], frame[0])); math.Abs(d-1) > 1e-9 {
					t.Errorf("major vector misaligned: |dot| = %g", d)
				}
			} else {
				if d := math.Abs(r3.Dot(es.Vectors[2], frame[2])); math.Abs(d-1) > 1e-9 {
					t.Errorf("minor vector misaligned: |dot| = %g", d)
				}
			}
		})
	}
}

func TestEigensolveIsotropic(t *testing.T) {
	for _, ten := range []Tensor{Diagonal(2, 2, 2), Diagonal(0, 0, 0), {}} {
		es := Eigensolve(ten)
		if es.Roots != RootTriple {
			t.Errorf("%v: expected triple root, got %v", ten, es.Roots)
		}
		checkFrame(t, es, 0)
		mean := ten.Trace() / 3
		for i := 0; i < 3; i++ {
			if es.Values[i] != mean {
				t.Errorf("%v: eigenvalue %d = %g, want %g", ten, i, es.Values[i], mean)
			}
		}
	}
}

func TestEigenvaluesMatchEigensolve(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for n := 0; n < 50; n++ {
		var ten Tensor
		for i := XX; i <= ZZ; i++ {
			ten[i] = rng.NormFloat64()
		}
		vals, kind := Eigenvalues(ten)
		es := Eigensolve(ten)
		if kind != es.Roots {
			t.Errorf("case %d: root kinds differ: %v vs %v", n, kind, es.Roots)
		}
		for i := 0; i < 3; i++ {
			if vals[i] != es.Values[i] {
				t.Errorf("case %d: eigenvalue %d differs: %g vs %g", n, i, vals[i], es.Values[i])
			}
		}
	}
}

func TestEigensolveAxisAligned(t *testing.T) {
	es := Eigensolve(Diagonal(0.2, 3, 1))
	want := [3]float64{3, 1, 0.2}
	for i := range want {
		if math.Abs(es.Values[i]-want[i]) > 1e-12 {
			t.Errorf("eigenvalue %d = %g, want %g", i, es.Values[i], want[i])
		}
	}
	if math.Abs(math.Abs(es.Vectors[0].Y)-1) > 1e-12 {
		t.Errorf("major eigenvector %v is not along Y", es.Vectors[0])
	}
	if math.Abs(math.Abs(es.Vectors[2].X)-1) > 1e-12 {
		t.Errorf("minor eigenvector %v is not along X", es.Vectors[2])
	}
}

func TestMajorOnReturnedValue(t *testing.T) {
	major := Eigensolve(Diagonal(0.2, 3, 1)).Major()
	if math.Abs(math.Abs(major.Y)-1) > 1e-12 {
		t.Errorf("major eigenvector %v is not along Y", major)
	}
}

package interpolation

import (
	"math"
	"testing"
)

// TestKernelPartitionOfUnity checks that the weights of every kernel sum to
// one at arbitrary offsets, which is what makes constant fields reproduce
// exactly.
func TestKernelPartitionOfUnity(t *testing.T) {
	kernels := []Kernel{Box{}, Tent{}, CatmullRom(), BSpline(), BCCubic{B: 1.0 / 3, C: 1.0 / 3}}
	offsets := []float64{0, 0.1, 0.25, 0.5, 0.73, 0.999}

	for _, k := range kernels {
		t.Run(k.Name(), func(t *testing.T) {
			for _, x := range offsets {
				sum := 0.0
				for i := -3; i <= 3; i++ {
					sum += k.Eval(x - float64(i))
				}
				if math.Abs(sum-1) > 1e-12 {
					t.Errorf("weights at offset %g sum to %.15f", x, sum)
				}
			}
		})
	}
}

func TestKernelSupport(t *testing.T) {
	for _, k := range []Kernel{Box{}, Tent{}, CatmullRom(), BSpline()} {
		s := k.Support()
		for _, x := range []float64{s, s + 0.1, -s - 0.1, 10} {
			if w := k.Eval(x); w != 0 {
				t.Errorf("%s: Eval(%g) = %g outside support %g", k.Name(), x, w, s)
			}
		}
	}
}

// TestKernelDerivative compares Deriv with a central difference away from
// the knots.
func TestKernelDerivative(t *testing.T) {
	const h = 1e-6
	offsets := []float64{-1.7, -1.2, -0.6, -0.3, 0.2, 0.45, 0.8, 1.3, 1.9}

	for _, k := range []Kernel{Tent{}, CatmullRom(), BSpline()} {
		t.Run(k.Name(), func(t *testing.T) {
			for _, x := range offsets {
				want := (k.Eval(x+h) - k.Eval(x-h)) / (2 * h)
				if got := k.Deriv(x); math.Abs(got-want) > 1e-5 {
					t.Errorf("Deriv(%g) = %g, want %g", x, got, want)
				}
			}
		})
	}
}

func TestCatmullRomInterpolates(t *testing.T) {
	k := CatmullRom()
	if k.Eval(0) != 1 {
		t.Errorf("Eval(0) = %g, want 1", k.Eval(0))
	}
	for _, x := range []float64{1, -1, 2, -2} {
		if w := k.Eval(x); math.Abs(w) > 1e-15 {
			t.Errorf("Eval(%g) = %g, want 0", x, w)
		}
	}

	// The B-spline smooths instead.
	if w := BSpline().Eval(0); math.Abs(w-2.0/3) > 1e-15 {
		t.Errorf("B-spline Eval(0) = %g, want 2/3", w)
	}
}

func TestParseKernel(t *testing.T) {
	testCases := []struct {
		spec    string
		want    string
		wantErr bool
	}{
		{spec: "box", want: "box"},
		{spec: "Tent", want: "tent"},
		{spec: "linear", want: "tent"},
		{spec: "catmull-rom", want: "cubic:0,0.5"},
		{spec: "bspline", want: "cubic:1,0"},
		{spec: " cubic:0.3333, 0.3333 ", want: "cubic:0.3333,0.3333"},
		{spec: "cubic:1", wantErr: true},
		{spec: "cubic:a,b", wantErr: true},
		{spec: "gauss:1", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.spec, func(t *testing.T) {
			k, err := ParseKernel(tc.spec)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got kernel %s", k.Name())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if k.Name() != tc.want {
				t.Errorf("got %q, want %q", k.Name(), tc.want)
			}

			// Names round-trip.
			again, err := ParseKernel(k.Name())
			if err != nil || again.Name() != k.Name() {
				t.Errorf("name %q does not round-trip: %v", k.Name(), err)
			}
		})
	}
}

package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

func randomPoints(rng *rand.Rand, n int, extent float64) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{X: extent * rng.Float64(), Y: extent * rng.Float64(), Z: extent * rng.Float64()}
	}
	return pts
}

// bruteThin is the quadratic reference for Thin.
func bruteThin(pts []r3.Vec, minDist float64) []int {
	var keep []int
	for i, p := range pts {
		ok := true
		for _, j := range keep {
			if r3.Norm(r3.Sub(p, pts[j])) < minDist {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return keep
}

func TestThinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pts := randomPoints(rng, 400, 10)

	for _, d := range []float64{0.5, 1, 2.5} {
		got := Thin(pts, d)
		want := bruteThin(pts, d)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("minDist %g: kept indices differ (-want +got):\n%s", d, diff)
		}
	}
}

func TestThinGrid(t *testing.T) {
	var pts []r3.Vec
	for x := 0; x < 10; x++ {
		pts = append(pts, r3.Vec{X: float64(x)})
	}
	if got := Thin(pts, 2); len(got) != 5 {
		t.Errorf("kept %d of 10 unit-spaced points at separation 2, want 5: %v", len(got), got)
	}
	if got := Thin(pts, 0); len(got) != 10 {
		t.Errorf("zero separation kept %d points, want all", len(got))
	}
	if got := Thin(nil, 1); len(got) != 0 {
		t.Errorf("thinning nothing returned %v", got)
	}
}

func TestIndexWithin(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	raw := randomPoints(rng, 300, 5)
	pts := make(Points, len(raw))
	for i, p := range raw {
		pts[i] = Point{Vec: p, ID: i}
	}
	idx := NewIndex(append(Points(nil), pts...))
	if idx.Len() != len(pts) {
		t.Fatalf("Len = %d, want %d", idx.Len(), len(pts))
	}

	for q := 0; q < 20; q++ {
		center := randomPoints(rng, 1, 5)[0]
		const r = 1.2

		var want []int
		for _, p := range pts {
			if r3.Norm(r3.Sub(p.Vec, center)) <= r {
				want = append(want, p.ID)
			}
		}
		sort.Ints(want)

		found := idx.Within(center, r)
		var got []int
		for i, nb := range found {
			got = append(got, nb.ID)
			if i > 0 && nb.Dist < found[i-1].Dist {
				t.Errorf("query %d: results not sorted by distance", q)
			}
		}
		sort.Ints(got)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("query %d: ids differ (-want +got):\n%s", q, diff)
		}
	}
}

func TestIndexNearest(t *testing.T) {
	idx := NewIndex(Points{
		{Vec: r3.Vec{X: 0}, ID: 7},
		{Vec: r3.Vec{X: 3}, ID: 8},
		{Vec: r3.Vec{X: 10}, ID: 9},
	})
	nb, ok := idx.Nearest(r3.Vec{X: 4, Y: 0})
	if !ok || nb.ID != 8 || nb.Dist != 1 {
		t.Errorf("Nearest = %+v, %v; want id 8 at distance 1", nb, ok)
	}

	empty := NewIndex(nil)
	if _, ok := empty.Nearest(r3.Vec{}); ok {
		t.Error("empty index returned a nearest point")
	}
	if got := empty.Within(r3.Vec{}, 100); len(got) != 0 {
		t.Errorf("empty index returned %v", got)
	}
}

func TestEndpointIndex(t *testing.T) {
	lines := [][]r3.Vec{
		{{X: 0}, {X: 1}, {X: 2}},
		nil,
		{{Y: 5}},
		{{X: 2.1}, {X: 4}},
	}
	idx := EndpointIndex(lines)
	if idx.Len() != 5 {
		t.Fatalf("indexed %d endpoints, want 5", idx.Len())
	}

	found := idx.Within(r3.Vec{X: 2}, 0.5)
	if len(found) != 2 || found[0].ID != 0 || found[1].ID != 3 {
		t.Errorf("endpoints near x=2: %+v", found)
	}
}

// Package spatial provides kd-tree backed point queries used for seed
// thinning and fiber endpoint lookups.
package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a position tagged with the index of the item it belongs to.
type Point struct {
	r3.Vec
	ID int
}

// Compare implements the kdtree.Comparable interface
func (p Point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.Vec, c.(Point).Vec))
}

// Points is a collection of Point that satisfies kdtree.Interface
type Points []Point

func (p Points) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points) Len() int                              { return len(p) }
func (p Points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points
type pointPlane struct {
	Points
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points[i].X < p.Points[j].X
	case 1:
		return p.Points[i].Y < p.Points[j].Y
	case 2:
		return p.Points[i].Z < p.Points[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points: p.Points[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points[i], p.Points[j] = p.Points[j], p.Points[i]
}

// Thin greedily keeps points, in order, that lie at least minDist from every
// point kept before them. It returns the indices of the kept points.
func Thin(pts []r3.Vec, minDist float64) []int {
	if minDist <= 0 {
		keep := make([]int, len(pts))
		for i := range keep {
			keep[i] = i
		}
		return keep
	}

	limit := minDist * minDist
	tree := &kdtree.Tree{}
	var keep []int
	for i, p := range pts {
		q := Point{Vec: p, ID: i}
		if tree.Root != nil {
			if _, d := tree.Nearest(q); d < limit {
				continue
			}
		}
		tree.Insert(q, false)
		keep = append(keep, i)
	}
	return keep
}

// Neighbor is a point found by a radius query.
type Neighbor struct {
	Point
	Dist float64
}

// Index answers nearest and radius queries over a fixed point set.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index over pts. The slice is reordered.
func NewIndex(pts Points) *Index {
	if len(pts) == 0 {
		return &Index{tree: &kdtree.Tree{}}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(pts)}
}

// EndpointIndex indexes the first and last point of every non-empty
// polyline. Point IDs are polyline indices.
func EndpointIndex(lines [][]r3.Vec) *Index {
	var pts Points
	for i, l := range lines {
		if len(l) == 0 {
			continue
		}
		pts = append(pts, Point{Vec: l[0], ID: i})
		if len(l) > 1 {
			pts = append(pts, Point{Vec: l[len(l)-1], ID: i})
		}
	}
	return NewIndex(pts)
}

// Len returns the number of indexed points.
func (x *Index) Len() int { return x.n }

// Nearest returns the indexed point closest to p and its distance. ok is
// false for an empty index.
func (x *Index) Nearest(p r3.Vec) (nb Neighbor, ok bool) {
	if x.tree.Root == nil {
		return Neighbor{}, false
	}
	c, d := x.tree.Nearest(Point{Vec: p})
	return Neighbor{Point: c.(Point), Dist: math.Sqrt(d)}, true
}

// Within returns the indexed points no farther than r from p, closest
// first.
func (x *Index) Within(p r3.Vec, r float64) []Neighbor {
	if x.tree.Root == nil || r < 0 {
		return nil
	}
	keeper := kdtree.NewDistKeeper(r * r)
	x.tree.NearestSet(keeper, Point{Vec: p})

	out := make([]Neighbor, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		out = append(out, Neighbor{Point: item.Comparable.(Point), Dist: math.Sqrt(item.Dist)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist != out[j].Dist {
			return out[i].Dist < out[j].Dist
		}
		return out[i].ID < out[j].ID
	})
	return out
}

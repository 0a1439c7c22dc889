package collider

import (
	"sort"

	"github.com/roach88/xpbd/internal/vmath"
)

const (
	bihLeafSize = 4
	bihMaxDepth = 32
)

// BIHNode is one node of a bounding interval hierarchy. Inner nodes split
// their box along Axis into a left child ending at Left and a right child
// starting at Right; the intervals may overlap. Leaves have Axis -1 and own
// Order[Start:Start+Count].
type BIHNode struct {
	Axis  int
	Left  float64
	Right float64
	Child int
	Start int
	Count int
}

// BIH is a bounding interval hierarchy over a set of primitive bounds.
type BIH struct {
	Nodes  []BIHNode
	Order  []int
	Bounds vmath.AABB
}

// BuildBIH builds a hierarchy over bounds. Primitive i is reported by
// queries as index i.
func BuildBIH(bounds []vmath.AABB) *BIH {
	b := &BIH{Order: make([]int, len(bounds)), Bounds: vmath.EmptyAABB()}
	for i, bb := range bounds {
		b.Order[i] = i
		b.Bounds = b.Bounds.EncapsulateBounds(bb)
	}
	if len(bounds) == 0 {
		return b
	}
	b.Nodes = append(b.Nodes, BIHNode{})
	b.build(0, bounds, 0, len(bounds), b.Bounds, 0)
	return b
}

func (b *BIH) build(node int, bounds []vmath.AABB, start, count int, box vmath.AABB, depth int) {
	if count <= bihLeafSize || depth >= bihMaxDepth {
		b.Nodes[node] = BIHNode{Axis: -1, Start: start, Count: count}
		return
	}

	axis := box.LongestAxis()
	prims := b.Order[start : start+count]
	split := box.Center()[axis]

	// Partition by centroid against the spatial midpoint; fall back to the
	// centroid median when everything lands on one side.
	mid := 0
	for k := range prims {
		if bounds[prims[k]].Center()[axis] < split {
			prims[k], prims[mid] = prims[mid], prims[k]
			mid++
		}
	}
	if mid == 0 || mid == count {
		sort.SliceStable(prims, func(x, y int) bool {
			return bounds[prims[x]].Center()[axis] < bounds[prims[y]].Center()[axis]
		})
		mid = count / 2
	}

	left, right := vmath.EmptyAABB(), vmath.EmptyAABB()
	for _, p := range prims[:mid] {
		left = left.EncapsulateBounds(bounds[p])
	}
	for _, p := range prims[mid:] {
		right = right.EncapsulateBounds(bounds[p])
	}

	child := len(b.Nodes)
	b.Nodes = append(b.Nodes, BIHNode{}, BIHNode{})
	b.Nodes[node] = BIHNode{Axis: axis, Left: left.Max[axis], Right: right.Min[axis], Child: child}

	leftBox, rightBox := box, box
	leftBox.Max[axis] = left.Max[axis]
	rightBox.Min[axis] = right.Min[axis]
	b.build(child, bounds, start, mid, leftBox, depth+1)
	b.build(child+1, bounds, start+mid, count-mid, rightBox, depth+1)
}

type bihEntry struct {
	node int
	box  vmath.AABB
}

// Query calls fn for every primitive whose node interval overlaps box, until
// fn returns false. Callers test the primitive itself.
func (b *BIH) Query(box vmath.AABB, fn func(prim int) bool) {
	if len(b.Nodes) == 0 || !b.Bounds.Intersects(box) {
		return
	}
	stack := []int{0}
	for len(stack) > 0 {
		n := b.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if n.Axis < 0 {
			for _, p := range b.Order[n.Start : n.Start+n.Count] {
				if !fn(p) {
					return
				}
			}
			continue
		}
		if box.Min[n.Axis] <= n.Left {
			stack = append(stack, n.Child)
		}
		if box.Max[n.Axis] >= n.Right {
			stack = append(stack, n.Child+1)
		}
	}
}

// Closest returns the primitive minimising distSq(prim) and that squared
// distance. Subtrees whose box is farther from p than the best candidate are
// skipped. It returns -1 for an empty hierarchy.
func (b *BIH) Closest(p vmath.Vec3, distSq func(prim int) float64) (int, float64) {
	best, bestD := -1, 0.0
	if len(b.Nodes) == 0 {
		return best, bestD
	}

	stack := []bihEntry{{node: 0, box: b.Bounds}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if best >= 0 && boxDistSq(e.box, p) >= bestD {
			continue
		}

		n := b.Nodes[e.node]
		if n.Axis < 0 {
			for _, prim := range b.Order[n.Start : n.Start+n.Count] {
				if d := distSq(prim); best < 0 || d < bestD {
					best, bestD = prim, d
				}
			}
			continue
		}

		leftBox, rightBox := e.box, e.box
		leftBox.Max[n.Axis] = n.Left
		rightBox.Min[n.Axis] = n.Right
		near, far := bihEntry{n.Child, leftBox}, bihEntry{n.Child + 1, rightBox}
		if boxDistSq(rightBox, p) < boxDistSq(leftBox, p) {
			near, far = far, near
		}
		// Push far first so near is popped next.
		stack = append(stack, far, near)
	}
	return best, bestD
}

func boxDistSq(box vmath.AABB, p vmath.Vec3) float64 {
	return box.ClosestPoint(p).Sub(p).LenSqr()
}

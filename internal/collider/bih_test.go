package collider

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/vmath"
)

// grid returns a bumpy triangulated n x n patch.
func grid(n int) *MeshSource {
	src := &MeshSource{}
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			y := 0.2 * math.Sin(float64(x)) * math.Cos(float64(z))
			src.Vertices = append(src.Vertices, vmath.Vec3{float64(x), y, float64(z)})
		}
	}
	for z := 0; z < n; z++ {
		for x := 0; x < n; x++ {
			i := z*(n+1) + x
			src.Triangles = append(src.Triangles, i, i+n+1, i+n+2, i, i+n+2, i+1)
		}
	}
	return src
}

func TestBIH_ClosestMatchesBruteForce(t *testing.T) {
	d := BuildMeshData(grid(12))
	require.NotEmpty(t, d.Tree.Nodes)
	rng := rand.New(rand.NewSource(7))

	for k := 0; k < 200; k++ {
		p := vmath.Vec3{rng.Float64()*16 - 2, rng.Float64()*4 - 2, rng.Float64()*16 - 2}

		bestSq := math.Inf(1)
		for tri := 0; tri < len(d.Triangles)/3; tri++ {
			a, b, c := d.triangle(tri)
			bestSq = math.Min(bestSq, p.Sub(closestOnTriangle(p, a, b, c)).LenSqr())
		}

		_, got := d.Tree.Closest(p, func(tri int) float64 {
			a, b, c := d.triangle(tri)
			return p.Sub(closestOnTriangle(p, a, b, c)).LenSqr()
		})
		assert.InDelta(t, bestSq, got, 1e-12, "point %v", p)
	}
}

func TestBIH_QueryFindsOverlaps(t *testing.T) {
	bounds := []vmath.AABB{}
	for i := 0; i < 50; i++ {
		c := vmath.Vec3{float64(i), 0, 0}
		bounds = append(bounds, vmath.AABBFromPoint(c, 0.25))
	}
	tree := BuildBIH(bounds)

	var hits []int
	tree.Query(vmath.AABB{Min: vmath.Vec3{9.9, -1, -1}, Max: vmath.Vec3{12.1, 1, 1}}, func(p int) bool {
		if bounds[p].Intersects(vmath.AABB{Min: vmath.Vec3{9.9, -1, -1}, Max: vmath.Vec3{12.1, 1, 1}}) {
			hits = append(hits, p)
		}
		return true
	})
	assert.ElementsMatch(t, []int{10, 11, 12}, hits)

	visited := 0
	tree.Query(vmath.AABB{Min: vmath.Vec3{-1, -1, -1}, Max: vmath.Vec3{60, 1, 1}}, func(int) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited, "returning false stops the query")
}

func TestBIH_Empty(t *testing.T) {
	tree := BuildBIH(nil)
	prim, _ := tree.Closest(vmath.Vec3{}, func(int) float64 { return 0 })
	assert.Equal(t, -1, prim)
	tree.Query(vmath.AABB{}, func(int) bool {
		t.Fatal("no primitives")
		return true
	})
}

func TestBIH_CoincidentCentroids(t *testing.T) {
	bounds := make([]vmath.AABB, 20)
	for i := range bounds {
		bounds[i] = vmath.AABBFromPoint(vmath.Vec3{}, float64(i+1))
	}
	tree := BuildBIH(bounds)
	prim, d := tree.Closest(vmath.Vec3{100, 0, 0}, func(p int) float64 {
		return bounds[p].ClosestPoint(vmath.Vec3{100, 0, 0}).Sub(vmath.Vec3{100, 0, 0}).LenSqr()
	})
	assert.Equal(t, 19, prim)
	assert.InDelta(t, 80.0*80.0, d, 1e-9)
}

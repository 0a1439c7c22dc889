package collider

import (
	"math"

	"github.com/roach88/xpbd/internal/vmath"
)

// MeshSource is host-owned triangle geometry. Colliders referencing the same
// *MeshSource share one cache entry.
type MeshSource struct {
	Vertices  []vmath.Vec3
	Triangles []int
}

// EdgeMeshSource is host-owned line geometry, two indices per edge.
type EdgeMeshSource struct {
	Vertices []vmath.Vec3
	Edges    []int
}

// HeightFieldSource is a row-major grid of normalized heights, ResolutionX
// samples per row.
type HeightFieldSource struct {
	ResolutionX int
	ResolutionZ int
	Heights     []float64
}

// DistanceFieldSource is a sampled signed distance field. Samples are
// x-major: index = x + y*Resolution[0] + z*Resolution[0]*Resolution[1].
type DistanceFieldSource struct {
	Origin     vmath.Vec3
	CellSize   float64
	Resolution [3]int
	Samples    []float64
}

// MeshData is the cached, query-ready form of a MeshSource.
type MeshData struct {
	Vertices  []vmath.Vec3
	Triangles []int
	Normals   []vmath.Vec3
	Tree      *BIH
}

// EdgeMeshData is the cached form of an EdgeMeshSource.
type EdgeMeshData struct {
	Vertices []vmath.Vec3
	Edges    []int
	Tree     *BIH
}

// HeightFieldData is the cached form of a HeightFieldSource.
type HeightFieldData struct {
	ResolutionX int
	ResolutionZ int
	Heights     []float64
	MinHeight   float64
	MaxHeight   float64
}

// DistanceFieldData is the cached form of a DistanceFieldSource.
type DistanceFieldData struct {
	DistanceFieldSource
	Bounds vmath.AABB
}

// BuildMeshData copies src and builds its hierarchy. Degenerate triangles
// get a zero normal and are still indexed.
func BuildMeshData(src *MeshSource) *MeshData {
	d := &MeshData{
		Vertices:  append([]vmath.Vec3(nil), src.Vertices...),
		Triangles: append([]int(nil), src.Triangles...),
	}
	n := len(d.Triangles) / 3
	bounds := make([]vmath.AABB, n)
	d.Normals = make([]vmath.Vec3, n)
	for t := 0; t < n; t++ {
		a, b, c := d.triangle(t)
		bounds[t] = vmath.EmptyAABB().Encapsulate(a).Encapsulate(b).Encapsulate(c)
		d.Normals[t], _ = vmath.SafeNormalize(b.Sub(a).Cross(c.Sub(a)))
	}
	d.Tree = BuildBIH(bounds)
	return d
}

func (d *MeshData) triangle(t int) (vmath.Vec3, vmath.Vec3, vmath.Vec3) {
	return d.Vertices[d.Triangles[3*t]], d.Vertices[d.Triangles[3*t+1]], d.Vertices[d.Triangles[3*t+2]]
}

// BuildEdgeMeshData copies src and builds its hierarchy.
func BuildEdgeMeshData(src *EdgeMeshSource) *EdgeMeshData {
	d := &EdgeMeshData{
		Vertices: append([]vmath.Vec3(nil), src.Vertices...),
		Edges:    append([]int(nil), src.Edges...),
	}
	n := len(d.Edges) / 2
	bounds := make([]vmath.AABB, n)
	for e := 0; e < n; e++ {
		a, b := d.edge(e)
		bounds[e] = vmath.EmptyAABB().Encapsulate(a).Encapsulate(b)
	}
	d.Tree = BuildBIH(bounds)
	return d
}

func (d *EdgeMeshData) edge(e int) (vmath.Vec3, vmath.Vec3) {
	return d.Vertices[d.Edges[2*e]], d.Vertices[d.Edges[2*e+1]]
}

// BuildHeightFieldData copies src and records its height range.
func BuildHeightFieldData(src *HeightFieldSource) *HeightFieldData {
	d := &HeightFieldData{
		ResolutionX: src.ResolutionX,
		ResolutionZ: src.ResolutionZ,
		Heights:     append([]float64(nil), src.Heights...),
		MinHeight:   math.Inf(1),
		MaxHeight:   math.Inf(-1),
	}
	for _, h := range d.Heights {
		d.MinHeight = math.Min(d.MinHeight, h)
		d.MaxHeight = math.Max(d.MaxHeight, h)
	}
	if len(d.Heights) == 0 {
		d.MinHeight, d.MaxHeight = 0, 0
	}
	return d
}

func (d *HeightFieldData) height(x, z int) float64 {
	x = min(max(x, 0), d.ResolutionX-1)
	z = min(max(z, 0), d.ResolutionZ-1)
	i := z*d.ResolutionX + x
	if i < 0 || i >= len(d.Heights) {
		return 0
	}
	return d.Heights[i]
}

// BuildDistanceFieldData copies src and records its sampled bounds.
func BuildDistanceFieldData(src *DistanceFieldSource) *DistanceFieldData {
	d := &DistanceFieldData{DistanceFieldSource: *src}
	d.Samples = append([]float64(nil), src.Samples...)
	extent := vmath.Vec3{
		float64(max(src.Resolution[0]-1, 0)) * src.CellSize,
		float64(max(src.Resolution[1]-1, 0)) * src.CellSize,
		float64(max(src.Resolution[2]-1, 0)) * src.CellSize,
	}
	d.Bounds = vmath.AABB{Min: src.Origin, Max: src.Origin.Add(extent)}
	return d
}

func (d *DistanceFieldData) sample(x, y, z int) float64 {
	r := d.Resolution
	x = min(max(x, 0), r[0]-1)
	y = min(max(y, 0), r[1]-1)
	z = min(max(z, 0), r[2]-1)
	i := x + y*r[0] + z*r[0]*r[1]
	if i < 0 || i >= len(d.Samples) {
		return math.Inf(1)
	}
	return d.Samples[i]
}

// Distance trilinearly interpolates the field at p, which must lie inside
// Bounds.
func (d *DistanceFieldData) Distance(p vmath.Vec3) float64 {
	if d.CellSize < vmath.Epsilon {
		return math.Inf(1)
	}
	g := p.Sub(d.Origin).Mul(1 / d.CellSize)
	x0, y0, z0 := int(math.Floor(g[0])), int(math.Floor(g[1])), int(math.Floor(g[2]))
	fx, fy, fz := g[0]-float64(x0), g[1]-float64(y0), g[2]-float64(z0)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	c00 := lerp(d.sample(x0, y0, z0), d.sample(x0+1, y0, z0), fx)
	c10 := lerp(d.sample(x0, y0+1, z0), d.sample(x0+1, y0+1, z0), fx)
	c01 := lerp(d.sample(x0, y0, z0+1), d.sample(x0+1, y0, z0+1), fx)
	c11 := lerp(d.sample(x0, y0+1, z0+1), d.sample(x0+1, y0+1, z0+1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

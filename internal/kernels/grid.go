package kernels

import (
	"math"
	"slices"

	"github.com/roach88/xpbd/internal/vmath"
)

type cellKey [3]int

// hashGrid buckets particle indices by the cells their bounds overlap. It
// is unbounded: cells are hashed, not allocated up front.
type hashGrid struct {
	size  float64
	cells map[cellKey][]int
}

func newHashGrid(cellSize float64) *hashGrid {
	if cellSize < vmath.Epsilon {
		cellSize = 1
	}
	return &hashGrid{size: cellSize, cells: make(map[cellKey][]int)}
}

func (g *hashGrid) cellRange(b vmath.AABB) (cellKey, cellKey) {
	var lo, hi cellKey
	for k := 0; k < 3; k++ {
		lo[k] = int(math.Floor(b.Min[k] / g.size))
		hi[k] = int(math.Floor(b.Max[k] / g.size))
	}
	return lo, hi
}

// insert adds i to every cell b overlaps. Callers insert in ascending index
// order so each cell list stays sorted.
func (g *hashGrid) insert(i int, b vmath.AABB) {
	lo, hi := g.cellRange(b)
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				k := cellKey{x, y, z}
				g.cells[k] = append(g.cells[k], i)
			}
		}
	}
}

// candidates returns, sorted and without duplicates, every index greater
// than i sharing a cell with b.
func (g *hashGrid) candidates(i int, b vmath.AABB, out []int) []int {
	out = out[:0]
	lo, hi := g.cellRange(b)
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				for _, j := range g.cells[cellKey{x, y, z}] {
					if j > i {
						out = append(out, j)
					}
				}
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package solver

import "slices"

// Stitch ties particle PA of actor A to particle PB of actor B. It is
// solved only while both actors are attached to the stitch's solver.
type Stitch struct {
	A, B       *Actor
	PA, PB     int
	Compliance float64

	solver *Solver
}

func (st *Stitch) active() bool {
	return st.A.solver == st.solver && st.B.solver == st.solver &&
		st.PA >= 0 && st.PA < len(st.A.indices) &&
		st.PB >= 0 && st.PB < len(st.B.indices)
}

func (st *Stitch) particles() []int {
	return []int{st.A.indices[st.PA], st.B.indices[st.PB]}
}

// AddStitch registers a stitch between two attached actors. Stitches are
// dropped when either actor is removed.
func (s *Solver) AddStitch(st *Stitch) bool {
	if st == nil || st.A == nil || st.B == nil || st.A == st.B {
		return false
	}
	st.solver = s
	if !st.active() {
		st.solver = nil
		return false
	}
	s.stitches = append(s.stitches, st)
	s.markDirty()
	return true
}

// RemoveStitch unregisters st.
func (s *Solver) RemoveStitch(st *Stitch) bool {
	n := len(s.stitches)
	s.stitches = slices.DeleteFunc(s.stitches, func(o *Stitch) bool { return o == st })
	if len(s.stitches) == n {
		return false
	}
	st.solver = nil
	s.markDirty()
	return true
}

// Stitches returns the registered stitches.
func (s *Solver) Stitches() []*Stitch { return slices.Clone(s.stitches) }

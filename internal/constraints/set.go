package constraints

import "fmt"

// Set holds one container per authored constraint type. Actors carry a Set
// as their blueprint; the solver keeps one merged Set for all actors.
type Set struct {
	Tether        *Container[TetherParams]
	Volume        *Container[VolumeParams]
	Bend          *Container[BendParams]
	Distance      *Container[DistanceParams]
	ShapeMatching *Container[ShapeMatchingParams]
	Pin           *Container[PinParams]
	Skin          *Container[SkinParams]
	Aerodynamic   *Container[AerodynamicParams]
	Stitch        *Container[StitchParams]
}

// NewSet returns a Set of empty containers.
func NewSet() *Set {
	return &Set{
		Tether:        NewContainer[TetherParams](Tether),
		Volume:        NewContainer[VolumeParams](Volume),
		Bend:          NewContainer[BendParams](Bend),
		Distance:      NewContainer[DistanceParams](Distance),
		ShapeMatching: NewContainer[ShapeMatchingParams](ShapeMatching),
		Pin:           NewContainer[PinParams](Pin),
		Skin:          NewContainer[SkinParams](Skin),
		Aerodynamic:   NewContainer[AerodynamicParams](Aerodynamic),
		Stitch:        NewContainer[StitchParams](Stitch),
	}
}

// Containers returns the containers in evaluation order.
func (s *Set) Containers() []AnyContainer {
	return []AnyContainer{
		s.Tether, s.Volume, s.Bend, s.Distance, s.ShapeMatching,
		s.Pin, s.Skin, s.Aerodynamic, s.Stitch,
	}
}

// Container returns the container of type t, or nil for generated types.
func (s *Set) Container(t Type) AnyContainer {
	for _, c := range s.Containers() {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// Clear empties every container.
func (s *Set) Clear() {
	for _, c := range s.Containers() {
		c.Clear()
	}
}

// ConstraintCount sums stored constraints across all types.
func (s *Set) ConstraintCount() int {
	n := 0
	for _, c := range s.Containers() {
		n += c.ConstraintCount()
	}
	return n
}

// Offsets records where an actor's batches landed in a merged Set, per type.
type Offsets map[Type][]int

// Merge merges every container of src into s.
func (s *Set) Merge(src *Set, solverIndices []int) (Offsets, error) {
	out := make(Offsets)
	srcs := src.Containers()
	for i, dst := range s.Containers() {
		offs, err := dst.MergeFrom(srcs[i], solverIndices)
		if err != nil {
			return nil, fmt.Errorf("merge constraints: %w", err)
		}
		out[dst.Type()] = offs
	}
	return out, nil
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	return &Set{
		Tether:        s.Tether.Clone(),
		Volume:        s.Volume.Clone(),
		Bend:          s.Bend.Clone(),
		Distance:      s.Distance.Clone(),
		ShapeMatching: s.ShapeMatching.Clone(),
		Pin:           s.Pin.Clone(),
		Skin:          s.Skin.Clone(),
		Aerodynamic:   s.Aerodynamic.Clone(),
		Stitch:        s.Stitch.Clone(),
	}
}

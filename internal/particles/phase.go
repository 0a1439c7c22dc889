package particles

// Phase packs a particle's collision group and behaviour flags. Particles of
// the same group only collide with each other when SelfCollide is set.
type Phase uint32

const (
	groupMask Phase = 0x00ffffff

	// SelfCollide lets particles of the same group collide.
	SelfCollide Phase = 1 << 24
	// OneSided makes collider contacts ignore back faces.
	OneSided Phase = 1 << 25
)

// MakePhase builds a phase from a group and flags.
func MakePhase(group int, flags Phase) Phase {
	return Phase(group)&groupMask | flags&^groupMask
}

// Group returns the collision group.
func (p Phase) Group() int {
	return int(p & groupMask)
}

// Has reports whether flag is set.
func (p Phase) Has(flag Phase) bool {
	return p&flag != 0
}

// Filter is a collision filter: the low 16 bits are the categories the
// particle or shape belongs to, the high 16 bits the categories it collides
// with.
type Filter uint32

// FilterAll collides with everything and belongs to category 0.
const FilterAll Filter = 0xffff0001

// MakeFilter builds a filter from category and mask bits.
func MakeFilter(category, mask uint16) Filter {
	return Filter(uint32(mask)<<16 | uint32(category))
}

// Category returns the membership bits.
func (f Filter) Category() uint16 {
	return uint16(f & 0xffff)
}

// Mask returns the collide-with bits.
func (f Filter) Mask() uint16 {
	return uint16(f >> 16)
}

// CollidesWith reports whether two filters accept each other.
func (f Filter) CollidesWith(o Filter) bool {
	return f.Mask()&o.Category() != 0 && o.Mask()&f.Category() != 0
}

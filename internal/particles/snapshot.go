package particles

import "github.com/roach88/xpbd/internal/vmath"

// Snapshot is a copy of the simulated state, taken at step begin so that a
// failed step can be rolled back instead of leaving particles half-updated.
type Snapshot struct {
	positions         []vmath.Vec3
	prevPositions     []vmath.Vec3
	orientations      []vmath.Quat
	prevOrientations  []vmath.Quat
	velocities        []vmath.Vec3
	angularVelocities []vmath.Vec3
}

// Snapshot copies the simulated state into s, reusing its storage.
func (b *Buffer) Snapshot(s *Snapshot) {
	s.positions = append(s.positions[:0], b.Positions...)
	s.prevPositions = append(s.prevPositions[:0], b.PrevPositions...)
	s.orientations = append(s.orientations[:0], b.Orientations...)
	s.prevOrientations = append(s.prevOrientations[:0], b.PrevOrientations...)
	s.velocities = append(s.velocities[:0], b.Velocities...)
	s.angularVelocities = append(s.angularVelocities[:0], b.AngularVelocities...)
}

// Restore writes a snapshot back. Slots allocated after the snapshot was
// taken keep their current state.
func (b *Buffer) Restore(s *Snapshot) {
	copy(b.Positions, s.positions)
	copy(b.PrevPositions, s.prevPositions)
	copy(b.Orientations, s.orientations)
	copy(b.PrevOrientations, s.prevOrientations)
	copy(b.Velocities, s.velocities)
	copy(b.AngularVelocities, s.angularVelocities)
	for i := range b.PositionDeltas {
		b.ClearDeltas(i)
	}
}

// IsFinite reports whether every active particle has finite position and
// velocity.
func (b *Buffer) IsFinite() bool {
	for i, a := range b.active {
		if !a {
			continue
		}
		if !vmath.IsFiniteVec(b.Positions[i]) || !vmath.IsFiniteVec(b.Velocities[i]) {
			return false
		}
	}
	return true
}

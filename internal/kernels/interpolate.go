package kernels

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// InterpolationAlpha returns how far between the last two steps the
// renderable state sits.
func InterpolationAlpha(stepTime, unsimulatedTime float64) float64 {
	if stepTime < vmath.Epsilon {
		return 1
	}
	return vmath.Clamp01(unsimulatedTime / stepTime)
}

// Interpolate writes the renderable state of particle i. With interpolation
// off the renderable state is the simulated state.
func Interpolate(buf *particles.Buffer, i int, alpha float64, interpolate bool) {
	if !interpolate {
		buf.RenderablePositions[i] = buf.Positions[i]
		buf.RenderableOrientations[i] = buf.Orientations[i]
		return
	}
	buf.RenderablePositions[i] = vmath.Lerp(buf.StartPositions[i], buf.Positions[i], alpha)

	from, to := buf.StartOrientations[i], buf.Orientations[i]
	if from.Dot(to) < 0 {
		to = to.Scale(-1)
	}
	buf.RenderableOrientations[i] = mgl64.QuatNlerp(from, to, alpha)
}

package kernels

import (
	"math"

	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// Context is the read-mostly state a kernel runs against.
type Context struct {
	Particles *particles.Buffer
	World     *collider.World
	Frame     *vmath.InertialFrame
	Params    Parameters

	StepTime    float64
	SubstepTime float64
	Substeps    int
}

// compliance converts a compliance into the XPBD alpha-tilde of the current
// substep.
func (c *Context) compliance(alpha float64) float64 {
	h := c.SubstepTime
	if h < vmath.Epsilon {
		return 0
	}
	return alpha / (h * h)
}

// toWorld maps a solver-space point to world space.
func (c *Context) toWorld(p vmath.Vec3) vmath.Vec3 {
	if c.Frame == nil {
		return p
	}
	return c.Frame.Frame.TransformPoint(p)
}

// toLocal maps a world point to solver space.
func (c *Context) toLocal(p vmath.Vec3) vmath.Vec3 {
	if c.Frame == nil {
		return p
	}
	return c.Frame.Frame.InverseTransformPoint(p)
}

// directionToLocal rotates a world direction into solver space.
func (c *Context) directionToLocal(d vmath.Vec3) vmath.Vec3 {
	if c.Frame == nil {
		return d
	}
	return c.Frame.Frame.InverseTransformDirection(d)
}

// SubstepCount returns how many substeps of length substepTime make up a
// step, at least one.
func SubstepCount(stepTime, substepTime float64) int {
	if substepTime < vmath.Epsilon {
		return 1
	}
	return max(1, int(math.Round(stepTime/substepTime)))
}

// NewContext builds the context of one substep.
func NewContext(buf *particles.Buffer, world *collider.World, frame *vmath.InertialFrame, params Parameters, stepTime, substepTime float64) *Context {
	return &Context{
		Particles:   buf,
		World:       world,
		Frame:       frame,
		Params:      params,
		StepTime:    stepTime,
		SubstepTime: substepTime,
		Substeps:    SubstepCount(stepTime, substepTime),
	}
}

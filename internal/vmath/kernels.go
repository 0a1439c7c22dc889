package vmath

import "math"

// Poly6 evaluates the poly6 density kernel for a squared distance r2 and
// smoothing radius h. It is zero outside the radius.
func Poly6(r2, h float64) float64 {
	h2 := h * h
	if h < Epsilon || r2 >= h2 {
		return 0
	}
	d := h2 - r2
	return 315.0 / (64.0 * math.Pi * math.Pow(h, 9)) * d * d * d
}

// SpikyGradient evaluates the gradient of the spiky pressure kernel for the
// displacement r and smoothing radius h.
func SpikyGradient(r Vec3, h float64) Vec3 {
	dir, l := SafeNormalize(r)
	if h < Epsilon || l >= h || l == 0 {
		return Vec3{}
	}
	d := h - l
	return dir.Mul(-45.0 / (math.Pi * math.Pow(h, 6)) * d * d)
}

// SmoothField replaces every value by the poly6-weighted average of the
// values whose points lie within radius. Points with zero total weight keep
// their original value.
func SmoothField(points []Vec3, values []float64, radius float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		var sum, weight float64
		for j := range values {
			w := Poly6(points[i].Sub(points[j]).LenSqr(), radius)
			sum += w * values[j]
			weight += w
		}
		if weight < Epsilon {
			out[i] = values[i]
			continue
		}
		out[i] = sum / weight
	}
	return out
}

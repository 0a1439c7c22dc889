package queryir

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/vmath"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		field string
	}{
		{"sphere", Query{Shape: Sphere{Radius: 1}}, ""},
		{"box", Query{Shape: Box{Size: vmath.Vec3{1, 1, 1}}, MaxDistance: 2}, ""},
		{"ray", Query{Shape: Ray{Direction: vmath.Vec3{0, 0, 1}, Length: 5}}, ""},
		{"nil shape", Query{}, "shape"},
		{"negative radius", Query{Shape: Sphere{Radius: -1}}, "radius"},
		{"negative size", Query{Shape: Box{Size: vmath.Vec3{1, -1, 1}}}, "size"},
		{"zero direction", Query{Shape: Ray{Length: 1}}, "direction"},
		{"zero length", Query{Shape: Ray{Direction: vmath.Vec3{1, 0, 0}}}, "length"},
		{"negative thickness", Query{Shape: Ray{Direction: vmath.Vec3{1, 0, 0}, Length: 1, Thickness: -1}}, "thickness"},
		{"negative distance", Query{Shape: Sphere{}, MaxDistance: -1}, "max_distance"},
		{"nan distance", Query{Shape: Sphere{}, MaxDistance: math.NaN()}, "max_distance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]Query{{Shape: Sphere{}}, tt.query})
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, 1, ve.Index)
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, err.Error(), "query 1")
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	assert.NoError(t, Validate(nil))
}

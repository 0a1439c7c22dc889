package queryir

import (
	"fmt"
	"math"
)

// ValidationError reports why a query cannot be executed.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query %d: %s: %s", e.Index, e.Field, e.Message)
}

// Validate checks every query and returns the first problem found.
//
// Validate is a pure function with no side effects.
func Validate(queries []Query) error {
	for i, q := range queries {
		if err := validateQuery(i, q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuery(i int, q Query) error {
	if q.MaxDistance < 0 || math.IsNaN(q.MaxDistance) {
		return &ValidationError{Index: i, Field: "max_distance", Message: "must be a non-negative number"}
	}

	switch s := q.Shape.(type) {
	case nil:
		return &ValidationError{Index: i, Field: "shape", Message: "missing"}
	case Sphere:
		if s.Radius < 0 {
			return &ValidationError{Index: i, Field: "radius", Message: "must be non-negative"}
		}
	case Box:
		if s.Size[0] < 0 || s.Size[1] < 0 || s.Size[2] < 0 {
			return &ValidationError{Index: i, Field: "size", Message: "must be non-negative"}
		}
	case Ray:
		if s.Direction.Len() == 0 {
			return &ValidationError{Index: i, Field: "direction", Message: "must be non-zero"}
		}
		if s.Length <= 0 {
			return &ValidationError{Index: i, Field: "length", Message: "must be positive"}
		}
		if s.Thickness < 0 {
			return &ValidationError{Index: i, Field: "thickness", Message: "must be non-negative"}
		}
	default:
		return &ValidationError{Index: i, Field: "shape", Message: fmt.Sprintf("unsupported type %T", q.Shape)}
	}
	return nil
}

package solver

import (
	"fmt"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/backend/native"
	"github.com/roach88/xpbd/internal/backend/null"
	"github.com/roach88/xpbd/internal/backend/parallel"
)

// BackendNames lists the backends NewBackend accepts.
func BackendNames() []string {
	return []string{null.Name, native.Name, parallel.Name}
}

// NewBackend returns the backend registered under name. The native backend
// uses the in-process reference library.
func NewBackend(name string) (backend.Backend, error) {
	switch name {
	case null.Name:
		return null.New(), nil
	case native.Name:
		return native.New(nil), nil
	case parallel.Name, "":
		return parallel.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q (want one of %v)", name, BackendNames())
}

package testutil

// FixedRunGenerator names every run the same.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence and panics
// when they run out, this generator never runs out. Scenarios that record
// to golden files use it so the run ID in the trace is stable.
//
// Thread-safety: FixedRunGenerator is stateless and safe for concurrent use.
type FixedRunGenerator struct {
	id string
}

// NewFixedRunGenerator creates a generator returning id.
// If id is empty, Generate returns "test-run-default".
func NewFixedRunGenerator(id string) *FixedRunGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunGenerator) Generate() string {
	return g.id
}

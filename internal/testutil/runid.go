package testutil

// FixedRunID returns the same run ID every time, so golden traces of the
// same scenario are byte-identical.
// It implements engine.RunIDGenerator.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id becomes "test-run".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunID) Generate() string {
	return g.id
}

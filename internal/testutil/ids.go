package testutil

// FixedIDGenerator returns the same graph ID every time.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence, this
// generator never runs out. Task keys are a digest of the graph ID and the
// task's seq, so every graph it names gets the same keys for the same
// construction order, which keeps golden files stable.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a fixed generator. An empty id selects
// "test-graph-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-graph-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID. Implements engine.IDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

package testutil

import (
	"context"
	"sync"

	"github.com/roach88/geochunk/internal/engine"
)

// CountingEngine wraps an engine.Local and counts calls, so tests can
// assert that a failed dispatch created no tasks.
type CountingEngine struct {
	*engine.Local

	mu       sync.Mutex
	graphs   int
	delays   int
	computes int
	names    []string
}

// NewCountingEngine creates a counting engine over a Local engine built
// with opts.
func NewCountingEngine(opts ...engine.LocalOption) *CountingEngine {
	return &CountingEngine{Local: engine.NewLocal(opts...)}
}

// NewGraph counts and delegates.
func (c *CountingEngine) NewGraph(name string) *engine.Graph {
	c.mu.Lock()
	c.graphs++
	c.mu.Unlock()
	return c.Local.NewGraph(name)
}

// Delay counts and delegates.
func (c *CountingEngine) Delay(g *engine.Graph, name string, fn engine.Func, args ...any) (*engine.Task, error) {
	c.mu.Lock()
	c.delays++
	c.names = append(c.names, name)
	c.mu.Unlock()
	return c.Local.Delay(g, name, fn, args...)
}

// Compute counts and delegates.
func (c *CountingEngine) Compute(ctx context.Context, g *engine.Graph, target *engine.Task) (any, error) {
	c.mu.Lock()
	c.computes++
	c.mu.Unlock()
	return c.Local.Compute(ctx, g, target)
}

// Graphs returns the number of NewGraph calls.
func (c *CountingEngine) Graphs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graphs
}

// Delays returns the number of Delay calls.
func (c *CountingEngine) Delays() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delays
}

// Computes returns the number of Compute calls.
func (c *CountingEngine) Computes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computes
}

// TaskNames returns the names passed to Delay, in call order.
func (c *CountingEngine) TaskNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator yields deterministic identifiers so tests can predict the ids
// assigned to reservations, log entries, and badge tokens.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator builds a generator producing "<prefix>-1", "<prefix>-2",
// and so on. An empty prefix defaults to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.prefix + "-" + strconv.FormatUint(g.counter, 10)
}

// NextFunc adapts the generator to the idGenerator injection point of the
// services.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetPrefix swaps the prefix for subsequently generated identifiers.
func (g *IDGenerator) SetPrefix(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

// SetCounter overrides the sequence position. Zero restarts it.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.mu.Lock()
	g.counter = counter
	g.mu.Unlock()
}

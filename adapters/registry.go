// Package adapters provides the content sources a node definition can
// reference instead of literal content. Sources are fetched once when the
// definition is loaded; the tree itself only ever holds text.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var ErrUnknownSource = errors.New("unknown source type")

// Source produces the initial content of a node
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// Factory builds a Source from its raw JSON definition
type Factory func(raw []byte) (Source, error)

// Registry ties source factories to the "type" key of a definition
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for sourceType. The first registration for a type
// wins so built-ins can be registered repeatedly.
func (r *Registry) Register(sourceType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[sourceType]; exists {
		return
	}
	r.factories[sourceType] = factory
}

// GetSource picks the right factory based on the "type" field
func (r *Registry) GetSource(raw []byte) (Source, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	r.mu.RLock()
	f, ok := r.factories[meta.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, meta.Type)
	}
	return f(raw)
}

var defaultRegistry = NewRegistry()

// Register adds a factory to the default registry and should be called for
// each source type during app init
func Register(sourceType string, factory Factory) {
	defaultRegistry.Register(sourceType, factory)
}

// GetSource resolves raw against the default registry.
// All expected source types should be registered with [Register] first.
func GetSource(raw []byte) (Source, error) {
	return defaultRegistry.GetSource(raw)
}

package card

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"timercard/internal/clock"
	"timercard/internal/ha"
)

// Factory builds a card instance from a configuration and its runtime
// dependencies.
type Factory func(name string, cfg Config, hub ha.HubClient, clk clock.Clock, logger *zap.Logger, events *Events) (*Card, error)

// Definition registers a card type with the host's card registry.
type Definition struct {
	// Type is the fixed type name configurations reference.
	Type string

	// Description is a human-readable summary for pickers.
	Description string

	Factory Factory
}

// Registry maps card type names to their factories.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Definition)}
}

// Register adds a card type. Registering an already-known type replaces
// its definition.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return fmt.Errorf("card type cannot be empty")
	}
	if def.Factory == nil {
		return fmt.Errorf("card type %s: factory cannot be nil", def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Type] = def
	return nil
}

// Get returns the definition for a type name, nil when unknown. Both the
// bare name and the "custom:" prefixed form match.
func (r *Registry) Get(typeName string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.types[typeName]; ok {
		return &def
	}
	if def, ok := r.types["custom:"+typeName]; ok {
		return &def
	}
	const prefix = "custom:"
	if len(typeName) > len(prefix) && typeName[:len(prefix)] == prefix {
		if def, ok := r.types[typeName[len(prefix):]]; ok {
			return &def
		}
	}
	return nil
}

// Types returns all registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	return out
}

// Default is the process-wide registry the daemon builds cards from.
var Default = NewRegistry()

func init() {
	Default.Register(Definition{
		Type:        TypeName,
		Description: "Countdown and daily-usage card for a timed power switch.",
		Factory: func(name string, cfg Config, hub ha.HubClient, clk clock.Clock, logger *zap.Logger, events *Events) (*Card, error) {
			return New(name, cfg, hub, clk, logger, events), nil
		},
	})
}

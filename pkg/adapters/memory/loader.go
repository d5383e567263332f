package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Loader implements ports.DefinitionLoader using an in-memory map.
// Returned definitions are shared and must be treated as read-only.
type Loader struct {
	mu   sync.RWMutex
	defs map[string]*domain.FlowDefinition
}

var _ ports.DefinitionLoader = (*Loader)(nil)

// NewLoader creates a Loader serving the given definitions as their default variant.
func NewLoader(defs ...*domain.FlowDefinition) (*Loader, error) {
	l := &Loader{defs: make(map[string]*domain.FlowDefinition)}
	for _, def := range defs {
		if err := l.Add("", def); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// NewFromJSON creates a Loader from raw JSON definitions.
// This handles parsing automatically, improving DX for tests.
func NewFromJSON(raw ...string) (*Loader, error) {
	l := &Loader{defs: make(map[string]*domain.FlowDefinition)}
	for i, r := range raw {
		def, err := definition.ParseJSON([]byte(r))
		if err != nil {
			return nil, fmt.Errorf("definition #%d: %w", i, err)
		}
		l.put("", def)
	}
	return l, nil
}

// Add validates def and registers it under variantID (empty for the default).
func (l *Loader) Add(variantID string, def *domain.FlowDefinition) error {
	if err := definition.Validate(def); err != nil {
		return err
	}
	l.put(variantID, def)
	return nil
}

func (l *Loader) put(variantID string, def *domain.FlowDefinition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defs[loaderKey(def.ID, variantID)] = def
}

// Load retrieves the definition of flowID for variantID.
// A missing variant is not substituted by the default.
func (l *Loader) Load(ctx context.Context, flowID, variantID string) (*domain.FlowDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.defs[loaderKey(flowID, variantID)]
	if !ok {
		return nil, fmt.Errorf("flow %q variant %q: %w", flowID, variantID, domain.ErrDefinitionNotFound)
	}
	return def, nil
}

// List returns the registered flow ids.
func (l *Loader) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0, len(l.defs))
	for _, def := range l.defs {
		if !seen[def.ID] {
			seen[def.ID] = true
			ids = append(ids, def.ID)
		}
	}
	sort.Strings(ids) // Deterministic order
	return ids
}

func loaderKey(flowID, variantID string) string {
	if variantID == "" {
		return flowID
	}
	return flowID + "\x00" + variantID
}

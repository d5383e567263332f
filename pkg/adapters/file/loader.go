package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/waypoint/pkg/definition"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Loader implements ports.DefinitionLoader over a directory of definition files.
//
// The default variant of a flow lives in <flow>.yaml, <flow>.yml or <flow>.json;
// a variant lives in <flow>.<variant>.yaml (or .yml/.json).
type Loader struct {
	Dir string
}

var _ ports.DefinitionLoader = (*Loader)(nil)

// NewLoader creates a Loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

var parsers = []struct {
	ext   string
	parse func([]byte) (*domain.FlowDefinition, error)
}{
	{".yaml", definition.ParseYAML},
	{".yml", definition.ParseYAML},
	{".json", definition.ParseJSON},
}

// Load reads and validates the definition of flowID.
func (l *Loader) Load(ctx context.Context, flowID, variantID string) (*domain.FlowDefinition, error) {
	base := flowID
	if variantID != "" {
		base = flowID + "." + variantID
	}

	for _, p := range parsers {
		path := filepath.Join(l.Dir, base+p.ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
		}

		def, err := p.parse(data)
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", path, err)
		}
		if def.ID != flowID {
			return nil, fmt.Errorf("definition %s declares flow %q, expected %q", path, def.ID, flowID)
		}
		return def, nil
	}

	return nil, fmt.Errorf("flow %q variant %q in %s: %w", flowID, variantID, l.Dir, domain.ErrDefinitionNotFound)
}

// LoadFile parses a single definition file, choosing the format by extension.
func LoadFile(path string) (*domain.FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}
	ext := filepath.Ext(path)
	for _, p := range parsers {
		if p.ext == ext {
			return p.parse(data)
		}
	}
	return nil, fmt.Errorf("unsupported definition format %q", ext)
}

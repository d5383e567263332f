package middleware

import (
	"regexp"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Mask replaces the value of every masked context key.
const Mask = "***"

type piiMiddleware struct {
	next     ports.Serializer
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of context keys
// matching the patterns, at any depth of nested maps.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Serializer) ports.Serializer {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Marshal(state *domain.PersistedFlowState) (string, error) {
	// The live state belongs to the caller; only the copy is masked.
	masked := *state
	masked.Context = m.maskedCopy(state.Context)
	return m.next.Marshal(&masked)
}

func (m *piiMiddleware) Unmarshal(data string) (*domain.PersistedFlowState, error) {
	return m.next.Unmarshal(data)
}

func (m *piiMiddleware) sensitive(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskedCopy copies nested maps so masking never reaches shared values.
func (m *piiMiddleware) maskedCopy(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if m.sensitive(k) {
			out[k] = Mask
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			out[k] = m.maskedCopy(nested)
		case domain.Context:
			out[k] = m.maskedCopy(nested)
		default:
			out[k] = v
		}
	}
	return out
}

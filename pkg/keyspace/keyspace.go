// Package keyspace maps flow × instance × variant identities to storage keys.
//
// A key looks like
//
//	waypoint:flow=onboarding:instance=task-1:variant=b
//
// Every component is query-escaped, so separators inside ids can never make
// two different identities share a key.
package keyspace

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix namespaces every key written by the engine.
const DefaultPrefix = "waypoint:"

const (
	fieldFlow     = "flow"
	fieldInstance = "instance"
	fieldVariant  = "variant"
	separator     = ":"
)

// ErrForeignKey is returned by Parse for keys outside the space.
var ErrForeignKey = errors.New("key does not belong to this keyspace")

// Ref identifies one persisted flow instance.
type Ref struct {
	FlowID     string
	InstanceID string
	VariantID  string
}

func (r Ref) String() string {
	return Default.Key(r)
}

// Space is a key namespace.
type Space struct {
	Prefix string
}

// Default is the space used when none is configured.
var Default = Space{Prefix: DefaultPrefix}

// Key composes the storage key for a flow with optional instance and variant ids.
func Key(flowID, instanceID, variantID string) string {
	return Default.Key(Ref{FlowID: flowID, InstanceID: instanceID, VariantID: variantID})
}

// Key composes the storage key of ref inside the space.
func (s Space) Key(ref Ref) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	b.WriteString(fieldFlow + "=" + url.QueryEscape(ref.FlowID))
	if ref.InstanceID != "" {
		b.WriteString(separator + fieldInstance + "=" + url.QueryEscape(ref.InstanceID))
	}
	if ref.VariantID != "" {
		b.WriteString(separator + fieldVariant + "=" + url.QueryEscape(ref.VariantID))
	}
	return b.String()
}

// Owns reports whether key was produced by this space.
func (s Space) Owns(key string) bool {
	_, err := s.Parse(key)
	return err == nil
}

// Parse recovers the identity encoded in key.
func (s Space) Parse(key string) (Ref, error) {
	if !strings.HasPrefix(key, s.Prefix) {
		return Ref{}, fmt.Errorf("%w: %q", ErrForeignKey, key)
	}

	var ref Ref
	seen := map[string]bool{}
	for i, part := range strings.Split(strings.TrimPrefix(key, s.Prefix), separator) {
		name, escaped, ok := strings.Cut(part, "=")
		if !ok {
			return Ref{}, fmt.Errorf("%w: malformed component %q", ErrForeignKey, part)
		}
		if seen[name] {
			return Ref{}, fmt.Errorf("%w: duplicate component %q", ErrForeignKey, name)
		}
		seen[name] = true

		value, err := url.QueryUnescape(escaped)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %v", ErrForeignKey, err)
		}

		switch {
		case i == 0 && name == fieldFlow:
			ref.FlowID = value
		case i > 0 && name == fieldInstance && !seen[fieldVariant]:
			ref.InstanceID = value
		case i > 0 && name == fieldVariant:
			ref.VariantID = value
		default:
			return Ref{}, fmt.Errorf("%w: unexpected component %q", ErrForeignKey, name)
		}
	}
	return ref, nil
}

// Filter keeps the keys of the space that belong to flowID (every instance and variant).
func (s Space) Filter(keys []string, flowID string) []Ref {
	var refs []Ref
	for _, key := range keys {
		ref, err := s.Parse(key)
		if err != nil || ref.FlowID != flowID {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// NewInstanceID returns a random id suitable for isolating a new run of a flow template.
func NewInstanceID() string {
	return uuid.NewString()
}

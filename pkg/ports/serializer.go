package ports

import "github.com/aretw0/waypoint/pkg/domain"

// Serializer converts snapshots to the string form held by a Store.
type Serializer interface {
	Marshal(state *domain.PersistedFlowState) (string, error)
	Unmarshal(data string) (*domain.PersistedFlowState, error)
}

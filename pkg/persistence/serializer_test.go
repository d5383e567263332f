package persistence_test

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/persistence"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializers_WireEnvelope(t *testing.T) {
	saved := fixedNow
	envelope := &domain.PersistedFlowState{
		FlowState: *activeState("a", domain.Context{"name": "ada"}),
		Version:   "1",
		SavedAt:   &saved,
	}

	for name, s := range map[string]ports.Serializer{
		"json": persistence.JSONSerializer{},
		"yaml": persistence.YAMLSerializer{},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := s.Marshal(envelope)
			require.NoError(t, err)
			assert.Contains(t, data, "stepId")
			assert.NotContains(t, data, "instanceId", "empty envelope fields are omitted")

			back, err := s.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, "a", back.StepID)
			assert.Equal(t, "1", back.Version)
			assert.Equal(t, "ada", back.Context["name"])
			require.NotNil(t, back.SavedAt)
			assert.True(t, saved.Equal(*back.SavedAt))
		})
	}
}

package memory_test

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	loader, err := memory.NewFromJSON(`{
		"id": "onboarding",
		"start": "welcome",
		"steps": {"welcome": {"next": "done"}, "done": {}}
	}`)
	require.NoError(t, err)

	require.NoError(t, loader.Add("short", &domain.FlowDefinition{
		ID:    "onboarding",
		Start: "done",
		Steps: map[string]domain.StepDefinition{"done": {}},
	}))

	ports.RunLoaderContract(t, loader, "onboarding", "short")
	assert.Equal(t, []string{"onboarding"}, loader.List())
}

func TestInMemoryLoader_RejectsInvalid(t *testing.T) {
	_, err := memory.NewLoader(&domain.FlowDefinition{ID: "broken", Start: "nowhere"})
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

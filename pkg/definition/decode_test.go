package definition

import (
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	def, err := ParseJSON([]byte(`{
		"id": "sample",
		"start": "a",
		"version": "2",
		"steps": {"a": {"next": "b"}, "b": {"next": ["c", "d"]}, "c": {}, "d": {}}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "sample", def.ID)
	assert.Equal(t, "2", def.Version)
	assert.Equal(t, domain.TransitionStep, def.Steps["a"].Next.Kind())
	assert.Equal(t, []string{"c", "d"}, def.Steps["b"].Next.Targets())
	assert.True(t, def.Steps["c"].Next.IsTerminal())
}

func TestParseYAML(t *testing.T) {
	def, err := ParseYAML([]byte(`
id: onboarding
start: welcome
version: 3
steps:
  welcome:
    next: profile
  profile:
    next: [team, solo]
  team: {}
  solo:
`))
	require.NoError(t, err)

	assert.Equal(t, "3", def.Version, "numeric versions are stringified")
	assert.Equal(t, []string{"profile", "solo", "team", "welcome"}, def.StepIDs())
	assert.Equal(t, domain.TransitionChoice, def.Steps["profile"].Next.Kind())
}

func TestParse_DanglingReference(t *testing.T) {
	_, err := ParseYAML([]byte(`
id: broken
start: a
steps:
  a: {next: b}
`))
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestParse_Malformed(t *testing.T) {
	_, err := ParseJSON([]byte(`{"id": `))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`{"id": "x", "start": "a", "steps": {"a": {"next": 12}}}`))
	assert.Error(t, err)
}

func TestDecode_FunctionNext(t *testing.T) {
	def, err := Decode(map[string]any{
		"id":    "branching",
		"start": "age",
		"steps": map[string]any{
			"age": map[string]any{
				"next": func(c domain.Context) string {
					if c["age"].(int) >= 18 {
						return "adult"
					}
					return "minor"
				},
			},
			"adult": map[string]any{},
			"minor": map[string]any{},
		},
	})
	require.NoError(t, err)

	next := def.Steps["age"].Next
	require.Equal(t, domain.TransitionComputed, next.Kind())
	assert.Equal(t, "adult", next.Func()(domain.Context{"age": 30}))
}

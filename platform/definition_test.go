package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidDefinition(t *testing.T) *Definition {
	t.Helper()
	exec, err := NewPrivilegeLevel("exec", `>\s?$`)
	require.NoError(t, err)
	privExec, err := NewPrivilegeLevel("privileged_exec", `#\s?$`)
	require.NoError(t, err)
	privExec.WithParent("exec")

	return New("test_platform").
		WithPrivilege(exec).
		WithPrivilege(privExec).
		WithDefaultPrivilege("privileged_exec")
}

func TestDefinitionValidateSucceeds(t *testing.T) {
	def := newValidDefinition(t)
	require.NoError(t, def.Validate())
	assert.NotNil(t, def.Behavior, "Validate must fill in DefaultBehavior when none was attached")
}

func TestDefinitionValidateRejectsMissingDefault(t *testing.T) {
	def := New("test_platform")
	err := def.Validate()
	assert.Error(t, err)
}

func TestDefinitionValidateRejectsUnregisteredDefault(t *testing.T) {
	def := New("test_platform").WithDefaultPrivilege("ghost")
	err := def.Validate()
	assert.Error(t, err)
}

func TestDefinitionValidateRejectsUnknownParent(t *testing.T) {
	level, err := NewPrivilegeLevel("configuration", `#\s?$`)
	require.NoError(t, err)
	level.WithParent("nonexistent")

	def := New("test_platform").
		WithPrivilege(level).
		WithDefaultPrivilege("configuration")
	assert.Error(t, def.Validate())
}

func TestDefinitionValidateRejectsCycle(t *testing.T) {
	a, err := NewPrivilegeLevel("a", `a#\s?$`)
	require.NoError(t, err)
	b, err := NewPrivilegeLevel("b", `b#\s?$`)
	require.NoError(t, err)
	a.WithParent("b")
	b.WithParent("a")

	def := New("test_platform").
		WithPrivilege(a).
		WithPrivilege(b).
		WithDefaultPrivilege("a")
	assert.Error(t, def.Validate())
}

func TestDefinitionGraphIsCached(t *testing.T) {
	def := newValidDefinition(t)
	g1 := def.Graph()
	g2 := def.Graph()
	assert.Same(t, g1, g2)
}

func TestDefinitionGraphInvalidatesOnNewPrivilege(t *testing.T) {
	def := newValidDefinition(t)
	g1 := def.Graph()

	config, err := NewPrivilegeLevel("configuration", `config#\s?$`)
	require.NoError(t, err)
	config.WithParent("privileged_exec")
	def.WithPrivilege(config)

	g2 := def.Graph()
	assert.NotSame(t, g1, g2)
}

func TestDefinitionFailurePatternsFallBackToLiteral(t *testing.T) {
	def := New("test_platform").WithFailurePattern("% Invalid input").WithFailurePattern("(unclosed")
	patterns := def.FailurePatterns()
	require.Len(t, patterns, 2)
	assert.True(t, patterns[0].MatchString("% Invalid input detected"))
	assert.True(t, patterns[1].MatchString("literal (unclosed text"))
}

func TestDefinitionPromptPatternsFollowLevelOrder(t *testing.T) {
	def := newValidDefinition(t)
	patterns := def.PromptPatterns()
	require.Len(t, patterns, 2)
	assert.True(t, patterns[0].MatchString("router> "))
	assert.True(t, patterns[1].MatchString("router# "))
}

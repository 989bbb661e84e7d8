package platform

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripLinesHavingPrefix(t *testing.T) {
	in := "interface Ethernet1\n[edit interfaces]\ndescription uplink\n[edit]\n"
	out := StripLinesHavingPrefix(in, "[edit")
	assert.Equal(t, "interface Ethernet1\ndescription uplink\n", out)
}

func TestStripLinesHavingPrefixNoMatch(t *testing.T) {
	in := "line one\nline two"
	assert.Equal(t, in, StripLinesHavingPrefix(in, "[edit"))
}

func TestDefaultBehaviorEscalateWithAuth(t *testing.T) {
	var written []string
	passwordPrompt := regexp.MustCompile(`[Pp]assword:\s?$`)
	target, err := NewPrivilegeLevel("root", `#\s?$`)
	require.NoError(t, err)
	target.WithParent("user").WithEscalate("sudo -i")
	target, err = target.WithEscalateAuth(passwordPrompt.String())
	require.NoError(t, err)

	nav := &NavContext{
		WriteLine: func(ctx context.Context, line string) error {
			written = append(written, line)
			return nil
		},
		ReadUntilPattern: func(ctx context.Context, re *regexp.Regexp) (string, string, error) {
			return "", "Password: ", nil
		},
		ReadUntilPrompt: func(ctx context.Context, level *PrivilegeLevel) (string, string, error) {
			return "", "root# ", nil
		},
		Password: func() string { return "hunter2" },
	}

	err = DefaultBehavior{}.Escalate(context.Background(), nav, nil, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo -i", "hunter2"}, written)
}

func TestDefaultBehaviorDeescalateLooksUpParent(t *testing.T) {
	user, err := NewPrivilegeLevel("user", `\$\s?$`)
	require.NoError(t, err)
	root, err := NewPrivilegeLevel("root", `#\s?$`)
	require.NoError(t, err)
	root.WithParent("user").WithDeescalate("exit")

	def := New("test").WithPrivilege(user).WithPrivilege(root)

	var written []string
	nav := &NavContext{
		WriteLine: func(ctx context.Context, line string) error {
			written = append(written, line)
			return nil
		},
		ReadUntilPrompt: func(ctx context.Context, level *PrivilegeLevel) (string, string, error) {
			assert.Equal(t, "user", level.Name)
			return "", "user$ ", nil
		},
	}

	err = DefaultBehavior{}.Deescalate(context.Background(), nav, def, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"exit"}, written)
}

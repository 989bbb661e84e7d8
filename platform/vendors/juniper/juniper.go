// Package juniper defines the platform.Definition for Juniper JUNOS
// devices. Prompt patterns are adapted from scrapli's JunOS driver, per
// the reference implementation this module's vendor set was grounded on.
package juniper

import (
	"github.com/morganhein/netshell/platform"
)

// Name is the registered platform identifier.
const Name = "juniper_junos"

// Platform constructs the Juniper JUNOS platform definition: exec (">"),
// configuration ("#"), shell ("%"/"$"), and root_shell ("%"/"#").
func Platform() *platform.Definition {
	exec, err := platform.NewPrivilegeLevel("exec", `(?mi)^(\{\w+(:(\w+)?\d)?\}\n)?[\w\-@()/:.]{1,63}>\s?$`)
	if err != nil {
		panic(err)
	}

	configuration, err := platform.NewPrivilegeLevel("configuration", `(?mi)^(\{\w+(:(\w+)?\d)?\}\[edit\]\n)?[\w\-@()/:.]{1,63}#\s?$`)
	if err != nil {
		panic(err)
	}
	configuration.WithParent("exec").WithEscalate("configure").WithDeescalate("exit configuration-mode")

	shell, err := platform.NewPrivilegeLevel("shell", `(?mi)^.*[%$]\s?$`)
	if err != nil {
		panic(err)
	}
	shell.WithParent("exec").WithEscalate("start shell").WithDeescalate("exit").WithNotContains("root")

	rootShell, err := platform.NewPrivilegeLevel("root_shell", `(?mi)^.*root@(?:\S*:?\S*\s?)?[%#]\s?$`)
	if err != nil {
		panic(err)
	}
	rootShell.WithParent("exec").WithEscalate("start shell user root").WithDeescalate("exit")
	if _, err := rootShell.WithEscalateAuth(`(?i)^password:\s?$`); err != nil {
		panic(err)
	}

	def := platform.New(Name).
		WithPrivilege(exec).
		WithPrivilege(configuration).
		WithPrivilege(shell).
		WithPrivilege(rootShell).
		WithDefaultPrivilege("exec").
		WithFailurePattern("unknown command").
		WithFailurePattern("syntax error").
		WithFailurePattern("error:").
		WithFailurePattern("missing argument").
		WithFailurePattern("invalid").
		WithFailurePattern("is ambiguous").
		WithFailurePattern("No valid completions").
		WithFailurePattern("missing mandatory argument").
		WithFailurePattern("invalid numeric value").
		WithOnOpenCommand("set cli screen-length 0").
		WithOnOpenCommand("set cli screen-width 511").
		WithTerminalSize(511, 24).
		WithBehavior(Behavior{})

	return def
}

// Behavior is the Juniper-specific VendorBehavior: everything defaults
// except output normalization, which additionally filters the "[edit...]"
// routing-engine/context banner lines JUNOS interleaves with real output.
type Behavior struct {
	platform.DefaultBehavior
}

func (Behavior) NormalizeOutput(raw, command string) string {
	return platform.StripLinesHavingPrefix(raw, "[edit")
}

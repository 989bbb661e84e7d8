// Package arista defines the platform.Definition for Arista EOS devices.
// Prompt patterns are adapted from scrapli's EOS driver.
package arista

import "github.com/morganhein/netshell/platform"

// Name is the registered platform identifier.
const Name = "arista_eos"

// Platform constructs the Arista EOS platform definition: exec (">"),
// privilege_exec ("#"), and configuration ("(config*)#").
func Platform() *platform.Definition {
	exec, err := platform.NewPrivilegeLevel("exec", `(?mi)^[\w.\-@()/: ]{1,63}>\s?$`)
	if err != nil {
		panic(err)
	}

	privilegeExec, err := platform.NewPrivilegeLevel("privilege_exec", `(?mi)^[\w.\-@()/: ]{1,63}#\s?$`)
	if err != nil {
		panic(err)
	}
	privilegeExec.WithParent("exec").WithEscalate("enable").WithDeescalate("disable").WithNotContains("(config")
	if _, err := privilegeExec.WithEscalateAuth(`(?mi)^password:\s?$`); err != nil {
		panic(err)
	}

	configuration, err := platform.NewPrivilegeLevel("configuration", `(?mi)^[\w.\-@()/: ]{1,63}\(config[\w.\-@/:+]{0,63}\)#\s?$`)
	if err != nil {
		panic(err)
	}
	configuration.WithParent("privilege_exec").WithEscalate("configure terminal").WithDeescalate("end").WithNotContains("(config-s-")

	def := platform.New(Name).
		WithPrivilege(exec).
		WithPrivilege(privilegeExec).
		WithPrivilege(configuration).
		WithDefaultPrivilege("privilege_exec").
		WithFailurePattern("% Ambiguous command").
		WithFailurePattern("% Error").
		WithFailurePattern("% Incomplete command").
		WithFailurePattern("% Invalid input").
		WithFailurePattern("% Cannot commit").
		WithFailurePattern("% Unavailable command").
		WithFailurePattern("% Duplicate sequence number").
		WithOnOpenCommand("terminal length 0").
		WithOnOpenCommand("terminal width 32767").
		WithTerminalSize(32767, 24)

	return def
}

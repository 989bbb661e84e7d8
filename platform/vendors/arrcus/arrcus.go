// Package arrcus defines the platform.Definition for Arrcus ArcOS devices.
// ArcOS is built on ConfD (Tail-f/Cisco) with a C-style CLI: exec
// ("user@host#") and configuration ("user@host(config)#") prompts, a
// candidate configuration model (commit/rollback/validate/diff), and
// terminal commands like "set cli screen-width".
package arrcus

import "github.com/morganhein/netshell/platform"

// Name is the registered platform identifier.
const Name = "arrcus_arcos"

// Platform constructs the Arrcus ArcOS platform definition.
func Platform() *platform.Definition {
	exec, err := platform.NewPrivilegeLevel("exec", `(?mi)^[\w\-.@()/:]{1,63}#\s?$`)
	if err != nil {
		panic(err)
	}
	exec.WithNotContains("(config")

	configuration, err := platform.NewPrivilegeLevel("configuration", `(?mi)^[\w\-.@()/:]{1,63}\(config[\w.\-@/:]{0,32}\)#\s?$`)
	if err != nil {
		panic(err)
	}
	configuration.WithParent("exec").WithEscalate("config").WithDeescalate("exit")

	def := platform.New(Name).
		WithPrivilege(exec).
		WithPrivilege(configuration).
		WithDefaultPrivilege("exec").
		WithFailurePattern("is ambiguous").
		WithFailurePattern("No valid completions").
		WithFailurePattern("unknown command").
		WithFailurePattern("syntax error").
		WithOnOpenCommand("set cli screen-width 511").
		WithOnOpenCommand("set cli screen-length 0").
		WithOnOpenCommand("set cli complete-on-space off")

	return def
}

// Package linux defines the platform.Definition for POSIX hosts exposing
// a plain interactive shell, the simplest platform: "$" (user) and "#"
// (root) prompts.
package linux

import "github.com/morganhein/netshell/platform"

// Name is the registered platform identifier.
const Name = "linux"

// Platform constructs the Linux platform definition.
func Platform() *platform.Definition {
	// Patterns are anchored to the start of the line (not just the trailing
	// symbol) so the matched text spans the whole prompt line: the output
	// normalizer strips a trailing prompt by exact line comparison.
	user, err := platform.NewPrivilegeLevel("user", `(?m)^.*[$]\s?$`)
	if err != nil {
		panic(err)
	}

	root, err := platform.NewPrivilegeLevel("root", `(?m)^.*[#]\s?$`)
	if err != nil {
		panic(err)
	}
	root.WithParent("user").WithEscalate("sudo -i").WithDeescalate("exit")
	if _, err := root.WithEscalateAuth(`[Pp]assword[:\s]*$`); err != nil {
		panic(err)
	}

	def := platform.New(Name).
		WithPrivilege(user).
		WithPrivilege(root).
		WithDefaultPrivilege("user").
		WithFailurePattern("command not found").
		WithFailurePattern("No such file or directory").
		WithFailurePattern("Permission denied").
		WithFailurePattern("Operation not permitted").
		WithTerminalSize(511, 24)

	return def
}

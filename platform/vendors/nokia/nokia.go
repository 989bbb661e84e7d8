// Package nokia defines the platform.Definition for Nokia SR OS devices.
//
// Nokia SR OS ships two CLI engines, MD-CLI and Classic. Which one a
// session lands in depends on the device's configured default-engine
// setting, not on anything the driver chooses — so rather than probing a
// version command and switching between two platform variants, this
// definition registers both engines' privilege levels in one merged set,
// disambiguated purely by prompt-pattern matching (each level's pattern
// and NotContains list are distinct enough that exactly one matches any
// given prompt). See DESIGN.md for why this reading of spec.md's "detect
// MD-CLI vs Classic... and choose a variant platform" was adopted.
package nokia

import "github.com/morganhein/netshell/platform"

// Name is the registered platform identifier.
const Name = "nokia_sros"

// Platform constructs the merged Nokia SR OS platform definition.
func Platform() *platform.Definition {
	exec, err := platform.NewPrivilegeLevel("exec", `(?mi)^\[.*\]\r?\n\*?[abcd]:[\w._-]+@[\w\s_.-]+#\s?$`)
	if err != nil {
		panic(err)
	}
	exec.WithNotContains("(ex)").WithNotContains("(ro)").WithNotContains("(gl)").WithNotContains("(pr)")

	configuration, err := platform.NewPrivilegeLevel("configuration", `(?mi)^!?\*?\((?:ex|ex:bof)\)\[/?\]\r?\n\*?[abcd]:[\w._-]+@[\w\s_.-]+#\s?$`)
	if err != nil {
		panic(err)
	}
	configuration.WithParent("exec").WithEscalate("edit-config exclusive").WithDeescalate("quit-config")

	configurationWithPath, err := platform.NewPrivilegeLevel("configuration_with_path", `(?mi)^!?\*?\((?:ex|ex:bof)\)\[(?:\S|\s){2,}\]\r?\n\*?[abcd]:[\w._-]+@[\w\s_.-]+#\s?$`)
	if err != nil {
		panic(err)
	}
	configurationWithPath.WithParent("configuration").WithDeescalate("exit all")

	classicExec, err := platform.NewPrivilegeLevel("classic_exec", `(?mi)^\*?[abcd]:[\w\s_.-]+#\s?$`)
	if err != nil {
		panic(err)
	}
	classicExec.WithNotContains("@").WithNotContains(">config")

	classicConfiguration, err := platform.NewPrivilegeLevel("classic_configuration", `(?mi)^\*?[abcd]:[\w\s_.-]+>config[\w>]*(#|\$)\s?$`)
	if err != nil {
		panic(err)
	}
	classicConfiguration.WithParent("classic_exec").WithEscalate("configure").WithDeescalate("exit all").WithNotContains("@")

	def := platform.New(Name).
		WithPrivilege(exec).
		WithPrivilege(configuration).
		WithPrivilege(configurationWithPath).
		WithPrivilege(classicExec).
		WithPrivilege(classicConfiguration).
		WithDefaultPrivilege("exec").
		WithFailurePattern("MINOR:").
		WithFailurePattern("MAJOR:").
		WithFailurePattern("CRITICAL:").
		WithFailurePattern("Error:").
		WithFailurePattern("Bad Command:").
		// Both engines' paging-disable commands are attempted; whichever
		// engine the session isn't running in simply fails the command,
		// which OnOpen below ignores.
		WithOnOpenCommand("environment command-completion space false").
		WithOnOpenCommand("environment console width 512").
		WithOnOpenCommand("environment more false").
		WithOnOpenCommand("//environment no more").
		WithOnOpenCommand("environment no more").
		WithTerminalSize(512, 24).
		WithBehavior(Behavior{})

	return def
}

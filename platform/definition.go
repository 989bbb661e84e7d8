package platform

import (
	"fmt"
	"regexp"

	"github.com/morganhein/netshell/nerrors"
)

// Definition is immutable per-vendor data: the privilege set, failure
// patterns, on-open/on-close commands, terminal size, and an opaque
// VendorBehavior handle. Definitions are constructed once (built-in or
// user-supplied) and are safe to share across any number of Drivers/tasks.
type Definition struct {
	Name               string
	Levels             map[string]*PrivilegeLevel
	LevelOrder         []string // deterministic iteration order
	DefaultPrivilege   string
	FailedWhenContains []string
	OnOpenCommands     []string
	OnCloseCommands    []string
	TerminalWidth      int
	TerminalHeight     int
	Behavior           VendorBehavior

	graph *Graph
}

// New starts building a platform Definition identified by name.
func New(name string) *Definition {
	return &Definition{
		Name:           name,
		Levels:         make(map[string]*PrivilegeLevel),
		TerminalWidth:  511,
		TerminalHeight: 24,
	}
}

// WithPrivilege registers a privilege level.
func (d *Definition) WithPrivilege(level *PrivilegeLevel) *Definition {
	if _, exists := d.Levels[level.Name]; !exists {
		d.LevelOrder = append(d.LevelOrder, level.Name)
	}
	d.Levels[level.Name] = level
	d.graph = nil
	return d
}

// WithDefaultPrivilege sets the platform's default privilege level, the
// level Close returns to and Validate requires to be registered. The
// level after Open is detected from the first prompt, not assumed.
func (d *Definition) WithDefaultPrivilege(name string) *Definition {
	d.DefaultPrivilege = name
	return d
}

// WithFailurePattern appends a failure substring or regex.
func (d *Definition) WithFailurePattern(pattern string) *Definition {
	d.FailedWhenContains = append(d.FailedWhenContains, pattern)
	return d
}

// WithOnOpenCommand appends a command run once after initial prompt
// synchronization (e.g. disabling a pager).
func (d *Definition) WithOnOpenCommand(cmd string) *Definition {
	d.OnOpenCommands = append(d.OnOpenCommands, cmd)
	return d
}

// WithOnCloseCommand appends a command run during best-effort close.
func (d *Definition) WithOnCloseCommand(cmd string) *Definition {
	d.OnCloseCommands = append(d.OnCloseCommands, cmd)
	return d
}

// WithTerminalSize overrides the default 511x24 terminal dimensions.
func (d *Definition) WithTerminalSize(width, height int) *Definition {
	d.TerminalWidth = width
	d.TerminalHeight = height
	return d
}

// WithBehavior attaches a VendorBehavior. Platforms that don't call this
// get DefaultBehavior at Validate time.
func (d *Definition) WithBehavior(b VendorBehavior) *Definition {
	d.Behavior = b
	return d
}

// GetPrivilege looks up a level by name.
func (d *Definition) GetPrivilege(name string) (*PrivilegeLevel, bool) {
	l, ok := d.Levels[name]
	return l, ok
}

// Graph returns the (lazily built) privilege Graph for this Definition.
func (d *Definition) Graph() *Graph {
	if d.graph == nil {
		d.graph = NewGraph(d.LevelOrder, d.Levels)
	}
	return d.graph
}

// FailurePatterns compiles FailedWhenContains into regexes, treating
// invalid patterns as literal substrings.
func (d *Definition) FailurePatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(d.FailedWhenContains))
	for _, p := range d.FailedWhenContains {
		re, err := regexp.Compile(p)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(p))
		}
		out = append(out, re)
	}
	return out
}

// PromptPatterns returns every level's compiled prompt pattern, in
// LevelOrder, for use building a combined "any privilege prompt" matcher.
func (d *Definition) PromptPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(d.LevelOrder))
	for _, name := range d.LevelOrder {
		out = append(out, d.Levels[name].Pattern)
	}
	return out
}

// Validate checks the builder-time invariants: the parent-induced graph is
// acyclic, every declared parent is present in the same platform, and a
// default privilege is set and registered. A level without a parent is
// accepted whether or not it is the default. It also fills in
// DefaultBehavior when none was attached.
func (d *Definition) Validate() error {
	if d.DefaultPrivilege == "" {
		return nerrors.New(nerrors.KindInvalidInput, "platform.Definition.Validate", "default privilege not set")
	}
	if _, ok := d.Levels[d.DefaultPrivilege]; !ok {
		return nerrors.New(nerrors.KindInvalidInput, "platform.Definition.Validate", "default privilege not registered")
	}
	for _, name := range d.LevelOrder {
		level := d.Levels[name]
		if level.Parent == "" {
			continue
		}
		if _, ok := d.Levels[level.Parent]; !ok {
			return nerrors.New(nerrors.KindInvalidInput, "platform.Definition.Validate",
				fmt.Sprintf("level %q has unknown parent %q", name, level.Parent))
		}
	}
	if err := d.checkAcyclic(); err != nil {
		return err
	}
	if d.Behavior == nil {
		d.Behavior = DefaultBehavior{}
	}
	return nil
}

func (d *Definition) checkAcyclic() error {
	for _, start := range d.LevelOrder {
		seen := map[string]bool{start: true}
		cur := start
		for {
			level := d.Levels[cur]
			if level.Parent == "" {
				break
			}
			if seen[level.Parent] {
				return nerrors.New(nerrors.KindInvalidInput, "platform.Definition.Validate",
					"cyclic privilege graph detected at "+level.Parent)
			}
			seen[level.Parent] = true
			cur = level.Parent
		}
	}
	return nil
}

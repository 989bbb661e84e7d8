// Package platform defines per-vendor privilege graphs and platform data:
// the directed graph of named privilege levels (component D) and the
// immutable platform definition plus vendor behavior handle (component E).
package platform

import (
	"fmt"
	"regexp"
	"strings"
)

// PrivilegeLevel is a named shell mode with a distinctive prompt pattern
// and navigation edges to its parent mode.
type PrivilegeLevel struct {
	Name               string
	Pattern            *regexp.Regexp
	Parent             string // empty for a root level
	EscalateCommand    string
	DeescalateCommand  string
	EscalateAuth       bool
	EscalatePrompt     *regexp.Regexp
	NotContains        []string
}

// NewPrivilegeLevel compiles promptRegex and returns a root-level
// PrivilegeLevel (no parent, no escalate/deescalate). Use the With*
// builders to attach navigation edges.
func NewPrivilegeLevel(name, promptRegex string) (*PrivilegeLevel, error) {
	re, err := regexp.Compile(promptRegex)
	if err != nil {
		return nil, fmt.Errorf("compile prompt pattern for %q: %w", name, err)
	}
	return &PrivilegeLevel{Name: name, Pattern: re}, nil
}

// WithParent sets the parent level name.
func (l *PrivilegeLevel) WithParent(parent string) *PrivilegeLevel {
	l.Parent = parent
	return l
}

// WithEscalate sets the command issued to move from Parent to this level.
func (l *PrivilegeLevel) WithEscalate(command string) *PrivilegeLevel {
	l.EscalateCommand = command
	return l
}

// WithDeescalate sets the command issued to move from this level back to
// Parent.
func (l *PrivilegeLevel) WithDeescalate(command string) *PrivilegeLevel {
	l.DeescalateCommand = command
	return l
}

// WithEscalateAuth marks this level as requiring an authentication step
// during escalation and compiles the prompt that signals the device is
// waiting for the credential.
func (l *PrivilegeLevel) WithEscalateAuth(promptRegex string) (*PrivilegeLevel, error) {
	re, err := regexp.Compile(promptRegex)
	if err != nil {
		return nil, fmt.Errorf("compile escalate-auth prompt for %q: %w", l.Name, err)
	}
	l.EscalateAuth = true
	l.EscalatePrompt = re
	return l, nil
}

// WithNotContains appends a substring whose presence in a candidate prompt
// disqualifies a match against this level, used to disambiguate prompts
// that would otherwise match more than one level's pattern.
func (l *PrivilegeLevel) WithNotContains(substr string) *PrivilegeLevel {
	l.NotContains = append(l.NotContains, substr)
	return l
}

// Matches reports whether prompt identifies this privilege level: none of
// NotContains may appear in prompt, and Pattern must match.
func (l *PrivilegeLevel) Matches(prompt string) bool {
	for _, substr := range l.NotContains {
		if strings.Contains(prompt, substr) {
			return false
		}
	}
	return l.Pattern.MatchString(prompt)
}

package platform

import (
	"context"
	"regexp"
	"strings"
)

// NavContext is the narrow capability surface a VendorBehavior needs to
// drive on-open routines and privilege navigation. The Driver constructs
// one per call instead of passing itself, so this package never imports
// driver (which imports platform) — the opaque "behavior handle" of
// spec.md §4.E, expressed as a small set of closures rather than an
// interface satisfied by a concrete Driver type.
type NavContext struct {
	// WriteLine sends text followed by a line feed.
	WriteLine func(ctx context.Context, line string) error
	// ReadUntilPrompt reads until level's prompt matches at the buffer
	// tail, returning the raw bytes and the matched prompt text.
	ReadUntilPrompt func(ctx context.Context, level *PrivilegeLevel) (raw, prompt string, err error)
	// ReadUntilPattern reads until re matches at the buffer tail.
	ReadUntilPattern func(ctx context.Context, re *regexp.Regexp) (raw, matched string, err error)
	// RunCommand sends cmd and reads until any known level's prompt, returning
	// the normalized result (used by on-open routines to run
	// paging-disable commands).
	RunCommand func(ctx context.Context, cmd string) (result string, err error)
	// Password returns the credential to send when an escalation step
	// requires authentication (e.g. "enable" password).
	Password func() string
}

// VendorBehavior is the polymorphic object attached to a Definition. A
// small handful of methods cover every vendor quirk observed in the
// built-in platforms: default implementations suffice for most, and only
// vendors needing an open-time probe or a non-default escalation sequence
// override one.
type VendorBehavior interface {
	// OnOpen runs once after initial prompt synchronization (paging
	// disable, version probes).
	OnOpen(ctx context.Context, nav *NavContext, def *Definition) error
	// OnClose runs during best-effort driver close, before the transport
	// is torn down.
	OnClose(ctx context.Context, nav *NavContext, def *Definition) error
	// Escalate moves from target.Parent to target.
	Escalate(ctx context.Context, nav *NavContext, def *Definition, target *PrivilegeLevel) error
	// Deescalate moves from current back to current.Parent.
	Deescalate(ctx context.Context, nav *NavContext, def *Definition, current *PrivilegeLevel) error
	// NormalizeOutput applies any vendor-specific post-processing beyond
	// the shared normalizer (e.g. Juniper's "[edit ...]" banner removal).
	NormalizeOutput(raw, command string) string
	// FailureMatch returns a failure message if output indicates a
	// command-level failure beyond the platform's FailedWhenContains list.
	FailureMatch(output string) (message string, failed bool)
}

// DefaultBehavior implements the "send the edge command and expect the
// target prompt" navigation spec.md describes as the default, runs the
// platform's OnOpenCommands and OnCloseCommands, and applies no output
// post-processing. Vendors override only what they need.
type DefaultBehavior struct{}

func (DefaultBehavior) OnOpen(ctx context.Context, nav *NavContext, def *Definition) error {
	for _, cmd := range def.OnOpenCommands {
		if _, err := nav.RunCommand(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (DefaultBehavior) OnClose(ctx context.Context, nav *NavContext, def *Definition) error {
	for _, cmd := range def.OnCloseCommands {
		if _, err := nav.RunCommand(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (DefaultBehavior) Escalate(ctx context.Context, nav *NavContext, def *Definition, target *PrivilegeLevel) error {
	if err := nav.WriteLine(ctx, target.EscalateCommand); err != nil {
		return err
	}
	if target.EscalateAuth {
		if _, _, err := nav.ReadUntilPattern(ctx, target.EscalatePrompt); err != nil {
			return err
		}
		if err := nav.WriteLine(ctx, nav.Password()); err != nil {
			return err
		}
	}
	_, _, err := nav.ReadUntilPrompt(ctx, target)
	return err
}

func (DefaultBehavior) Deescalate(ctx context.Context, nav *NavContext, def *Definition, current *PrivilegeLevel) error {
	if err := nav.WriteLine(ctx, current.DeescalateCommand); err != nil {
		return err
	}
	if current.Parent == "" {
		return nil
	}
	parent, ok := def.GetPrivilege(current.Parent)
	if !ok {
		return nil
	}
	_, _, err := nav.ReadUntilPrompt(ctx, parent)
	return err
}

func (DefaultBehavior) NormalizeOutput(raw, command string) string {
	return raw
}

func (DefaultBehavior) FailureMatch(output string) (string, bool) {
	return "", false
}

// StripLinesHavingPrefix removes every line of s that, once trimmed,
// begins with prefix. Shared by vendors (Juniper) whose device output
// interleaves banner lines with the real response.
func StripLinesHavingPrefix(s, prefix string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

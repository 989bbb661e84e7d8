// Package session implements configuration sessions (component I):
// transactional configuration batches distinct from ordinary privilege
// levels, with commit/abort/detach semantics and optional vendor
// capabilities (diff, validate, confirmed commit, named sessions).
package session

import (
	"context"
	"strings"
	"time"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/netlog"
)

// ConfigSession is a configuration transaction against a Driver. Go has no
// by-value consuming methods, so single-use is enforced at runtime with a
// consumed guard rather than at compile time: Commit, Abort and Detach all
// set it, and Generic's SendCommand, Commit, Abort and Detach reject a
// call against an already resolved session, while Close on one does
// nothing.
type ConfigSession interface {
	SendCommand(ctx context.Context, cmd string) (driver.Response, error)
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	Detach(ctx context.Context) error
	Close() error
}

// Diffable sessions can show uncommitted changes.
type Diffable interface {
	Diff(ctx context.Context) (string, error)
}

// Validatable sessions can check configuration validity without
// committing.
type Validatable interface {
	Validate(ctx context.Context) (ValidationResult, error)
}

// ConfirmableCommit sessions support a commit that auto-rolls-back unless
// confirmed within timeout.
type ConfirmableCommit interface {
	CommitConfirmed(ctx context.Context, timeout time.Duration) error
}

// NamedSession sessions are identified by a device-side session name
// (Arista's "configure session <name>").
type NamedSession interface {
	SessionName() string
}

// ValidationResult is the outcome of a Validatable.Validate call.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// CapabilityBundle answers "does this session support X" without the
// caller needing to know the concrete vendor session type.
type CapabilityBundle struct {
	session ConfigSession
}

// NewCapabilityBundle wraps session for capability queries.
func NewCapabilityBundle(s ConfigSession) CapabilityBundle {
	return CapabilityBundle{session: s}
}

// IsCapable reports whether the wrapped session implements the named
// optional capability ("diff", "validate", "commit_confirmed", "named").
func (c CapabilityBundle) IsCapable(name string) bool {
	switch name {
	case "diff":
		_, ok := c.session.(Diffable)
		return ok
	case "validate":
		_, ok := c.session.(Validatable)
		return ok
	case "commit_confirmed":
		_, ok := c.session.(ConfirmableCommit)
		return ok
	case "named":
		_, ok := c.session.(NamedSession)
		return ok
	default:
		return false
	}
}

// Generic is the vendor-agnostic session: any platform with a privilege
// level whose name contains "config" supports it, escalating to that
// level and restoring the original privilege on commit/abort. Vendors
// needing named sessions, diff, validate, or confirmed commit define their
// own type instead (platform/vendors/juniper, platform/vendors/arista,
// platform/vendors/confd).
type Generic struct {
	d                 *driver.Driver
	originalPrivilege string
	configPrivilege   string
	consumed          bool
}

// NewGeneric enters a configuration session on d, finding the first
// privilege level whose name contains "config" (case-insensitive).
func NewGeneric(ctx context.Context, d *driver.Driver) (*Generic, error) {
	original := d.CurrentPrivilege()

	configPrivilege := ""
	for _, name := range d.Definition().LevelOrder {
		if strings.Contains(strings.ToLower(name), "config") {
			configPrivilege = name
			break
		}
	}
	if configPrivilege == "" {
		return nil, nerrors.New(nerrors.KindInvalidPrivilegePath, "session.NewGeneric", "no configuration privilege level found")
	}

	if err := d.AcquirePrivilege(ctx, configPrivilege); err != nil {
		return nil, err
	}

	return &Generic{
		d:                 d,
		originalPrivilege: original,
		configPrivilege:   configPrivilege,
	}, nil
}

func (s *Generic) checkActive(op string) error {
	if s.consumed {
		return nerrors.New(nerrors.KindInvalidInput, op, "session already resolved")
	}
	return nil
}

// SendCommand runs cmd in the configuration session.
func (s *Generic) SendCommand(ctx context.Context, cmd string) (driver.Response, error) {
	if err := s.checkActive("session.Generic.SendCommand"); err != nil {
		return driver.Response{}, err
	}
	return s.d.SendCommand(ctx, cmd)
}

// Commit marks the session resolved and restores the original privilege.
// The generic session has no vendor-specific commit verb: the platform's
// ordinary escalate/deescalate edge commands already apply each line as
// it's sent, so "commit" here means leaving config mode.
func (s *Generic) Commit(ctx context.Context) error {
	if err := s.checkActive("session.Generic.Commit"); err != nil {
		return err
	}
	s.consumed = true
	if s.originalPrivilege != s.configPrivilege && s.originalPrivilege != "" {
		return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
	}
	return nil
}

// Abort marks the session resolved and restores the original privilege,
// discarding nothing beyond what the platform's deescalate command does by
// default (the generic session has no rollback verb).
func (s *Generic) Abort(ctx context.Context) error {
	if err := s.checkActive("session.Generic.Abort"); err != nil {
		return err
	}
	s.consumed = true
	if s.originalPrivilege != s.configPrivilege && s.originalPrivilege != "" {
		return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
	}
	return nil
}

// Detach marks the session resolved without changing privilege, leaving
// the driver positioned in configuration mode.
func (s *Generic) Detach(ctx context.Context) error {
	if err := s.checkActive("session.Generic.Detach"); err != nil {
		return err
	}
	s.consumed = true
	return nil
}

// Close is the documented defer-immediately-after-construction idiom
// substituting for Drop: if the session was never resolved, it performs a
// best-effort Abort and logs a warning. runtime.SetFinalizer is
// deliberately not used — finalizers run on an unpredictable goroutine
// with no ordering guarantee relative to the driver's own mutex.
func (s *Generic) Close() error {
	if s.consumed {
		return nil
	}
	netlog.Log.Warning("config session closed without explicit commit/abort/detach, aborting")
	return s.Abort(context.Background())
}

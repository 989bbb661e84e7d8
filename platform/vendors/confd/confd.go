// Package confd implements the configuration session shared by every
// ConfD-based platform (Tail-f/Cisco management framework): the session
// commands are identical across ConfD's C-style and J-style CLIs — only
// the prompts and navigation commands differ, which live in each vendor's
// platform.Definition. Arrcus ArcOS uses this directly; other ConfD-based
// platforms can too via NewConfigSession.
package confd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/netlog"
	"github.com/morganhein/netshell/session"
)

// ConfigSession is a generic ConfD candidate-configuration session: diff
// via "compare running-config", validate via "validate" (no output on
// success), commit via "commit", abort via "revert", confirmed commit via
// "commit confirmed <minutes>" (1-65535).
type ConfigSession struct {
	d                 *driver.Driver
	platformName      string
	originalPrivilege string
	consumed          bool
}

// NewConfigSession validates d's platform name matches platformName, saves
// the current privilege, and escalates to configuration mode (a no-op if
// already there). Vendor packages typically wrap this with a convenience
// constructor that pre-fills platformName.
func NewConfigSession(ctx context.Context, d *driver.Driver, platformName string) (*ConfigSession, error) {
	if d.Definition().Name != platformName {
		return nil, nerrors.New(nerrors.KindInvalidInput, "confd.NewConfigSession",
			"ConfD config session requires platform "+platformName+", got "+d.Definition().Name)
	}

	original := d.CurrentPrivilege()
	if err := d.AcquirePrivilege(ctx, "configuration"); err != nil {
		return nil, err
	}

	return &ConfigSession{d: d, platformName: platformName, originalPrivilege: original}, nil
}

func (s *ConfigSession) checkActive(op string) error {
	if s.consumed {
		return nerrors.New(nerrors.KindInvalidInput, op, "session already resolved")
	}
	return nil
}

func (s *ConfigSession) restorePrivilege(ctx context.Context) error {
	if s.originalPrivilege == "" {
		return nil
	}
	if s.d.CurrentPrivilege() != s.originalPrivilege {
		return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
	}
	return nil
}

// SendCommand runs cmd in the configuration session.
func (s *ConfigSession) SendCommand(ctx context.Context, cmd string) (driver.Response, error) {
	if err := s.checkActive("confd.ConfigSession.SendCommand"); err != nil {
		return driver.Response{}, err
	}
	return s.d.SendCommand(ctx, cmd)
}

// Commit applies the candidate configuration and restores the original
// privilege (exiting configuration mode).
func (s *ConfigSession) Commit(ctx context.Context) error {
	if err := s.checkActive("confd.ConfigSession.Commit"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "commit"); err != nil {
		return err
	}
	return s.restorePrivilege(ctx)
}

// Abort discards uncommitted changes with "revert" and restores the
// original privilege.
func (s *ConfigSession) Abort(ctx context.Context) error {
	if err := s.checkActive("confd.ConfigSession.Abort"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "revert"); err != nil {
		return err
	}
	return s.restorePrivilege(ctx)
}

// Detach marks the session resolved, leaving the driver in configuration
// mode so a later NewConfigSession re-attaches.
func (s *ConfigSession) Detach(ctx context.Context) error {
	if err := s.checkActive("confd.ConfigSession.Detach"); err != nil {
		return err
	}
	s.consumed = true
	return nil
}

// Close best-effort aborts if the session was never resolved.
func (s *ConfigSession) Close() error {
	if s.consumed {
		return nil
	}
	netlog.Log.Warning(s.platformName + " config session closed without commit/abort/detach")
	return s.Abort(context.Background())
}

// Diff shows uncommitted changes.
func (s *ConfigSession) Diff(ctx context.Context) (string, error) {
	resp, err := s.d.SendCommand(ctx, "compare running-config")
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Validate runs "validate". The result is valid unless the output matches
// a failure pattern; then each non-empty output line is reported as an
// error.
func (s *ConfigSession) Validate(ctx context.Context) (session.ValidationResult, error) {
	resp, err := s.d.SendCommand(ctx, "validate")
	if err != nil {
		return session.ValidationResult{}, err
	}

	if resp.IsSuccess() {
		return session.ValidationResult{Valid: true}, nil
	}

	var errs []string
	for _, line := range resp.Lines() {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			errs = append(errs, trimmed)
		}
	}
	return session.ValidationResult{Valid: false, Errors: errs}, nil
}

// CommitConfirmed issues "commit confirmed <minutes>" (range 1-65535,
// timeout rounded up to the next whole minute). It does not consume the
// session — callers must still call Commit to confirm.
func (s *ConfigSession) CommitConfirmed(ctx context.Context, timeout time.Duration) error {
	if err := s.checkActive("confd.ConfigSession.CommitConfirmed"); err != nil {
		return err
	}

	secs := int64(timeout / time.Second)
	if secs < 60 {
		return nerrors.New(nerrors.KindInvalidInput, "confd.ConfigSession.CommitConfirmed", "minimum commit-confirmed timeout is 1 minute")
	}
	minutes := (secs + 59) / 60
	if minutes > 65535 {
		return nerrors.New(nerrors.KindInvalidInput, "confd.ConfigSession.CommitConfirmed", "maximum commit-confirmed timeout is 65535 minutes")
	}

	_, err := s.d.SendCommand(ctx, "commit confirmed "+strconv.FormatInt(minutes, 10))
	return err
}

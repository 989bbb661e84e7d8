package nokia

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

// ConfigSession is Nokia SR OS's MD-CLI exclusive configuration session.
// Classic CLI has no candidate/commit model, so NewConfigSession rejects a
// driver currently sitting in a classic_* privilege level.
type ConfigSession struct {
	d                 *driver.Driver
	originalPrivilege string
	consumed          bool
}

// NewConfigSession validates d is running the nokia_sros platform and is
// not currently in Classic CLI mode, saves the current privilege, and
// escalates to exclusive configuration mode via "edit-config exclusive"
// (the configuration level's escalate command).
func NewConfigSession(ctx context.Context, d *driver.Driver) (*ConfigSession, error) {
	if d.Definition().Name != Name {
		return nil, nerrors.New(nerrors.KindInvalidInput, "nokia.NewConfigSession", "driver is not running the nokia_sros platform")
	}

	original := d.CurrentPrivilege()
	if strings.HasPrefix(original, "classic_") {
		return nil, nerrors.New(nerrors.KindInvalidInput, "nokia.NewConfigSession",
			"MD-CLI config session requires MD-CLI mode; device is in Classic CLI, "+
				"use AcquirePrivilege(\"classic_configuration\") and SendCommand directly")
	}

	if err := d.AcquirePrivilege(ctx, "configuration"); err != nil {
		return nil, err
	}

	return &ConfigSession{d: d, originalPrivilege: original}, nil
}

func (s *ConfigSession) checkActive(op string) error {
	if s.consumed {
		return nerrors.New(nerrors.KindInvalidInput, op, "session already resolved")
	}
	return nil
}

// SendCommand runs cmd in configuration mode.
func (s *ConfigSession) SendCommand(ctx context.Context, cmd string) (driver.Response, error) {
	if err := s.checkActive("nokia.ConfigSession.SendCommand"); err != nil {
		return driver.Response{}, err
	}
	return s.d.SendCommand(ctx, cmd)
}

// Commit applies the candidate configuration, exits config mode with
// "quit-config", and restores the original privilege.
func (s *ConfigSession) Commit(ctx context.Context) error {
	if err := s.checkActive("nokia.ConfigSession.Commit"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "commit"); err != nil {
		return err
	}
	if _, err := s.d.SendCommand(ctx, "quit-config"); err != nil {
		return err
	}
	if s.d.CurrentPrivilege() != s.originalPrivilege && s.originalPrivilege != "" {
		return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
	}
	return nil
}

// Abort discards uncommitted changes with "discard" (which avoids the
// confirmation prompt "quit-config" alone would trigger on dirty state),
// exits config mode, and restores the original privilege.
func (s *ConfigSession) Abort(ctx context.Context) error {
	if err := s.checkActive("nokia.ConfigSession.Abort"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "discard"); err != nil {
		return err
	}
	if _, err := s.d.SendCommand(ctx, "quit-config"); err != nil {
		return err
	}
	return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
}

// Detach marks the session resolved, leaving config mode active.
func (s *ConfigSession) Detach(ctx context.Context) error {
	if err := s.checkActive("nokia.ConfigSession.Detach"); err != nil {
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
	netlog.Log.Warning("nokia config session closed without commit/abort/detach")
	return s.Abort(context.Background())
}

// Diff shows uncommitted changes.
func (s *ConfigSession) Diff(ctx context.Context) (string, error) {
	resp, err := s.d.SendCommand(ctx, "compare")
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Validate runs "validate", which produces no output on success
// (failures typically also trip the platform's MINOR:/MAJOR: failure
// patterns).
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
// timeout rounded up to the next whole minute).
func (s *ConfigSession) CommitConfirmed(ctx context.Context, timeout time.Duration) error {
	if err := s.checkActive("nokia.ConfigSession.CommitConfirmed"); err != nil {
		return err
	}

	secs := int64(timeout / time.Second)
	if secs < 60 {
		return nerrors.New(nerrors.KindInvalidInput, "nokia.ConfigSession.CommitConfirmed", "minimum commit-confirmed timeout is 1 minute")
	}
	minutes := (secs + 59) / 60
	if minutes > 65535 {
		return nerrors.New(nerrors.KindInvalidInput, "nokia.ConfigSession.CommitConfirmed", "maximum commit-confirmed timeout is 65535 minutes")
	}

	_, err := s.d.SendCommand(ctx, "commit confirmed "+strconv.FormatInt(minutes, 10))
	return err
}

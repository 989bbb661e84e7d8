package juniper

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

// ConfigSession is Juniper's candidate-configuration session: a single
// shared candidate entered via "configure", committed with "commit
// and-quit" (which both commits and exits configuration mode), aborted
// with "rollback 0". Supports diff, validate, and confirmed commit.
type ConfigSession struct {
	d                 *driver.Driver
	originalPrivilege string
	consumed          bool
}

// NewConfigSession validates d is running the Juniper JUNOS platform,
// saves the current privilege, and escalates to configuration mode
// (a no-op if already there).
func NewConfigSession(ctx context.Context, d *driver.Driver) (*ConfigSession, error) {
	if d.Definition().Name != Name {
		return nil, nerrors.New(nerrors.KindInvalidInput, "juniper.NewConfigSession", "driver is not running the juniper_junos platform")
	}

	original := d.CurrentPrivilege()
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
	if err := s.checkActive("juniper.ConfigSession.SendCommand"); err != nil {
		return driver.Response{}, err
	}
	return s.d.SendCommand(ctx, cmd)
}

// Commit runs "commit and-quit", which commits and exits configuration
// mode in a single command, then restores the original privilege if it
// differs from whatever configuration exited to. SendCommand matches
// against every registered prompt (not just the current level's), so the
// switch from configuration's "#" back to exec's ">" is picked up without
// any special handling here.
func (s *ConfigSession) Commit(ctx context.Context) error {
	if err := s.checkActive("juniper.ConfigSession.Commit"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "commit and-quit"); err != nil {
		return err
	}

	if current := s.d.CurrentPrivilege(); current != s.originalPrivilege && s.originalPrivilege != "" {
		return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
	}
	return nil
}

// Abort discards uncommitted changes with "rollback 0" and returns to the
// original privilege level, exiting configuration mode.
func (s *ConfigSession) Abort(ctx context.Context) error {
	if err := s.checkActive("juniper.ConfigSession.Abort"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "rollback 0"); err != nil {
		return err
	}
	return s.d.AcquirePrivilege(ctx, s.originalPrivilege)
}

// Detach marks the session resolved without committing or aborting. The
// driver stays in configuration mode; calling NewConfigSession again
// re-attaches (AcquirePrivilege("configuration") is a no-op already there).
func (s *ConfigSession) Detach(ctx context.Context) error {
	if err := s.checkActive("juniper.ConfigSession.Detach"); err != nil {
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
	netlog.Log.Warning("juniper config session closed without commit/abort/detach")
	return s.Abort(context.Background())
}

// Diff shows uncommitted changes.
func (s *ConfigSession) Diff(ctx context.Context) (string, error) {
	resp, err := s.d.SendCommand(ctx, "show | compare")
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// Validate runs "commit check" and parses the result for Juniper's
// success banner, returning any other non-empty lines as errors.
func (s *ConfigSession) Validate(ctx context.Context) (session.ValidationResult, error) {
	resp, err := s.d.SendCommand(ctx, "commit check")
	if err != nil {
		return session.ValidationResult{}, err
	}

	if resp.IsSuccess() && strings.Contains(resp.Result, "configuration check succeeds") {
		return session.ValidationResult{Valid: true}, nil
	}

	var errs []string
	for _, line := range resp.Lines() {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Contains(trimmed, "configuration check succeeds") {
			continue
		}
		errs = append(errs, trimmed)
	}
	return session.ValidationResult{Valid: false, Errors: errs}, nil
}

// CommitConfirmed issues "commit confirmed <minutes>" (Juniper's unit is
// minutes, range 1-65535; timeout is rounded up to the next whole minute).
// It does not consume the session — callers must still call Commit to
// confirm, or let the device auto-rollback.
func (s *ConfigSession) CommitConfirmed(ctx context.Context, timeout time.Duration) error {
	if err := s.checkActive("juniper.ConfigSession.CommitConfirmed"); err != nil {
		return err
	}

	secs := int64(timeout / time.Second)
	if secs < 60 {
		return nerrors.New(nerrors.KindInvalidInput, "juniper.ConfigSession.CommitConfirmed", "minimum commit-confirmed timeout is 1 minute")
	}
	minutes := (secs + 59) / 60
	if minutes > 65535 {
		return nerrors.New(nerrors.KindInvalidInput, "juniper.ConfigSession.CommitConfirmed", "maximum commit-confirmed timeout is 65535 minutes")
	}

	_, err := s.d.SendCommand(ctx, "commit confirmed "+strconv.FormatInt(minutes, 10))
	return err
}

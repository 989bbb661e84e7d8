package arista

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/netlog"
	"github.com/morganhein/netshell/platform"
)

// ConfigSession is Arista's named configuration session ("configure
// session <name>"): an isolated candidate configuration that can be
// committed, aborted, or detached for later re-attachment. Unlike
// Juniper's single shared candidate, each session gets its own dynamic
// privilege level registered on the Driver (not the shared
// platform.Definition, which is reused across Drivers).
type ConfigSession struct {
	d               *driver.Driver
	sessionName     string
	originalPriv    string
	sessionPrivName string
	consumed        bool
}

// NewConfigSession creates or re-attaches to a named configuration
// session. If the dynamic privilege level is already registered on d
// (re-attach after Detach), registration is skipped.
func NewConfigSession(ctx context.Context, d *driver.Driver, sessionName string) (*ConfigSession, error) {
	if d.Definition().Name != Name {
		return nil, nerrors.New(nerrors.KindInvalidInput, "arista.NewConfigSession", "driver is not running the arista_eos platform")
	}

	original := d.CurrentPrivilege()
	sessionPrivName := "config_session_" + sessionName

	if !d.HasDynamicLevel(sessionPrivName) {
		first6 := sessionName
		if len(first6) > 6 {
			first6 = first6[:6]
		}
		pattern := fmt.Sprintf(`(?mi)^[\w.\-@()/: ]{1,63}\(config\-s\-%s[\w.\-@/:+]{0,64}\)#\s?$`, regexp.QuoteMeta(first6))

		level, err := platform.NewPrivilegeLevel(sessionPrivName, pattern)
		if err != nil {
			return nil, nerrors.Wrap(nerrors.KindInvalidInput, "arista.NewConfigSession", err)
		}
		level.WithParent("privilege_exec").
			WithEscalate("configure session " + sessionName).
			WithDeescalate("end")

		d.RegisterDynamicLevel(level)
	}

	if err := d.AcquirePrivilege(ctx, sessionPrivName); err != nil {
		return nil, err
	}

	return &ConfigSession{
		d:               d,
		sessionName:     sessionName,
		originalPriv:    original,
		sessionPrivName: sessionPrivName,
	}, nil
}

func (s *ConfigSession) checkActive(op string) error {
	if s.consumed {
		return nerrors.New(nerrors.KindInvalidInput, op, "session already resolved")
	}
	return nil
}

// SendCommand runs cmd inside the named session.
func (s *ConfigSession) SendCommand(ctx context.Context, cmd string) (driver.Response, error) {
	if err := s.checkActive("arista.ConfigSession.SendCommand"); err != nil {
		return driver.Response{}, err
	}
	return s.d.SendCommand(ctx, cmd)
}

func (s *ConfigSession) cleanup(ctx context.Context) error {
	s.d.RemoveDynamicLevel(s.sessionPrivName)
	if s.d.CurrentPrivilege() != s.originalPriv && s.originalPriv != "" {
		return s.d.AcquirePrivilege(ctx, s.originalPriv)
	}
	return nil
}

// Commit runs "commit" then "end" to apply the session and exit it, then
// cleans up the dynamic privilege level.
func (s *ConfigSession) Commit(ctx context.Context) error {
	if err := s.checkActive("arista.ConfigSession.Commit"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "commit"); err != nil {
		return err
	}
	if _, err := s.d.SendCommand(ctx, "end"); err != nil {
		return err
	}
	return s.cleanup(ctx)
}

// Abort discards the session's changes and cleans up.
func (s *ConfigSession) Abort(ctx context.Context) error {
	if err := s.checkActive("arista.ConfigSession.Abort"); err != nil {
		return err
	}
	s.consumed = true

	if _, err := s.d.SendCommand(ctx, "abort"); err != nil {
		return err
	}
	return s.cleanup(ctx)
}

// Detach marks the session resolved, leaving it active on the device with
// its dynamic privilege level still registered so a later NewConfigSession
// with the same name re-attaches.
func (s *ConfigSession) Detach(ctx context.Context) error {
	if err := s.checkActive("arista.ConfigSession.Detach"); err != nil {
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
	netlog.Log.Warning("arista config session '" + s.sessionName + "' closed without commit/abort/detach")
	return s.Abort(context.Background())
}

// Diff shows the session's uncommitted changes.
func (s *ConfigSession) Diff(ctx context.Context) (string, error) {
	resp, err := s.d.SendCommand(ctx, "show session-config diffs")
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// CommitConfirmed issues "commit timer HH:MM:SS"; the device auto-rolls
// back unless a subsequent Commit confirms within timeout.
func (s *ConfigSession) CommitConfirmed(ctx context.Context, timeout time.Duration) error {
	if err := s.checkActive("arista.ConfigSession.CommitConfirmed"); err != nil {
		return err
	}

	total := int64(timeout / time.Second)
	if total < 60 {
		return nerrors.New(nerrors.KindInvalidInput, "arista.ConfigSession.CommitConfirmed", "minimum commit timer is 1 minute")
	}

	cmd := fmt.Sprintf("commit timer %02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	_, err := s.d.SendCommand(ctx, cmd)
	return err
}

// SessionName returns the named session's device-side name.
func (s *ConfigSession) SessionName() string {
	return s.sessionName
}

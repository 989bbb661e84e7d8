package nokia

import (
	"context"

	"github.com/morganhein/netshell/netlog"
	"github.com/morganhein/netshell/platform"
)

// Behavior overrides OnOpen: the paging-disable commands for both CLI
// engines are attempted unconditionally, and a command failing because
// it targets the engine the session isn't running in is expected and
// ignored rather than aborting connection setup.
type Behavior struct {
	platform.DefaultBehavior
}

func (Behavior) OnOpen(ctx context.Context, nav *platform.NavContext, def *platform.Definition) error {
	for _, cmd := range def.OnOpenCommands {
		if _, err := nav.RunCommand(ctx, cmd); err != nil {
			netlog.Log.Debugf("nokia on-open command %q failed, ignoring: %v", cmd, err)
		}
	}
	return nil
}

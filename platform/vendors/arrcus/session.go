package arrcus

import (
	"context"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/platform/vendors/confd"
)

// NewConfigSession enters a ConfD configuration session against an ArcOS
// driver. ArcOS's config session commands (commit/revert/validate/diff)
// are identical to every other ConfD-based platform; only the prompts and
// navigation commands, defined in Platform(), differ.
func NewConfigSession(ctx context.Context, d *driver.Driver) (*confd.ConfigSession, error) {
	return confd.NewConfigSession(ctx, d, Name)
}

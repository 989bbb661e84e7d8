// Package driver implements the orchestration layer (component G) and the
// interactive engine (component H): open/close, single and multi command
// execution, privilege navigation, config batches, and interactive
// send/expect exchanges.
package driver

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/morganhein/netshell/channel"
	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/platform"
	"github.com/morganhein/netshell/transport"
)

// State is the Driver's connection lifecycle state.
type State int

const (
	StateUnopened State = iota
	StateOpening
	StateReady
	StateClosed
)

// Driver orchestrates a single device connection: a Channel, a
// platform.Definition, and the current privilege cursor. Its mutex guards
// only the driver's own state fields (lifecycle state, poisoned flag,
// current privilege, dynamic levels); whole operations are not serialized
// against one another beyond the Channel's locking of each read and write.
type Driver struct {
	ch  *channel.Channel
	def *platform.Definition

	authPassword    string
	defaultTimeout  time.Duration
	normalizeOutput bool

	mu               sync.Mutex
	state            State
	poisoned         bool
	currentPrivilege string

	// dynamicLevels holds privilege levels registered at runtime by a
	// vendor config session (Arista named sessions), kept on the Driver
	// rather than the shared platform.Definition since a Definition is
	// constructed once and reused across any number of Drivers.
	dynamicLevels map[string]*platform.PrivilegeLevel
	dynamicOrder  []string

	pendingOpen pendingOpen
}

func newDriver(t transport.Transport, def *platform.Definition, opts driverOptions) *Driver {
	chOpts := channel.Options{
		SearchDepth: opts.searchDepth,
		Quiescence:  opts.quiescence,
	}
	return &Driver{
		ch:              channel.New(t, chOpts),
		def:             def,
		authPassword:    opts.password,
		defaultTimeout:  opts.timeout,
		normalizeOutput: opts.normalizeOutput,
		state:           StateUnopened,
	}
}

// IsAlive reports whether the driver is open and not poisoned.
func (d *Driver) IsAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateReady && !d.poisoned
}

// CurrentPrivilege returns the name of the currently active privilege
// level, or "" if the driver has never completed Open.
func (d *Driver) CurrentPrivilege() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentPrivilege
}

func (d *Driver) deadline(override time.Duration) time.Time {
	timeout := d.defaultTimeout
	if override > 0 {
		timeout = override
	}
	return time.Now().Add(timeout)
}

// navContext builds the closures a VendorBehavior needs, bound to this
// Driver's channel and current state.
func (d *Driver) navContext() *platform.NavContext {
	return &platform.NavContext{
		WriteLine: func(ctx context.Context, line string) error {
			return d.ch.WriteLine(line)
		},
		ReadUntilPrompt: func(ctx context.Context, level *platform.PrivilegeLevel) (string, string, error) {
			raw, matched, err := d.ch.ReadUntilPattern(ctx, level.Pattern, d.deadline(0))
			return raw, matched, err
		},
		ReadUntilPattern: func(ctx context.Context, re *regexp.Regexp) (string, string, error) {
			return d.ch.ReadUntilPattern(ctx, re, d.deadline(0))
		},
		RunCommand: func(ctx context.Context, cmd string) (string, error) {
			resp, err := d.sendCommandLocked(ctx, cmd, 0)
			if err != nil {
				return "", err
			}
			return resp.Result, nil
		},
		Password: func() string {
			return d.authPassword
		},
	}
}

// RegisterDynamicLevel adds a privilege level at runtime, used by vendor
// config sessions that create device-side state with its own prompt (e.g.
// Arista's "configure session <name>"). Re-registering a name already
// present replaces the stored level without adding a second entry to the
// iteration order.
func (d *Driver) RegisterDynamicLevel(level *platform.PrivilegeLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dynamicLevels == nil {
		d.dynamicLevels = make(map[string]*platform.PrivilegeLevel)
	}
	if _, exists := d.dynamicLevels[level.Name]; !exists {
		d.dynamicOrder = append(d.dynamicOrder, level.Name)
	}
	d.dynamicLevels[level.Name] = level
}

// RemoveDynamicLevel removes a previously registered dynamic level.
func (d *Driver) RemoveDynamicLevel(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dynamicLevels == nil {
		return
	}
	if _, ok := d.dynamicLevels[name]; !ok {
		return
	}
	delete(d.dynamicLevels, name)
	for i, n := range d.dynamicOrder {
		if n == name {
			d.dynamicOrder = append(d.dynamicOrder[:i], d.dynamicOrder[i+1:]...)
			break
		}
	}
}

// HasDynamicLevel reports whether name is currently registered, used by
// vendor sessions to skip re-registration on re-attach.
func (d *Driver) HasDynamicLevel(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.dynamicLevels[name]
	return ok
}

// mergedLevelSet returns the platform's static levels plus any dynamic
// levels registered at runtime, and their combined iteration order
// (static first, dynamic appended), for lookups that must see both.
func (d *Driver) mergedLevelSet() (map[string]*platform.PrivilegeLevel, []string) {
	d.mu.Lock()
	dynOrder := append([]string(nil), d.dynamicOrder...)
	dyn := make(map[string]*platform.PrivilegeLevel, len(d.dynamicLevels))
	for k, v := range d.dynamicLevels {
		dyn[k] = v
	}
	d.mu.Unlock()

	if len(dyn) == 0 {
		return d.def.Levels, d.def.LevelOrder
	}

	levels := make(map[string]*platform.PrivilegeLevel, len(d.def.Levels)+len(dyn))
	for k, v := range d.def.Levels {
		levels[k] = v
	}
	for k, v := range dyn {
		levels[k] = v
	}
	order := append(append([]string{}, d.def.LevelOrder...), dynOrder...)
	return levels, order
}

// getPrivilege looks up name across the static platform and any dynamic
// levels registered on this Driver.
func (d *Driver) getPrivilege(name string) (*platform.PrivilegeLevel, bool) {
	levels, _ := d.mergedLevelSet()
	l, ok := levels[name]
	return l, ok
}

// promptPatterns returns every known level's prompt pattern (static plus
// dynamic), in merged order.
func (d *Driver) promptPatterns() []*regexp.Regexp {
	levels, order := d.mergedLevelSet()
	out := make([]*regexp.Regexp, 0, len(order))
	for _, name := range order {
		out = append(out, levels[name].Pattern)
	}
	return out
}

// privilegePath returns the navigation path from "from" to "to" over the
// merged static+dynamic privilege graph, rebuilt on demand since dynamic
// levels change rarely relative to how often commands run.
func (d *Driver) privilegePath(from, to string) ([]string, error) {
	levels, order := d.mergedLevelSet()
	return platform.NewGraph(order, levels).Path(from, to)
}

// Open opens the supplied Transport with the given connection parameters,
// synchronizes to the first prompt, sets the current privilege level, and
// runs the platform's on-open routine.
func (d *Driver) Open(ctx context.Context, host string, port int, username string, auth transport.AuthMethod, timeoutForOpen time.Duration, t transport.Transport) error {
	d.mu.Lock()
	if d.state != StateUnopened {
		d.mu.Unlock()
		return nerrors.New(nerrors.KindNotConnected, "driver.Open", "driver already opened")
	}
	d.state = StateOpening
	d.mu.Unlock()

	if err := t.Open(ctx, host, port, username, auth, timeoutForOpen); err != nil {
		return nerrors.Wrap(nerrors.KindTransport, "driver.Open", err)
	}

	patterns := d.def.PromptPatterns()
	_, _, matched, err := d.ch.ReadUntilAny(ctx, patterns, d.deadline(0))
	if err != nil {
		return err
	}

	level, err := platform.DetermineFromPrompt(d.def.LevelOrder, d.def.Levels, matched)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.currentPrivilege = level
	d.state = StateReady
	d.mu.Unlock()

	if err := d.def.Behavior.OnOpen(ctx, d.navContext(), d.def); err != nil {
		return err
	}

	return nil
}

// Close best-effort deescalates to the default privilege, runs the
// platform's on-close commands, and closes the transport.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil
	}
	d.state = StateClosed
	d.mu.Unlock()

	if !d.poisoned {
		_ = d.acquirePrivilegeLocked(ctx, d.def.DefaultPrivilege)
		_ = d.def.Behavior.OnClose(ctx, d.navContext(), d.def)
	}

	return d.ch.Close()
}

func (d *Driver) poison() {
	d.mu.Lock()
	d.poisoned = true
	d.mu.Unlock()
}

func (d *Driver) checkReady(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateReady || d.poisoned {
		return nerrors.New(nerrors.KindNotConnected, op, "driver is not connected")
	}
	return nil
}

// SendCommand writes cmd, reads until any known privilege level's prompt
// matches, normalizes the output, checks failure patterns, and returns a
// Response. The prompt is matched against every registered level (not just
// the current one) and the current privilege is re-derived from whichever
// one actually matched, so a command that changes privilege level as a
// side effect — Juniper's "commit and-quit", Arista's "end" from inside a
// named session — is handled without a special case.
func (d *Driver) SendCommand(ctx context.Context, cmd string) (Response, error) {
	if err := d.checkReady("driver.SendCommand"); err != nil {
		return Response{}, err
	}
	if strings.ContainsAny(cmd, "\n") {
		return Response{}, nerrors.New(nerrors.KindInvalidInput, "driver.SendCommand", "command must not contain a line feed")
	}
	return d.sendCommandLocked(ctx, cmd, 0)
}

func (d *Driver) sendCommandLocked(ctx context.Context, cmd string, timeoutOverride time.Duration) (Response, error) {
	levels, order := d.mergedLevelSet()
	patterns := make([]*regexp.Regexp, len(order))
	for i, name := range order {
		patterns[i] = levels[name].Pattern
	}

	start := time.Now()
	if err := d.ch.WriteLine(cmd); err != nil {
		d.poison()
		return Response{}, err
	}

	_, raw, prompt, err := d.ch.ReadUntilAny(ctx, patterns, d.deadline(timeoutOverride))
	if err != nil {
		if nerrors.Is(err, nerrors.KindTransport) || nerrors.Is(err, nerrors.KindNotConnected) {
			d.poison()
		}
		return Response{}, err
	}
	elapsed := time.Since(start)

	if level, detErr := platform.DetermineFromPrompt(order, levels, prompt); detErr == nil {
		d.mu.Lock()
		d.currentPrivilege = level
		d.mu.Unlock()
	}

	result := raw
	if d.normalizeOutput {
		result = channel.Normalize(raw, cmd, prompt)
		result = d.def.Behavior.NormalizeOutput(result, cmd)
	}

	failMsg, failed := d.def.Behavior.FailureMatch(result)
	if !failed {
		if msg, ok := channel.FailureMatch(result, d.def.FailurePatterns()); ok {
			failMsg, failed = msg, true
		}
	}

	return newResponse(cmd, result, raw, prompt, elapsed, failed, failMsg), nil
}

// SendCommands sequentially invokes SendCommand for each command,
// stopping at the first error SendCommand returns, whatever its kind;
// command-level failures (Response.Failed) do not abort the batch.
func (d *Driver) SendCommands(ctx context.Context, commands []string) ([]Response, error) {
	responses := make([]Response, 0, len(commands))
	for _, cmd := range commands {
		resp, err := d.SendCommand(ctx, cmd)
		if err != nil {
			if nerrors.Is(err, nerrors.KindTransport) || nerrors.Is(err, nerrors.KindTimeout) || nerrors.Is(err, nerrors.KindNotConnected) {
				return responses, err
			}
			return responses, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// AcquirePrivilege navigates from the current privilege level to target,
// issuing escalate/deescalate edge commands along the shortest path. If an
// intermediate step fails to reach its expected prompt, the current level
// is re-detected by scanning all privilege prompts; if none match, the
// driver is poisoned.
func (d *Driver) AcquirePrivilege(ctx context.Context, target string) error {
	if err := d.checkReady("driver.AcquirePrivilege"); err != nil {
		return err
	}
	return d.acquirePrivilegeLocked(ctx, target)
}

func (d *Driver) acquirePrivilegeLocked(ctx context.Context, target string) error {
	d.mu.Lock()
	current := d.currentPrivilege
	d.mu.Unlock()

	if current == target {
		return nil
	}

	path, err := d.privilegePath(current, target)
	if err != nil {
		return err
	}

	nav := d.navContext()
	for i := 0; i < len(path)-1; i++ {
		fromName, toName := path[i], path[i+1]
		fromLevel, _ := d.getPrivilege(fromName)
		toLevel, _ := d.getPrivilege(toName)

		var stepErr error
		if toLevel.Parent == fromName {
			stepErr = d.def.Behavior.Escalate(ctx, nav, d.def, toLevel)
		} else {
			stepErr = d.def.Behavior.Deescalate(ctx, nav, d.def, fromLevel)
		}

		if stepErr != nil {
			if nerrors.Is(stepErr, nerrors.KindTimeout) {
				if redetected, detErr := d.redetectPrivilege(ctx); detErr == nil {
					d.mu.Lock()
					d.currentPrivilege = redetected
					d.mu.Unlock()
				} else {
					d.poison()
				}
			}
			return stepErr
		}

		d.mu.Lock()
		d.currentPrivilege = toName
		d.mu.Unlock()
	}

	return nil
}

func (d *Driver) redetectPrivilege(ctx context.Context) (string, error) {
	_, _, matched, err := d.ch.ReadUntilAny(ctx, d.promptPatterns(), d.deadline(0))
	if err != nil {
		return "", err
	}
	levels, order := d.mergedLevelSet()
	return platform.DetermineFromPrompt(order, levels, matched)
}

// SendConfig records the prior privilege, acquires the configuration
// privilege, runs commands, and restores the prior privilege on a
// best-effort basis. Command-level failures are returned in Responses;
// transport/privilege failures surface as errors after an attempted
// restoration.
func (d *Driver) SendConfig(ctx context.Context, commands []string) ([]Response, error) {
	if err := d.checkReady("driver.SendConfig"); err != nil {
		return nil, err
	}

	configLevel, err := d.findConfigLevel()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	prior := d.currentPrivilege
	d.mu.Unlock()

	if err := d.acquirePrivilegeLocked(ctx, configLevel); err != nil {
		return nil, err
	}

	responses, sendErr := d.SendCommands(ctx, commands)

	if restoreErr := d.acquirePrivilegeLocked(ctx, prior); restoreErr != nil && sendErr == nil {
		return responses, restoreErr
	}

	return responses, sendErr
}

func (d *Driver) findConfigLevel() (string, error) {
	for _, name := range d.def.LevelOrder {
		if strings.Contains(strings.ToLower(name), "config") {
			return name, nil
		}
	}
	return "", nerrors.New(nerrors.KindInvalidPrivilegePath, "driver.SendConfig", "platform has no configuration privilege level")
}

// Definition exposes the driver's platform definition (used by config
// session constructors to validate the platform they were built for).
func (d *Driver) Definition() *platform.Definition {
	return d.def
}

// Channel exposes the underlying channel (used by config session
// constructors and the interactive engine).
func (d *Driver) Channel() *channel.Channel {
	return d.ch
}

// Deadline exposes the driver's default deadline computation.
func (d *Driver) Deadline(override time.Duration) time.Time {
	return d.deadline(override)
}

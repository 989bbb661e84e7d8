package driver

import (
	"context"
	"time"

	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/platform"
	"github.com/morganhein/netshell/transport"
)

// driverOptions carries Builder state needed by newDriver, separated from
// Builder itself so Driver construction doesn't depend on the builder's
// fluent-method surface.
type driverOptions struct {
	password        string
	timeout         time.Duration
	normalizeOutput bool
	searchDepth     int
	quiescence      time.Duration
}

// Builder constructs a Driver with a fluent API, grounded on the
// reference implementation's DriverBuilder and adapted to Go's
// pointer-receiver chaining idiom.
type Builder struct {
	host     string
	port     int
	username string
	auth     transport.AuthMethod

	def *platform.Definition

	timeout             time.Duration
	terminalWidth       int
	terminalHeight      int
	normalizeOutput     bool
	hostKeyVerification transport.HostKeyVerification
	knownHostsPath      string
	keepaliveInterval   time.Duration
	keepaliveIntervalSet bool
	keepaliveMax        int
	inactivityTimeout   time.Duration

	searchDepth int
	quiescence  time.Duration

	transport transport.Transport // override, primarily for tests
}

// NewBuilder starts constructing a driver for host (SSH port 22 by
// default).
func NewBuilder(host string) *Builder {
	return &Builder{
		host:                host,
		port:                22,
		timeout:             30 * time.Second,
		normalizeOutput:     true,
		hostKeyVerification: transport.HostKeyAcceptNew,
		keepaliveMax:        3,
	}
}

func (b *Builder) Port(port int) *Builder {
	b.port = port
	return b
}

func (b *Builder) Username(username string) *Builder {
	b.username = username
	return b
}

func (b *Builder) Password(password string) *Builder {
	b.auth = transport.Password(password)
	return b
}

func (b *Builder) PrivateKey(path string) *Builder {
	b.auth = transport.PrivateKey(path)
	return b
}

func (b *Builder) PrivateKeyWithPassphrase(path, passphrase string) *Builder {
	b.auth = transport.PrivateKeyWithPassphrase(path, passphrase)
	return b
}

// Platform selects the platform.Definition to drive against (a built-in
// vendor package's Platform(), or a user-supplied custom Definition).
func (b *Builder) Platform(def *platform.Definition) *Builder {
	b.def = def
	return b
}

func (b *Builder) Timeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// NormalizeOutput controls whether command echo and trailing prompts are
// stripped from Response.Result (default true). Disable to get raw device
// output.
func (b *Builder) NormalizeOutput(normalize bool) *Builder {
	b.normalizeOutput = normalize
	return b
}

func (b *Builder) HostKeyVerification(mode transport.HostKeyVerification) *Builder {
	b.hostKeyVerification = mode
	return b
}

func (b *Builder) KnownHostsPath(path string) *Builder {
	b.knownHostsPath = path
	return b
}

// DangerDisableHostKeyVerification accepts any host key. Testing/lab use
// only.
func (b *Builder) DangerDisableHostKeyVerification() *Builder {
	b.hostKeyVerification = transport.HostKeyDisabled
	return b
}

func (b *Builder) TerminalSize(width, height int) *Builder {
	b.terminalWidth = width
	b.terminalHeight = height
	return b
}

// KeepaliveInterval sets the SSH keepalive interval (default 30s). Pass 0
// to disable.
func (b *Builder) KeepaliveInterval(interval time.Duration) *Builder {
	b.keepaliveInterval = interval
	b.keepaliveIntervalSet = true
	return b
}

func (b *Builder) KeepaliveMax(max int) *Builder {
	b.keepaliveMax = max
	return b
}

func (b *Builder) InactivityTimeout(timeout time.Duration) *Builder {
	b.inactivityTimeout = timeout
	return b
}

// SearchDepth overrides the pattern matcher's tail-window size.
func (b *Builder) SearchDepth(bytes int) *Builder {
	b.searchDepth = bytes
	return b
}

// Quiescence overrides the read loop's quiescence window.
func (b *Builder) Quiescence(d time.Duration) *Builder {
	b.quiescence = d
	return b
}

// Transport overrides the transport used by Build/Open with a caller-
// supplied implementation, bypassing the default SSHTransport. Primarily
// useful for driving a Driver against an in-process fake transport in
// tests, without a real SSH dial.
func (b *Builder) Transport(t transport.Transport) *Builder {
	b.transport = t
	return b
}

// Build validates the accumulated configuration and returns an unopened
// Driver. It does not connect; call Open to establish the connection.
func (b *Builder) Build() (*Driver, error) {
	if b.username == "" {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.Builder.Build", "username is required")
	}
	if b.auth.Kind == transport.AuthNone {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.Builder.Build", "an authentication method is required")
	}
	if b.def == nil {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.Builder.Build", "a platform must be specified")
	}
	if err := b.def.Validate(); err != nil {
		return nil, err
	}

	width, height := b.terminalWidth, b.terminalHeight
	if width == 0 {
		width = b.def.TerminalWidth
	}
	if height == 0 {
		height = b.def.TerminalHeight
	}

	keepalive := 30 * time.Second
	if b.keepaliveIntervalSet {
		keepalive = b.keepaliveInterval
	}

	t := b.transport
	if t == nil {
		t = &transport.SSHTransport{
			TerminalWidth:       width,
			TerminalHeight:      height,
			HostKeyVerification: b.hostKeyVerification,
			KnownHostsPath:      b.knownHostsPath,
			KeepaliveInterval:   keepalive,
			KeepaliveMax:        b.keepaliveMax,
			InactivityTimeout:   b.inactivityTimeout,
		}
	}

	opts := driverOptions{
		timeout:         b.timeout,
		normalizeOutput: b.normalizeOutput,
		searchDepth:     b.searchDepth,
		quiescence:      b.quiescence,
	}
	if b.auth.Kind == transport.AuthPassword {
		opts.password = b.auth.Password
	}

	d := newDriver(t, b.def, opts)
	d.pendingOpen = pendingOpen{
		host:     b.host,
		port:     b.port,
		username: b.username,
		auth:     b.auth,
		timeout:  b.timeout,
		t:        t,
	}
	return d, nil
}

// pendingOpen captures the connection parameters Build validated, so Open
// can be called with no arguments.
type pendingOpen struct {
	host     string
	port     int
	username string
	auth     transport.AuthMethod
	timeout  time.Duration
	t        transport.Transport
}

// OpenDriver is a convenience wrapper that calls Open using the parameters
// captured at Build time.
func (d *Driver) OpenDriver(ctx context.Context) error {
	p := d.pendingOpen
	return d.Open(ctx, p.host, p.port, p.username, p.auth, p.timeout, p.t)
}

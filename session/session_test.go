package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/platform"
	"github.com/morganhein/netshell/platform/vendors/linux"
	"github.com/morganhein/netshell/transport"
)

// fakeTransport adapts one side of a net.Pipe to transport.Transport so
// tests can drive a real *driver.Driver against a scripted fake device
// instead of a live SSH dial.
type fakeTransport struct {
	conn net.Conn
}

func (f *fakeTransport) Open(ctx context.Context, host string, port int, username string, auth transport.AuthMethod, timeout time.Duration) error {
	return nil
}
func (f *fakeTransport) Read(buf []byte) (int, error)  { return f.conn.Read(buf) }
func (f *fakeTransport) Write(buf []byte) (int, error) { return f.conn.Write(buf) }
func (f *fakeTransport) Close() error                  { return f.conn.Close() }

func readLine(conn net.Conn) (string, error) {
	buf := make([]byte, 1)
	var line []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return string(line), nil
			}
			line = append(line, buf[0])
		}
		if err != nil {
			return string(line), err
		}
	}
}

// testDefinition is a minimal two-level platform (exec/configuration) used
// to exercise the vendor-agnostic Generic session without depending on any
// one built-in vendor's on-open commands.
func testDefinition(t *testing.T) *platform.Definition {
	t.Helper()
	exec, err := platform.NewPrivilegeLevel("exec", `(?m)^.*>\s?$`)
	require.NoError(t, err)
	config, err := platform.NewPrivilegeLevel("configuration", `(?m)^.*\(config\)#\s?$`)
	require.NoError(t, err)
	config.WithParent("exec").WithEscalate("configure").WithDeescalate("exit")

	return platform.New("test_platform").
		WithPrivilege(exec).
		WithPrivilege(config).
		WithDefaultPrivilege("exec")
}

func newOpenedDriver(t *testing.T, def *platform.Definition, initialPrompt string) (*driver.Driver, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	d, err := driver.NewBuilder("device.example.com").
		Username("admin").
		Password("secret").
		Platform(def).
		Timeout(2 * time.Second).
		Quiescence(2 * time.Millisecond).
		Transport(&fakeTransport{conn: clientSide}).
		Build()
	require.NoError(t, err)

	go func() { _, _ = serverSide.Write([]byte(initialPrompt)) }()
	require.NoError(t, d.OpenDriver(context.Background()))

	t.Cleanup(func() { _ = serverSide.Close() })
	return d, serverSide
}

// stubSession is a minimal ConfigSession used to test CapabilityBundle
// without a live Driver.
type stubSession struct{}

func (stubSession) SendCommand(ctx context.Context, cmd string) (driver.Response, error) {
	return driver.Response{}, nil
}
func (stubSession) Commit(ctx context.Context) error { return nil }
func (stubSession) Abort(ctx context.Context) error  { return nil }
func (stubSession) Detach(ctx context.Context) error { return nil }
func (stubSession) Close() error                     { return nil }

type diffableStub struct{ stubSession }

func (diffableStub) Diff(ctx context.Context) (string, error) { return "", nil }

func TestCapabilityBundleReportsOnlyImplementedCapabilities(t *testing.T) {
	plain := NewCapabilityBundle(stubSession{})
	assert.False(t, plain.IsCapable("diff"))
	assert.False(t, plain.IsCapable("validate"))
	assert.False(t, plain.IsCapable("commit_confirmed"))
	assert.False(t, plain.IsCapable("named"))
	assert.False(t, plain.IsCapable("nonexistent"))

	diffable := NewCapabilityBundle(diffableStub{})
	assert.True(t, diffable.IsCapable("diff"))
	assert.False(t, diffable.IsCapable("validate"))
}

func TestNewGenericFindsConfigLevelByName(t *testing.T) {
	d, server := newOpenedDriver(t, testDefinition(t), "router> ")

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure", cmd)
		_, _ = server.Write([]byte("router(config)# "))
	}()

	s, err := NewGeneric(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "configuration", d.CurrentPrivilege())
	assert.False(t, s.consumed)
}

func TestNewGenericErrorsWhenNoConfigLevelExists(t *testing.T) {
	d, _ := newOpenedDriver(t, linux.Platform(), "user@host$ ")

	_, err := NewGeneric(context.Background(), d)
	assert.Error(t, err)
}

func TestGenericCommitRestoresOriginalPrivilege(t *testing.T) {
	d, server := newOpenedDriver(t, testDefinition(t), "router> ")

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure", cmd)
		_, _ = server.Write([]byte("router(config)# "))
	}()
	s, err := NewGeneric(context.Background(), d)
	require.NoError(t, err)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "interface eth0", cmd)
		_, _ = server.Write([]byte("interface eth0\r\nrouter(config)# "))
	}()
	resp, err := s.SendCommand(context.Background(), "interface eth0")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "exit", cmd)
		_, _ = server.Write([]byte("router> "))
	}()
	require.NoError(t, s.Commit(context.Background()))
	assert.Equal(t, "exec", d.CurrentPrivilege())

	_, err = s.SendCommand(context.Background(), "anything")
	assert.Error(t, err, "a resolved session must reject further use")
}

func TestGenericCloseAbortsUnresolvedSession(t *testing.T) {
	d, server := newOpenedDriver(t, testDefinition(t), "router> ")

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure", cmd)
		_, _ = server.Write([]byte("router(config)# "))
	}()
	s, err := NewGeneric(context.Background(), d)
	require.NoError(t, err)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "exit", cmd)
		_, _ = server.Write([]byte("router> "))
	}()
	assert.NoError(t, s.Close())
	assert.Equal(t, "exec", d.CurrentPrivilege())
	assert.NoError(t, s.Close(), "Close must be idempotent once resolved")
}

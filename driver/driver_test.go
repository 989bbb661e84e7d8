package driver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganhein/netshell/platform"
	"github.com/morganhein/netshell/platform/vendors/linux"
	"github.com/morganhein/netshell/transport"
)

// fakeTransport adapts one side of a net.Pipe to transport.Transport,
// skipping SSH establishment entirely so the driver state machine can be
// exercised against a scripted fake device.
type fakeTransport struct {
	conn net.Conn
}

func (f *fakeTransport) Open(ctx context.Context, host string, port int, username string, auth transport.AuthMethod, timeout time.Duration) error {
	return nil
}
func (f *fakeTransport) Read(buf []byte) (int, error)  { return f.conn.Read(buf) }
func (f *fakeTransport) Write(buf []byte) (int, error) { return f.conn.Write(buf) }
func (f *fakeTransport) Close() error                  { return f.conn.Close() }

// fakeDevice is the minimal scripted counterpart driving the server side of
// the pipe, modeled on the login/command-loop simulation the teacher's
// transport tests use.
type fakeDevice struct {
	conn net.Conn
}

func (d *fakeDevice) readLine() (string, error) {
	buf := make([]byte, 1)
	var line []byte
	for {
		n, err := d.conn.Read(buf)
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

func newDriverUnderTest(t *testing.T, def *platform.Definition) (*Driver, *fakeDevice) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	d, err := NewBuilder("device.example.com").
		Username("admin").
		Password("secret").
		Platform(def).
		Timeout(2 * time.Second).
		Quiescence(2 * time.Millisecond).
		Transport(&fakeTransport{conn: clientSide}).
		Build()
	require.NoError(t, err)

	dev := &fakeDevice{conn: serverSide}
	t.Cleanup(func() { _ = serverSide.Close() })
	return d, dev
}

func TestDriverOpenSynchronizesToInitialPrompt(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() {
		_, _ = dev.conn.Write([]byte("user@host$ "))
	}()

	ctx := context.Background()
	require.NoError(t, d.OpenDriver(ctx))
	assert.True(t, d.IsAlive())
	assert.Equal(t, "user", d.CurrentPrivilege())
}

func TestDriverSendCommandNormalizesOutput(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() {
		_, _ = dev.conn.Write([]byte("user@host$ "))
	}()
	require.NoError(t, d.OpenDriver(context.Background()))

	go func() {
		cmd, err := dev.readLine()
		require.NoError(t, err)
		assert.Equal(t, "whoami", cmd)
		_, _ = dev.conn.Write([]byte("whoami\r\nadmin\r\nuser@host$ "))
	}()

	resp, err := d.SendCommand(context.Background(), "whoami")
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Result)
	assert.True(t, resp.IsSuccess())
}

func TestDriverSendCommandDetectsFailurePattern(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() {
		_, _ = dev.conn.Write([]byte("user@host$ "))
	}()
	require.NoError(t, d.OpenDriver(context.Background()))

	go func() {
		_, err := dev.readLine()
		require.NoError(t, err)
		_, _ = dev.conn.Write([]byte("bogus\r\nbogus: command not found\r\nuser@host$ "))
	}()

	resp, err := d.SendCommand(context.Background(), "bogus")
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.Contains(t, resp.FailureMessage, "command not found")
}

func TestDriverAcquirePrivilegeWithAuth(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() {
		_, _ = dev.conn.Write([]byte("user@host$ "))
	}()
	require.NoError(t, d.OpenDriver(context.Background()))

	go func() {
		cmd, err := dev.readLine()
		require.NoError(t, err)
		assert.Equal(t, "sudo -i", cmd)
		_, _ = dev.conn.Write([]byte("Password: "))

		pw, err := dev.readLine()
		require.NoError(t, err)
		assert.Equal(t, "secret", pw)
		_, _ = dev.conn.Write([]byte("root@host# "))
	}()

	require.NoError(t, d.AcquirePrivilege(context.Background(), "root"))
	assert.Equal(t, "root", d.CurrentPrivilege())
}

func TestDriverSendCommandRejectsEmbeddedNewline(t *testing.T) {
	d, _ := newDriverUnderTest(t, linux.Platform())
	d.state = StateReady // bypass Open for this validation-only check

	_, err := d.SendCommand(context.Background(), "echo one\necho two")
	assert.Error(t, err)
}

func TestDriverCloseIsIdempotent(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() {
		_, _ = dev.conn.Write([]byte("user@host$ "))
	}()
	require.NoError(t, d.OpenDriver(context.Background()))

	// Already at the default privilege (linux has no OnCloseCommands), so
	// Close needs no further scripted device interaction.
	assert.NoError(t, d.Close(context.Background()))
	assert.NoError(t, d.Close(context.Background()))
}

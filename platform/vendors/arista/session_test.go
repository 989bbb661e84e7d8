package arista_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganhein/netshell/driver"
	"github.com/morganhein/netshell/platform/vendors/arista"
	"github.com/morganhein/netshell/platform/vendors/linux"
	"github.com/morganhein/netshell/transport"
)

type fakeTransport struct{ conn net.Conn }

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

func newOpenedAristaDriver(t *testing.T) (*driver.Driver, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	d, err := driver.NewBuilder("switch.example.com").
		Username("admin").
		Password("secret").
		Platform(arista.Platform()).
		Timeout(2 * time.Second).
		Quiescence(2 * time.Millisecond).
		Transport(&fakeTransport{conn: clientSide}).
		Build()
	require.NoError(t, err)

	go func() {
		_, _ = serverSide.Write([]byte("switch# "))
		for _, expect := range []string{"terminal length 0", "terminal width 32767"} {
			cmd, rerr := readLine(serverSide)
			require.NoError(t, rerr)
			require.Equal(t, expect, cmd)
			_, _ = serverSide.Write([]byte(expect + "\r\nswitch# "))
		}
	}()

	require.NoError(t, d.OpenDriver(context.Background()))
	t.Cleanup(func() { _ = serverSide.Close() })
	return d, serverSide
}

func TestAristaConfigSessionCommitAndEnd(t *testing.T) {
	d, server := newOpenedAristaDriver(t)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure session test1", cmd)
		_, _ = server.Write([]byte("switch(config-s-test1)# "))
	}()
	s, err := arista.NewConfigSession(context.Background(), d, "test1")
	require.NoError(t, err)
	assert.Equal(t, "test1", s.SessionName())
	assert.Equal(t, "config_session_test1", d.CurrentPrivilege())

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "interface Ethernet1", cmd)
		_, _ = server.Write([]byte("interface Ethernet1\r\nswitch(config-s-test1)# "))
	}()
	resp, err := s.SendCommand(context.Background(), "interface Ethernet1")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "commit", cmd)
		_, _ = server.Write([]byte("commit\r\nswitch(config-s-test1)# "))

		cmd2, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "end", cmd2)
		_, _ = server.Write([]byte("end\r\nswitch# "))
	}()
	require.NoError(t, s.Commit(context.Background()))

	assert.Equal(t, "privilege_exec", d.CurrentPrivilege())
	assert.False(t, d.HasDynamicLevel("config_session_test1"))
}

func TestAristaConfigSessionAbort(t *testing.T) {
	d, server := newOpenedAristaDriver(t)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure session rollback-me", cmd)
		_, _ = server.Write([]byte("switch(config-s-rollba)# "))
	}()
	s, err := arista.NewConfigSession(context.Background(), d, "rollback-me")
	require.NoError(t, err)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "abort", cmd)
		_, _ = server.Write([]byte("abort\r\nswitch# "))
	}()
	require.NoError(t, s.Abort(context.Background()))
	assert.Equal(t, "privilege_exec", d.CurrentPrivilege())
	assert.False(t, d.HasDynamicLevel("config_session_rollback-me"))
}

func TestAristaConfigSessionDetachAndReattach(t *testing.T) {
	d, server := newOpenedAristaDriver(t)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure session test1", cmd)
		_, _ = server.Write([]byte("switch(config-s-test1)# "))
	}()
	s, err := arista.NewConfigSession(context.Background(), d, "test1")
	require.NoError(t, err)

	require.NoError(t, s.Detach(context.Background()))
	assert.Equal(t, "config_session_test1", d.CurrentPrivilege(), "detach leaves the driver in the session")
	assert.True(t, d.HasDynamicLevel("config_session_test1"))

	// Re-attach: already registered and already the current level, so no
	// device interaction is expected.
	s2, err := arista.NewConfigSession(context.Background(), d, "test1")
	require.NoError(t, err)
	assert.Equal(t, "test1", s2.SessionName())

	require.NoError(t, s2.Detach(context.Background()))
}

func TestAristaCommitConfirmedRejectsTooShortTimer(t *testing.T) {
	d, server := newOpenedAristaDriver(t)

	go func() {
		cmd, err := readLine(server)
		require.NoError(t, err)
		assert.Equal(t, "configure session test1", cmd)
		_, _ = server.Write([]byte("switch(config-s-test1)# "))
	}()
	s, err := arista.NewConfigSession(context.Background(), d, "test1")
	require.NoError(t, err)

	err = s.CommitConfirmed(context.Background(), 30*time.Second)
	assert.Error(t, err)
}

func TestAristaConfigSessionRejectsWrongPlatform(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	d, err := driver.NewBuilder("host").
		Username("admin").
		Password("secret").
		Platform(linux.Platform()).
		Timeout(2 * time.Second).
		Quiescence(2 * time.Millisecond).
		Transport(&fakeTransport{conn: clientSide}).
		Build()
	require.NoError(t, err)

	go func() { _, _ = serverSide.Write([]byte("user@host$ ")) }()
	require.NoError(t, d.OpenDriver(context.Background()))
	t.Cleanup(func() { _ = serverSide.Close() })

	_, err = arista.NewConfigSession(context.Background(), d, "test1")
	assert.Error(t, err)
}

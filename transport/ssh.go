package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/morganhein/netshell/netlog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHTransport is the concrete Transport implementation shipped with
// netshell, built on golang.org/x/crypto/ssh. It reproduces the
// dial/session/PTY/shell sequence the teacher's transport/device.go and
// transport/cisco.go use, generalized into a single reusable type instead
// of one struct per vendor.
type SSHTransport struct {
	TerminalWidth       int
	TerminalHeight      int
	HostKeyVerification HostKeyVerification
	KnownHostsPath      string
	KeepaliveInterval   time.Duration // 0 disables
	KeepaliveMax        int
	InactivityTimeout   time.Duration // 0 disables

	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader

	mu     sync.Mutex
	closed bool

	keepaliveStop chan struct{}
}

// Open dials the host, requests a PTY sized to TerminalWidth/TerminalHeight
// (default 80x24 when unset) and starts an interactive shell, matching the
// on-open sequence in the teacher's connectSsh.
func (t *SSHTransport) Open(ctx context.Context, host string, port int, username string, auth AuthMethod, timeout time.Duration) error {
	authMethods, err := resolveAuth(auth)
	if err != nil {
		return err
	}

	hostKeyCallback, err := t.hostKeyCallback()
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	cConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(cConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return fmt.Errorf("new session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	width, height := t.TerminalWidth, t.TerminalHeight
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	if err := session.RequestPty("xterm", height, width, modes); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("request pty: %w", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return fmt.Errorf("start shell: %w", err)
	}

	t.client = client
	t.session = session
	t.stdin = stdin
	t.stdout = stdout

	if t.KeepaliveInterval > 0 {
		t.startKeepalive(client)
	}

	netlog.Log.Info("SSH session established to ", addr)
	return nil
}

func (t *SSHTransport) startKeepalive(client *ssh.Client) {
	t.keepaliveStop = make(chan struct{})
	max := t.KeepaliveMax
	if max <= 0 {
		max = 3
	}
	go func() {
		ticker := time.NewTicker(t.KeepaliveInterval)
		defer ticker.Stop()
		missed := 0
		for {
			select {
			case <-t.keepaliveStop:
				return
			case <-ticker.C:
				_, _, err := client.SendRequest("keepalive@netshell", true, nil)
				if err != nil {
					missed++
					if missed >= max {
						netlog.Log.Warning("SSH keepalive exceeded max missed replies, closing")
						client.Close()
						return
					}
					continue
				}
				missed = 0
			}
		}
	}()
}

func (t *SSHTransport) Read(buf []byte) (int, error) {
	if t.stdout == nil {
		return 0, fmt.Errorf("transport not open")
	}
	return t.stdout.Read(buf)
}

func (t *SSHTransport) Write(buf []byte) (int, error) {
	if t.stdin == nil {
		return 0, fmt.Errorf("transport not open")
	}
	return t.stdin.Write(buf)
}

func (t *SSHTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.keepaliveStop != nil {
		close(t.keepaliveStop)
	}
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.session != nil {
		t.session.Close()
	}
	if t.client != nil {
		t.client.Close()
	}
	return nil
}

func (t *SSHTransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	switch t.HostKeyVerification {
	case HostKeyDisabled:
		return ssh.InsecureIgnoreHostKey(), nil
	default:
		path := t.KnownHostsPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve known_hosts path: %w", err)
			}
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
		cb, err := knownhosts.New(path)
		if err != nil {
			if t.HostKeyVerification == HostKeyAcceptNew {
				return ssh.InsecureIgnoreHostKey(), nil
			}
			return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
		}
		return cb, nil
	}
}

func resolveAuth(auth AuthMethod) (methods []ssh.AuthMethod, err error) {
	switch auth.Kind {
	case AuthPassword:
		return []ssh.AuthMethod{ssh.Password(auth.Password)}, nil
	case AuthPrivateKey:
		key, err := os.ReadFile(auth.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", auth.KeyPath, err)
		}
		var signer ssh.Signer
		if auth.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(auth.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case AuthAgent:
		return nil, fmt.Errorf("agent authentication requires a caller-supplied signer; use PrivateKey instead")
	default:
		return nil, fmt.Errorf("no authentication method supplied")
	}
}

// Package transport defines the abstract byte-duplex collaborator that
// channel.Channel drives, plus a concrete SSH-backed implementation.
package transport

import (
	"context"
	"time"
)

// Transport is the external collaborator netshell consumes: a full-duplex
// byte channel with open/read/write/close. SSH transport establishment
// (authentication, channel open, keepalives) lives entirely behind this
// interface; the core engine never depends on a concrete transport.
type Transport interface {
	// Open establishes the connection. It must not be called twice on the
	// same Transport value.
	Open(ctx context.Context, host string, port int, username string, auth AuthMethod, timeout time.Duration) error
	// Read reads available bytes into buf, returning the number read.
	Read(buf []byte) (int, error)
	// Write writes buf verbatim.
	Write(buf []byte) (int, error)
	// Close releases the underlying connection. Idempotent.
	Close() error
}

// AuthMethodKind distinguishes the AuthMethod variants.
type AuthMethodKind int

const (
	// AuthNone indicates no credential was supplied (a build-time error
	// for any transport that requires one).
	AuthNone AuthMethodKind = iota
	// AuthPassword authenticates with a plaintext password.
	AuthPassword
	// AuthPrivateKey authenticates with a private key file, optionally
	// protected by a passphrase.
	AuthPrivateKey
	// AuthAgent selects SSH-agent authentication. SSHTransport does not
	// support it: Open returns an error for this kind.
	AuthAgent
)

// AuthMethod is a closed sum type over the transport's supported
// authentication variants.
type AuthMethod struct {
	Kind       AuthMethodKind
	Password   string
	KeyPath    string
	Passphrase string
}

// Password constructs a password AuthMethod.
func Password(password string) AuthMethod {
	return AuthMethod{Kind: AuthPassword, Password: password}
}

// PrivateKey constructs a private-key AuthMethod.
func PrivateKey(path string) AuthMethod {
	return AuthMethod{Kind: AuthPrivateKey, KeyPath: path}
}

// PrivateKeyWithPassphrase constructs a passphrase-protected private-key
// AuthMethod.
func PrivateKeyWithPassphrase(path, passphrase string) AuthMethod {
	return AuthMethod{Kind: AuthPrivateKey, KeyPath: path, Passphrase: passphrase}
}

// Agent constructs an SSH-agent AuthMethod.
func Agent() AuthMethod {
	return AuthMethod{Kind: AuthAgent}
}

// HostKeyVerification controls how SSHTransport treats the remote host key.
type HostKeyVerification int

const (
	// HostKeyAcceptNew checks keys against known_hosts when that file
	// loads, rejecting unknown and changed keys alike; when it cannot be
	// loaded, any key is accepted. No key is ever recorded. Default.
	HostKeyAcceptNew HostKeyVerification = iota
	// HostKeyStrict rejects both unknown and changed keys.
	HostKeyStrict
	// HostKeyDisabled accepts any key. Testing/lab use only.
	HostKeyDisabled
)

package errors

import (
	"fmt"
	"io"
	"io/fs"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConnectionError
		want string
	}{
		{
			name: "retryable",
			err:  ConnectionError{Op: "dial", Addr: "127.0.0.1:5000", Err: io.EOF, Retryable: true},
			want: "dial 127.0.0.1:5000: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  ConnectionError{Op: "read", Addr: "10.0.0.2:51234", Err: io.ErrUnexpectedEOF},
			want: "read 10.0.0.2:51234: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConnectionError_Unwrap(t *testing.T) {
	err := &ConnectionError{Op: "read", Addr: "x", Err: io.EOF}
	assert.True(t, Is(err, io.EOF))
	assert.True(t, IsConnection(fmt.Errorf("session: %w", err)))
	assert.False(t, IsIO(err))
}

func TestIOError(t *testing.T) {
	err := WrapIO("mkdir", "/srv/a", fs.ErrExist)
	assert.Equal(t, "mkdir /srv/a: file already exists", err.Error())
	assert.True(t, Is(err, fs.ErrExist))
	assert.True(t, IsIO(err))
	assert.False(t, IsConnection(err))

	noPath := WrapIO("list", "", ErrNotFound)
	assert.Equal(t, "list: no such file or directory", noPath.Error())
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Verb: "rmdir"}
	assert.Equal(t, `unknown command: "rmdir"`, err.Error())

	var pe *ProtocolError
	require.True(t, As(fmt.Errorf("dispatch: %w", err), &pe))
	assert.Equal(t, "rmdir", pe.Verb)
}

func TestBindError(t *testing.T) {
	inner := fmt.Errorf("address already in use")
	err := &BindError{Addr: "127.0.0.1:5000", Err: inner}
	assert.Equal(t, "bind 127.0.0.1:5000: address already in use", err.Error())
	assert.True(t, Is(err, inner))
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	assert.Equal(t, "ssh handshake bastion.example.com:22: connection refused", err.Error())
	assert.True(t, Is(err, err.Err))
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "port",
				Value:   99999,
				Message: "out of range 5000-5500",
				Hint:    "use a port between 5000 and 5500",
			},
			want: "config: --port=99999: out of range 5000-5500\n  hint: use a port between 5000 and 5500",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "root",
				Message: "must be a directory",
			},
			want: "config: --root: must be a directory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("write", "10.0.0.1:5000", inner)

	assert.Equal(t, "write", err.Op)
	assert.Equal(t, "10.0.0.1:5000", err.Addr)
	assert.True(t, Is(err, inner))
	assert.False(t, err.Retryable)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable connection", &ConnectionError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable connection", &ConnectionError{Op: "read", Addr: "x", Err: io.EOF}, false},
		{"dial op error", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("refused")}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestClassifyRetryable_TemporaryDNS(t *testing.T) {
	opErr := &net.OpError{
		Op:  "read",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	assert.True(t, classifyRetryable(opErr))
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrNotDir, ErrIsDir, ErrNoParent, ErrOutsideRoot,
		ErrEmptyName, ErrInUse, ErrFrameTooLarge, ErrNegativeCount, ErrNotConnected,
		ErrTunnelClosed, ErrAuthFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, Is(a, b), "sentinel %d and %d should not match", i, j)
			}
		}
	}
}

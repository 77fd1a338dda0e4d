package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rfserr "rfs/internal/errors"
	"rfs/tunnel"
	"rfs/util"
)

func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("hello from server\n"))
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hello from server\n", string(got))
}

func TestTCPDialer_LocalPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port, err := util.FindFreePort()
	require.NoError(t, err)

	accepted := make(chan net.Addr, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn.RemoteAddr()
		conn.Close()
	}()

	d := &TCPDialer{Timeout: 2 * time.Second, LocalPort: port}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case addr := <-accepted:
		assert.Equal(t, port, addr.(*net.TCPAddr).Port)
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
	}
}

func TestTCPDialer_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&TCPDialer{Timeout: 5 * time.Second}).Dial(ctx, "tcp", "127.0.0.1:1")
	assert.Error(t, err)
}

func TestTCPDialer_Close(t *testing.T) {
	assert.NoError(t, (&TCPDialer{}).Close())
}

func TestSSHDialer_GatewayUnreachable(t *testing.T) {
	port, err := util.FindFreePort()
	require.NoError(t, err)
	logger := util.NewLogger(0)
	logger.SetOutput(io.Discard)

	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "rfs",
		Host:        "127.0.0.1",
		Port:        port,
		PromptPass:  true,
		ConnTimeout: time.Second,
		ReadSecret:  func(string) ([]byte, error) { return []byte("pw"), nil },
	}, logger)
	defer d.Close()

	_, err = d.Dial(context.Background(), "tcp", "127.0.0.1:5000")
	require.Error(t, err)
	assert.True(t, rfserr.IsConnection(err), "got %v", err)
	assert.NoError(t, d.Close())
}

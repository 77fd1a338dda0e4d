package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	rfserr "rfs/internal/errors"
	"rfs/util"
)

// gateway is a minimal SSH server that accepts one public key and
// forwards direct-tcpip channels.
type gateway struct {
	ln       net.Listener
	keepHits chan struct{}
}

func startGateway(t *testing.T, allowed ssh.PublicKey) *gateway {
	t.Helper()
	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(allowed.Marshal()) {
				return nil, nil
			}
			return nil, rfserr.ErrAuthFailed
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	g := &gateway{ln: ln, keepHits: make(chan struct{}, 16)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go g.serve(conn, cfg)
		}
	}()
	return g
}

func (g *gateway) port() int { return g.ln.Addr().(*net.TCPAddr).Port }

func (g *gateway) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()

	go func() {
		for req := range reqs {
			if req.Type == "keepalive@openssh.com" {
				select {
				case g.keepHits <- struct{}{}:
				default:
				}
			}
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		}
	}()

	for nc := range chans {
		if nc.ChannelType() != "direct-tcpip" {
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		var target struct {
			Host       string
			Port       uint32
			OriginHost string
			OriginPort uint32
		}
		if err := ssh.Unmarshal(nc.ExtraData(), &target); err != nil {
			_ = nc.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		up, err := net.Dial("tcp", net.JoinHostPort(target.Host, strconv.Itoa(int(target.Port))))
		if err != nil {
			_ = nc.Reject(ssh.ConnectionFailed, err.Error())
			continue
		}
		ch, creqs, err := nc.Accept()
		if err != nil {
			up.Close()
			continue
		}
		go ssh.DiscardRequests(creqs)
		go func() {
			defer ch.Close()
			defer up.Close()
			go func() { _, _ = io.Copy(up, ch) }()
			_, _ = io.Copy(ch, up)
		}()
	}
}

func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

func TestSSHTunnel_DialThroughGateway(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	pub := writeKey(t, keyPath, "")
	gw := startGateway(t, pub)
	echo := startEcho(t)

	tun := NewSSHTunnel(&SSHConfig{User: "rfs", Host: "127.0.0.1", Port: gw.port(), KeyPath: keyPath}, quietLogger())
	require.NoError(t, tun.Connect(context.Background()))
	defer tun.Close()
	assert.True(t, tun.IsAlive())

	conn, err := tun.Dial(context.Background(), "tcp", echo)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestSSHTunnel_KeepAlive(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	pub := writeKey(t, keyPath, "")
	gw := startGateway(t, pub)

	tun := NewSSHTunnel(&SSHConfig{User: "rfs", Host: "127.0.0.1", Port: gw.port(), KeyPath: keyPath,
		KeepAlive: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, tun.Connect(context.Background()))
	defer tun.Close()

	select {
	case <-gw.keepHits:
	case <-time.After(5 * time.Second):
		t.Fatal("no keepalive reached the gateway")
	}
}

func TestSSHTunnel_RejectedKey(t *testing.T) {
	dir := t.TempDir()
	allowed := writeKey(t, filepath.Join(dir, "allowed"), "")
	other := filepath.Join(dir, "other")
	writeKey(t, other, "")
	gw := startGateway(t, allowed)

	tun := NewSSHTunnel(&SSHConfig{User: "rfs", Host: "127.0.0.1", Port: gw.port(), KeyPath: other}, quietLogger())
	err := tun.Connect(context.Background())
	require.Error(t, err)

	var se *rfserr.SSHError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "handshake", se.Op)
	assert.ErrorIs(t, err, rfserr.ErrAuthFailed)
	assert.False(t, tun.IsAlive())
}

func TestSSHTunnel_DialBeforeConnect(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "127.0.0.1"}, quietLogger())
	_, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1")
	assert.ErrorIs(t, err, rfserr.ErrNotConnected)
	assert.NoError(t, tun.Close())
}

func TestSSHTunnel_DialAfterGatewayDrops(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	pub := writeKey(t, keyPath, "")
	gw := startGateway(t, pub)

	tun := NewSSHTunnel(&SSHConfig{User: "rfs", Host: "127.0.0.1", Port: gw.port(), KeyPath: keyPath}, quietLogger())
	require.NoError(t, tun.Connect(context.Background()))
	defer tun.Close()

	tun.mu.RLock()
	client := tun.client
	tun.mu.RUnlock()
	require.NoError(t, client.Conn.Close())

	require.Eventually(t, func() bool { return !tun.IsAlive() }, 5*time.Second, 10*time.Millisecond)
	_, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1")
	assert.ErrorIs(t, err, rfserr.ErrTunnelClosed)
}

func TestNewSSHTunnel_Defaults(t *testing.T) {
	cfg := &SSHConfig{Host: "gw"}
	NewSSHTunnel(cfg, quietLogger())
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ConnTimeout)
}

package transfer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfs/internal/errors"
	"rfs/internal/protocol"
)

func channelPair(t *testing.T) (*protocol.Channel, *protocol.Channel, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b, ok := <-accepted
	require.True(t, ok)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return protocol.NewChannel(a, nil), protocol.NewChannel(b, nil), a
}

func writeRandom(t *testing.T, path string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return data
}

func TestSendReceive_Sizes(t *testing.T) {
	sizes := []int{0, 1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 10000, 3*ChunkSize + 7}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("%d", size), func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "src.bin")
			dst := filepath.Join(dir, "dst.bin")
			want := writeRandom(t, src, size)

			sender, receiver, _ := channelPair(t)
			errc := make(chan error, 1)
			go func() {
				_, err := SendFile(sender, src)
				errc <- err
			}()

			n, err := ReceiveFile(receiver, dst)
			require.NoError(t, err)
			require.NoError(t, <-errc)
			assert.Equal(t, int64(size), n)

			got, err := os.ReadFile(dst)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(want, got), "content mismatch")
		})
	}
}

func TestReceiveFile_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(dst, []byte("a much longer old content"), 0o644))

	sender, receiver, _ := channelPair(t)
	require.NoError(t, sender.WriteLength(3))
	require.NoError(t, sender.WriteBytes([]byte("new")))

	_, err := ReceiveFile(receiver, dst)
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	fi, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), fi.Mode().Perm())
}

func TestOpen_Rejects(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing"))
	assert.True(t, errors.IsIO(err))
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = Open(dir)
	assert.True(t, errors.IsIO(err))
	assert.ErrorIs(t, err, errors.ErrIsDir)
}

func TestReceiveFile_FilesystemFailureDrains(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "no-such-dir", "f.txt")

	sender, receiver, _ := channelPair(t)
	require.NoError(t, sender.WriteLength(5000))
	require.NoError(t, sender.WriteBytes(bytes.Repeat([]byte("z"), 5000)))
	require.NoError(t, sender.WriteText("next"))

	_, err := ReceiveFile(receiver, dst)
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
	assert.False(t, errors.IsConnection(err))

	text, err := receiver.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "next", text)
}

func TestReceiveFile_InterruptedLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "f.txt")

	sender, receiver, senderConn := channelPair(t)
	require.NoError(t, sender.WriteLength(1<<20))
	require.NoError(t, sender.WriteBytes([]byte("only a little")))
	senderConn.Close()

	_, err := ReceiveFile(receiver, dst)
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial or temp file may remain")
}

func TestDiscard(t *testing.T) {
	sender, receiver, _ := channelPair(t)
	require.NoError(t, sender.WriteLength(9000))
	require.NoError(t, sender.WriteBytes(make([]byte, 9000)))
	require.NoError(t, sender.WriteText(protocol.CompletionMarker))

	n, err := Discard(receiver)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), n)

	text, err := receiver.ReadText()
	require.NoError(t, err)
	assert.Equal(t, protocol.CompletionMarker, text)
}

func TestReceive_IntoWriter(t *testing.T) {
	sender, receiver, _ := channelPair(t)
	require.NoError(t, sender.WriteLength(5))
	require.NoError(t, sender.WriteBytes([]byte("hello")))

	var buf bytes.Buffer
	n, err := Receive(receiver, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", buf.String())
}

// Package transfer moves file contents over a protocol.Channel as a
// single binary frame: an 8-byte big-endian length followed by the
// bytes, written in ChunkSize pieces.
//
// Received files are written to a temporary sibling and renamed into
// place only when the whole payload has arrived, so an interrupted
// transfer never leaves a partial file behind.
package transfer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"rfs/internal/errors"
	"rfs/internal/protocol"
	"rfs/util"
)

// ChunkSize is the size of each payload write.
const ChunkSize = util.DefaultBufSize

// filePerm is applied to received files; temp files start at 0600.
const filePerm = 0o644

// Source is a regular file opened for sending.
type Source struct {
	f    *os.File
	path string
	size int64
}

// Open checks that path is an existing regular file and opens it.
// The check happens once, immediately before the transfer.
func Open(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapIO("open", path, errors.ErrNotFound)
		}
		return nil, errors.WrapIO("open", path, err)
	}
	if fi.IsDir() {
		return nil, errors.WrapIO("open", path, errors.ErrIsDir)
	}
	if !fi.Mode().IsRegular() {
		return nil, errors.WrapIO("open", path, errors.ErrNotFound)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	return &Source{f: f, path: path, size: fi.Size()}, nil
}

// Size returns the length announced in the frame header.
func (s *Source) Size() int64 { return s.size }

// Close closes the underlying file.
func (s *Source) Close() error { return s.f.Close() }

// Send writes the frame header and exactly Size bytes.  If the file
// shrinks underneath us the frame cannot be completed and the error is
// a ConnectionError: the caller must drop the connection.
func (s *Source) Send(ch *protocol.Channel) error {
	if err := ch.WriteLength(uint64(s.size)); err != nil {
		return err
	}
	return ch.SendPayload(s.f, uint64(s.size))
}

// SendFile opens path and sends it as one binary frame.  It returns the
// number of payload bytes sent.
func SendFile(ch *protocol.Channel, path string) (int64, error) {
	src, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	if err := src.Send(ch); err != nil {
		return 0, err
	}
	return src.Size(), nil
}

// ReceiveFile reads one binary frame and stores it at path, replacing
// any existing file.
//
// Filesystem failures are returned as IOErrors after the rest of the
// payload has been drained, leaving the channel positioned on the next
// frame.  Connection failures are returned as ConnectionErrors.  In
// both cases no file is created at path.
func ReceiveFile(ch *protocol.Channel, path string) (int64, error) {
	n, err := ch.ReadLength()
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rfs-*")
	if err != nil {
		if derr := ch.RecvPayload(io.Discard, n); derr != nil {
			return 0, derr
		}
		return 0, errors.WrapIO("create", path, err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if err := ch.RecvPayload(tmp, n); err != nil {
		if errors.IsConnection(err) {
			return 0, err
		}
		return 0, errors.WrapIO("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, errors.WrapIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.WrapIO("write", path, err)
	}
	_ = os.Chmod(tmpName, filePerm)

	if err := os.Rename(tmpName, path); err != nil {
		return 0, errors.WrapIO("rename", path, err)
	}
	ok = true
	return int64(n), nil
}

// Receive reads one binary frame into w.  A failing w is reported only
// after the payload has been consumed.
func Receive(ch *protocol.Channel, w io.Writer) (int64, error) {
	n, err := ch.ReadLength()
	if err != nil {
		return 0, err
	}
	if err := ch.RecvPayload(w, n); err != nil {
		return 0, err
	}
	return int64(n), nil
}

// Discard reads one binary frame and throws the payload away.
func Discard(ch *protocol.Channel) (int64, error) {
	return Receive(ch, io.Discard)
}

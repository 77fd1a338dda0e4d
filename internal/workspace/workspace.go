// Package workspace holds a session's current-directory cursor and the
// filesystem operations that act relative to it.  Every path a client
// names is resolved against the cursor and confined to the served root.
//
// A Workspace belongs to a single session and is not safe for
// concurrent use.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"rfs/internal/errors"
)

// dirPerm is the mode for directories created by Mkdir.
const dirPerm = 0o755

// Workspace is a cursor inside a served directory tree.
type Workspace struct {
	root string
	dir  string
}

// New returns a Workspace whose cursor starts at root.  root must be
// an existing directory.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapIO("root", root, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapIO("root", abs, errors.ErrNotFound)
		}
		return nil, errors.WrapIO("root", abs, err)
	}
	if !fi.IsDir() {
		return nil, errors.WrapIO("root", abs, errors.ErrNotDir)
	}
	return &Workspace{root: abs, dir: abs}, nil
}

// Root returns the served root.
func (w *Workspace) Root() string { return w.root }

// Dir returns the current directory.
func (w *Workspace) Dir() string { return w.dir }

// Resolve joins name onto the current directory.  A leading slash does
// not escape to the filesystem root: "/a" means "a" under Dir.
func (w *Workspace) Resolve(name string) (string, error) {
	if name == "" {
		return "", errors.ErrEmptyName
	}
	p := filepath.Join(w.dir, name)
	if !within(w.root, p) {
		return "", errors.ErrOutsideRoot
	}
	return p, nil
}

// List returns the names of the current directory's entries, sorted.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, errors.WrapIO("list", w.dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Mkdir creates one directory and returns its path.
func (w *Workspace) Mkdir(name string) (string, error) {
	p, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(p, dirPerm); err != nil {
		return p, errors.WrapIO("mkdir", p, unwrapPath(err))
	}
	return p, nil
}

// Chdir moves the cursor and returns the new current directory.  On
// any error the cursor stays where it was.
func (w *Workspace) Chdir(name string) (string, error) {
	if name == ".." && w.dir == w.root {
		return w.dir, errors.ErrNoParent
	}
	p, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return p, errors.WrapIO("cd", p, errors.ErrNotFound)
	case err != nil:
		return p, errors.WrapIO("cd", p, unwrapPath(err))
	case !fi.IsDir():
		return p, errors.WrapIO("cd", p, errors.ErrNotDir)
	}
	w.dir = p
	return p, nil
}

// Remove deletes a file or an empty directory and returns its path.
// The current directory and its ancestors cannot be removed.
func (w *Workspace) Remove(name string) (string, error) {
	p, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	if within(p, w.dir) {
		return p, errors.WrapIO("delete", p, errors.ErrInUse)
	}
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, errors.WrapIO("delete", p, errors.ErrNotFound)
		}
		return p, errors.WrapIO("delete", p, unwrapPath(err))
	}
	if err := os.Remove(p); err != nil {
		return p, errors.WrapIO("delete", p, unwrapPath(err))
	}
	return p, nil
}

// FilePath resolves name as a file destination.  An existing directory
// at that path is rejected.
func (w *Workspace) FilePath(name string) (string, error) {
	p, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return p, errors.WrapIO("open", p, errors.ErrIsDir)
	}
	return p, nil
}

// within reports whether p is root or lies beneath it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// unwrapPath strips the *fs.PathError wrapper so the path is not
// repeated in the IOError message.
func unwrapPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// Package osfs exposes a host directory as an absfs.FileSystem. Paths are
// interpreted relative to the directory, so "/" is the directory itself.
package osfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/absfs/absfs"
)

// FileSystem is an absfs.FileSystem confined to a root directory
type FileSystem struct {
	root string
	cwd  string
}

var _ absfs.FileSystem = (*FileSystem)(nil)

// New returns a FileSystem rooted at dir. dir must exist.
func New(dir string) (*FileSystem, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	return &FileSystem{root: abs, cwd: "/"}, nil
}

// Root returns the host directory backing the filesystem
func (fs *FileSystem) Root() string {
	return fs.root
}

func (fs *FileSystem) path(name string) string {
	if !filepath.IsAbs(name) && name != "" && name[0] != '/' {
		name = filepath.Join(fs.cwd, name)
	}
	return filepath.Join(fs.root, filepath.Clean(string(filepath.Separator)+name))
}

func (fs *FileSystem) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	return os.OpenFile(fs.path(name), flag, perm)
}

func (fs *FileSystem) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.path(name), perm)
}

func (fs *FileSystem) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.path(name), perm)
}

func (fs *FileSystem) Remove(name string) error {
	return os.Remove(fs.path(name))
}

func (fs *FileSystem) RemoveAll(path string) error {
	return os.RemoveAll(fs.path(path))
}

func (fs *FileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(fs.path(oldpath), fs.path(newpath))
}

func (fs *FileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.path(name))
}

func (fs *FileSystem) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.path(name), mode)
}

func (fs *FileSystem) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.path(name), atime, mtime)
}

func (fs *FileSystem) Chown(name string, uid, gid int) error {
	return os.Chown(fs.path(name), uid, gid)
}

func (fs *FileSystem) Separator() uint8 {
	return os.PathSeparator
}

func (fs *FileSystem) ListSeparator() uint8 {
	return os.PathListSeparator
}

func (fs *FileSystem) Chdir(dir string) error {
	info, err := os.Stat(fs.path(dir))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if !filepath.IsAbs(dir) && !strings.HasPrefix(dir, "/") {
		dir = filepath.Join(fs.cwd, dir)
	}
	fs.cwd = filepath.Clean(string(filepath.Separator) + dir)
	return nil
}

func (fs *FileSystem) Getwd() (string, error) {
	return fs.cwd, nil
}

func (fs *FileSystem) TempDir() string {
	return os.TempDir()
}

func (fs *FileSystem) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *FileSystem) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *FileSystem) Truncate(name string, size int64) error {
	return os.Truncate(fs.path(name), size)
}

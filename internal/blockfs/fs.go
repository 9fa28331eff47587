package blockfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Type reports where an FS keeps its data.
type Type int

const (
	// TypeLocal is disk-backed.
	TypeLocal Type = iota + 1
	// TypeMemory lives only as long as the process.
	TypeMemory
)

func (t Type) String() string {
	switch t {
	case TypeLocal:
		return "local"
	case TypeMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// FS is a billy-backed filesystem rooted at a vault's storage directory.
type FS struct {
	bfs  billy.Filesystem
	kind Type

	// mu guards bfs. memfs is not safe for concurrent use.
	mu sync.RWMutex
}

// NewLocal returns an FS rooted at dir, creating dir if needed.
func NewLocal(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FS{bfs: osfs.New(dir), kind: TypeLocal}, nil
}

// NewMemory returns an empty in-memory FS.
func NewMemory() *FS {
	return &FS{bfs: memfs.New(), kind: TypeMemory}
}

// Type returns the backing kind.
func (f *FS) Type() Type {
	return f.kind
}

// ReadFile reads the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	file, err := f.bfs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

// WriteFile replaces the named file, creating parent directories.
func (f *FS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mkdirParent(name); err != nil {
		return err
	}
	return util.WriteFile(f.bfs, name, data, perm)
}

// WriteFileAtomic writes data to a temporary file beside name and renames
// it into place, so readers never observe a partial file.
func (f *FS) WriteFileAtomic(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mkdirParent(name); err != nil {
		return err
	}
	tmp, err := f.bfs.TempFile(path.Dir(name), ".tmp-")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = f.bfs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = f.bfs.Remove(tmp.Name())
		return err
	}
	return f.bfs.Rename(tmp.Name(), name)
}

// AppendFile appends data to the named file, creating it if needed.
func (f *FS) AppendFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mkdirParent(name); err != nil {
		return err
	}
	file, err := f.bfs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Exists reports whether the named file exists.
func (f *FS) Exists(name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := f.bfs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (f *FS) mkdirParent(name string) error {
	dir := path.Dir(name)
	if dir == "." || dir == "/" {
		return nil
	}
	return f.bfs.MkdirAll(dir, 0o755)
}

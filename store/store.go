package store

import (
	"context"
	"io/fs"
	"path"
	"time"
)

// Feed names one of the two logical channels of a vault.
type Feed string

const (
	// FeedMetadata carries the log of file mutations.
	FeedMetadata Feed = "metadata"
	// FeedContent carries file bytes.
	FeedContent Feed = "content"
)

// ChangeType is the kind of a log entry.
type ChangeType string

const (
	ChangePut    ChangeType = "put"
	ChangeDelete ChangeType = "delete"
)

// Change describes one log entry. Version is the log length once the entry
// is applied, so the first entry has version 1.
type Change struct {
	Path    string
	Version int
	Type    ChangeType
}

// OpenOptions configures Driver.Open.
type OpenOptions struct {
	// Key opens the vault with this hex public key. Empty creates a new vault
	// with a fresh key pair.
	Key string

	// LocalPath persists the vault under this directory. Empty keeps
	// everything in memory for the lifetime of the handle.
	LocalPath string

	// Sparse defers content download until a block is read or Download is
	// called. Metadata is always replicated in full.
	Sparse bool
}

// Driver opens vault handles.
type Driver interface {
	Open(ctx context.Context, opts OpenOptions) (Handle, error)
}

// Reader is a read view of a vault, either live or pinned to a version.
type Reader interface {
	// Version returns the log length this view observes.
	Version() int

	Stat(ctx context.Context, name string) (*Stat, error)
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// ReadDir returns the sorted names of the entries in a directory.
	ReadDir(ctx context.Context, name string) ([]string, error)

	// History returns the entries in [start, end) in log order. Bounds are
	// clamped to the view.
	History(ctx context.Context, start, end int) ([]Change, error)
}

// Handle is the live handle to an open vault. Mutations are only permitted
// when Writable reports true.
type Handle interface {
	Reader

	// Key returns the hex public key identifying the vault.
	Key() string

	// Writable reports whether the local process holds the write capability.
	Writable() bool

	// Len returns the number of metadata entries seen locally.
	Len() int

	// Peers returns the number of connected peers.
	Peers() int

	// Checkout returns a read view pinned to the first version entries.
	Checkout(version int) Reader

	WriteFile(ctx context.Context, name string, data []byte) error
	Mkdir(ctx context.Context, name string) error
	Unlink(ctx context.Context, name string) error
	Rmdir(ctx context.Context, name string, recursive bool) error

	// Download fetches missing content blocks for a file, or for every file
	// below a directory.
	Download(ctx context.Context, name string) error

	// Update blocks until at least one metadata entry is available locally.
	Update(ctx context.Context) error

	// JoinNetwork announces the handle to peers and starts replicating.
	JoinNetwork(ctx context.Context) error

	// Notify registers fn for notifications in emission order and returns a
	// function that unregisters it. Notifications emitted while fn is not
	// registered are not replayed.
	Notify(fn func(Notification)) (stop func())

	Close() error
}

// NotificationKind discriminates Notification.
type NotificationKind int

const (
	// NotifyAppend reports a metadata entry applied locally, by a local
	// write or by replication. Path is set.
	NotifyAppend NotificationKind = iota + 1
	// NotifyPeerAdd reports a peer connected.
	NotifyPeerAdd
	// NotifyPeerRemove reports a peer disconnected.
	NotifyPeerRemove
	// NotifyDownload reports a block received from a peer. Feed and Block
	// are set.
	NotifyDownload
	// NotifySync reports a feed is fully downloaded. Feed is set.
	NotifySync
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyAppend:
		return "append"
	case NotifyPeerAdd:
		return "peer-add"
	case NotifyPeerRemove:
		return "peer-remove"
	case NotifyDownload:
		return "download"
	case NotifySync:
		return "sync"
	default:
		return "unknown"
	}
}

// Notification is a native push event from a Handle.
type Notification struct {
	Kind  NotificationKind
	Path  string
	Feed  Feed
	Block int
}

// Stat describes a file or directory. It implements fs.FileInfo.
type Stat struct {
	Path   string
	Dir    bool
	Length int64
	Mtime  time.Time
	Ctime  time.Time

	// Blocks is the number of content blocks of the file.
	Blocks int
	// Downloaded is the number of those blocks present locally.
	Downloaded int
	// Offset is the index of the file's first block in the content feed.
	Offset int64
}

var _ fs.FileInfo = (*Stat)(nil)

// Name returns the base name.
func (s *Stat) Name() string {
	if s.Path == "" {
		return "/"
	}
	return path.Base(s.Path)
}

func (s *Stat) Size() int64        { return s.Length }
func (s *Stat) IsDir() bool        { return s.Dir }
func (s *Stat) IsFile() bool       { return !s.Dir }
func (s *Stat) ModTime() time.Time { return s.Mtime }
func (s *Stat) Sys() any           { return nil }

func (s *Stat) Mode() fs.FileMode {
	if s.Dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}

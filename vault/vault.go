package vault

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"io"
	"log/slog"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/go/dweb/activity"
	"github.com/jmgilman/go/dweb/address"
	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/internal/pathutil"
	"github.com/jmgilman/go/dweb/internal/timeout"
	"github.com/jmgilman/go/dweb/manifest"
	"github.com/jmgilman/go/dweb/store"
	"github.com/jmgilman/go/dweb/store/logstore"
)

// statConcurrency bounds parallel stats in ReadDir.
const statConcurrency = 8

// Vault is a handle to one vault. It is safe for concurrent use.
type Vault struct {
	addr   address.Address
	opts   *options
	logger *slog.Logger
	loader *loader

	closeOnce sync.Once
	closeErr  error
}

// New parses addr and starts loading the vault in the background. An empty
// addr creates a fresh vault. Address errors are returned immediately; load
// errors surface from every later call.
func New(addr string, opts ...Option) (*Vault, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return nil, err
	}

	o := &options{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: timeout.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.driver == nil {
		o.driver = logstore.New(logstore.WithLogger(o.logger))
	}

	logger := o.logger
	if !a.IsZero() {
		logger = logger.With("key", a.Key)
	}
	o.logger = logger

	return &Vault{
		addr:   a,
		opts:   o,
		logger: logger,
		loader: startLoader(a, o),
	}, nil
}

// Ready waits for loading to finish and returns its error.
func (v *Vault) Ready(ctx context.Context) error {
	_, err := v.loader.wait(ctx)
	return err
}

// Key returns the vault key, or "" while a fresh vault is still loading.
func (v *Vault) Key() string {
	if !v.addr.IsZero() {
		return v.addr.Key
	}
	if c, ok := v.loader.loaded(); ok {
		return c.handle.Key()
	}
	return ""
}

// URL returns the vault's address without version or path, or "" while a
// fresh vault is still loading.
func (v *Vault) URL() string {
	key := v.Key()
	if key == "" {
		return ""
	}
	return address.Address{Key: key}.Origin()
}

// Close stops loading if it is still in progress and closes the store
// handle. Calls after the first return the first result.
func (v *Vault) Close() error {
	v.closeOnce.Do(func() {
		v.closeErr = v.loader.close()
	})
	return v.closeErr
}

// Info describes a vault.
type Info struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	IsOwner bool   `json:"isOwner"`

	Version int `json:"version"`
	Peers   int `json:"peers"`

	// MTime and Size are reserved and currently always zero.
	MTime int64 `json:"mtime"`
	Size  int64 `json:"size"`

	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Type        manifest.Types   `json:"type,omitempty"`
	Author      *manifest.Author `json:"author,omitempty"`
}

// GetInfo reports the vault's identity, state and manifest. An unreadable
// manifest yields empty manifest fields rather than an error.
func (v *Vault) GetInfo(ctx context.Context, opts ...CallOption) (*Info, error) {
	o := v.callOptions(opts)
	return timeout.Run(ctx, o.Timeout, func(ctx context.Context) (*Info, error) {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return nil, err
		}

		m, err := manifest.Read(ctx, c.Reader())
		if err != nil {
			v.logger.Debug("manifest unavailable", "error", err)
			m = &manifest.Manifest{}
		}

		return &Info{
			Key:         c.handle.Key(),
			URL:         v.URL(),
			IsOwner:     c.handle.Writable(),
			Version:     c.Version(),
			Peers:       c.handle.Peers(),
			Title:       m.Title,
			Description: m.Description,
			Type:        m.Type,
			Author:      m.Author,
		}, nil
	})
}

// Settings lists the configurable vault settings. Nil fields are left alone.
type Settings struct {
	Title       *string
	Description *string
	Type        manifest.Types
	Author      *manifest.Author

	// Networked is accepted for compatibility and has no effect yet.
	Networked *bool
}

// Configure merges the manifest fields of s into the manifest.
func (v *Vault) Configure(ctx context.Context, s Settings, opts ...CallOption) error {
	o := v.callOptions(opts)
	return v.mutate(ctx, o, "", nil, func(ctx context.Context, h store.Handle) error {
		patch := manifest.Patch{
			Title:       s.Title,
			Description: s.Description,
			Type:        s.Type,
			Author:      s.Author,
		}
		if s.Networked != nil {
			v.logger.Debug("ignoring networked setting", "networked", *s.Networked)
		}
		if patch.Empty() {
			return nil
		}
		return manifest.Update(ctx, h, h, patch)
	})
}

// Stat describes the file or directory at name.
func (v *Vault) Stat(ctx context.Context, name string, opts ...CallOption) (*store.Stat, error) {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return timeout.Run(ctx, o.Timeout, func(ctx context.Context) (*store.Stat, error) {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return nil, err
		}
		return c.Reader().Stat(ctx, p)
	})
}

// ReadFile returns the contents of a file rendered in the requested encoding.
func (v *Vault) ReadFile(ctx context.Context, name string, opts ...CallOption) ([]byte, error) {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return timeout.Run(ctx, o.Timeout, func(ctx context.Context) ([]byte, error) {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return nil, err
		}
		data, err := c.Reader().ReadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		return encode(data, o.Encoding)
	})
}

// WriteFile writes data to a file, replacing any previous contents. data is
// decoded from the requested encoding first.
func (v *Vault) WriteFile(ctx context.Context, name string, data []byte, opts ...CallOption) error {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return v.mutate(ctx, o, p, checkFilePath, func(ctx context.Context, h store.Handle) error {
		raw, err := decode(data, o.Encoding)
		if err != nil {
			return err
		}
		return h.WriteFile(ctx, p, raw)
	})
}

// Unlink removes a file.
func (v *Vault) Unlink(ctx context.Context, name string, opts ...CallOption) error {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return v.mutate(ctx, o, p, pathutil.Unprotected, func(ctx context.Context, h store.Handle) error {
		return h.Unlink(ctx, p)
	})
}

// Entry is a ReadDir result. Stat is set when WithStat is passed.
type Entry struct {
	Name string      `json:"name"`
	Stat *store.Stat `json:"stat,omitempty"`
}

// ReadDir lists a directory in name order.
func (v *Vault) ReadDir(ctx context.Context, name string, opts ...CallOption) ([]Entry, error) {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return timeout.Run(ctx, o.Timeout, func(ctx context.Context) ([]Entry, error) {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return nil, err
		}
		r := c.Reader()
		names, err := r.ReadDir(ctx, p)
		if err != nil {
			return nil, err
		}

		entries := make([]Entry, len(names))
		for i, n := range names {
			entries[i].Name = n
		}
		if !o.Stat {
			return entries, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(statConcurrency)
		for i := range entries {
			g.Go(func() error {
				st, err := r.Stat(gctx, path.Join(p, entries[i].Name))
				if err != nil {
					return err
				}
				entries[i].Stat = st
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return entries, nil
	})
}

// Mkdir creates a directory.
func (v *Vault) Mkdir(ctx context.Context, name string, opts ...CallOption) error {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return v.mutate(ctx, o, p, checkPath, func(ctx context.Context, h store.Handle) error {
		return h.Mkdir(ctx, p)
	})
}

// Rmdir removes a directory. Non-empty directories require WithRecursive.
func (v *Vault) Rmdir(ctx context.Context, name string, opts ...CallOption) error {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return v.mutate(ctx, o, p, pathutil.Unprotected, func(ctx context.Context, h store.Handle) error {
		return h.Rmdir(ctx, p, o.Recursive)
	})
}

// Download fetches the content of a file, or of the whole tree when name is
// the root. It does nothing on vaults this process owns. Historical
// checkouts are not supported.
func (v *Vault) Download(ctx context.Context, name string, opts ...CallOption) error {
	o := v.callOptions(opts)
	p := pathutil.Normalize(name)
	return timeout.Do(ctx, o.Timeout, func(ctx context.Context) error {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return err
		}
		if !c.version.IsLive() {
			return verrors.New(verrors.CodeNotImplemented, "downloading historical versions is not supported")
		}
		if c.handle.Writable() {
			return nil
		}
		return c.handle.Download(ctx, p)
	})
}

// History lists log entries of the checkout. See WithStart, WithEnd and
// WithReverse.
func (v *Vault) History(ctx context.Context, opts ...CallOption) ([]HistoryEntry, error) {
	o := v.callOptions(opts)
	return timeout.Run(ctx, o.Timeout, func(ctx context.Context) ([]HistoryEntry, error) {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return nil, err
		}
		return readHistory(ctx, c, o)
	})
}

// Diff is reserved and returns no changes.
func (v *Vault) Diff(ctx context.Context) ([]HistoryEntry, error) {
	if _, err := v.loader.wait(ctx); err != nil {
		return nil, err
	}
	return []HistoryEntry{}, nil
}

// Commit is reserved and returns no changes.
func (v *Vault) Commit(ctx context.Context) ([]HistoryEntry, error) {
	if _, err := v.loader.wait(ctx); err != nil {
		return nil, err
	}
	return []HistoryEntry{}, nil
}

// Revert is reserved and returns no changes.
func (v *Vault) Revert(ctx context.Context) ([]HistoryEntry, error) {
	if _, err := v.loader.wait(ctx); err != nil {
		return nil, err
	}
	return []HistoryEntry{}, nil
}

// CreateFileActivityStream returns a stream of changes to paths matching
// pattern. An empty pattern matches everything. The stream starts listening
// once the vault has loaded.
func (v *Vault) CreateFileActivityStream(pattern string) (*activity.Stream, error) {
	return activity.NewFileStream(v, pattern)
}

// CreateNetworkActivityStream returns a stream of peer, download and sync
// events. The stream starts listening once the vault has loaded.
func (v *Vault) CreateNetworkActivityStream() *activity.Stream {
	return activity.NewNetworkStream(v)
}

// Notify subscribes fn to the store handle's notifications. Before loading
// finishes the subscription is deferred until it does; if loading fails fn
// is never called.
func (v *Vault) Notify(fn func(store.Notification)) func() {
	if c, ok := v.loader.loaded(); ok {
		return c.handle.Notify(fn)
	}

	var (
		mu      sync.Mutex
		stopped bool
		stop    func()
	)
	cancel := make(chan struct{})
	go func() {
		select {
		case <-v.loader.done:
		case <-cancel:
			return
		}
		c, ok := v.loader.loaded()
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			stop = c.handle.Notify(fn)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			s := stop
			mu.Unlock()
			close(cancel)
			if s != nil {
				s()
			}
		})
	}
}

// mutate runs a mutation after the shared checks: the checkout must be live,
// the handle writable and p must pass check.
func (v *Vault) mutate(ctx context.Context, o CallOptions, p string, check func(string) error, fn func(context.Context, store.Handle) error) error {
	return timeout.Do(ctx, o.Timeout, func(ctx context.Context) error {
		c, err := v.loader.wait(ctx)
		if err != nil {
			return err
		}
		if !c.Writable() {
			if !c.version.IsLive() {
				return verrors.WithContext(
					verrors.New(verrors.CodeNotWritable, "cannot modify a historic version"),
					"version", c.version.String(),
				)
			}
			return verrors.New(verrors.CodeNotWritable, "this vault is not writable")
		}
		if check != nil {
			if err := check(p); err != nil {
				return err
			}
		}
		return fn(ctx, c.handle)
	})
}

func checkFilePath(p string) error {
	if err := pathutil.ValidFilePath(p); err != nil {
		return err
	}
	return pathutil.Unprotected(p)
}

func checkPath(p string) error {
	if err := pathutil.ValidPath(p); err != nil {
		return err
	}
	return pathutil.Unprotected(p)
}

func encode(data []byte, e Encoding) ([]byte, error) {
	switch e {
	case "", EncodingUTF8, EncodingBinary:
		return data, nil
	case EncodingHex:
		return []byte(hex.EncodeToString(data)), nil
	case EncodingBase64:
		return []byte(base64.StdEncoding.EncodeToString(data)), nil
	default:
		return nil, unknownEncoding(e)
	}
}

func decode(data []byte, e Encoding) ([]byte, error) {
	switch e {
	case "", EncodingUTF8, EncodingBinary:
		return data, nil
	case EncodingHex:
		out, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, verrors.Wrap(err, verrors.CodeInvalidInput, "data is not valid hex")
		}
		return out, nil
	case EncodingBase64:
		out, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, verrors.Wrap(err, verrors.CodeInvalidInput, "data is not valid base64")
		}
		return out, nil
	default:
		return nil, unknownEncoding(e)
	}
}

func unknownEncoding(e Encoding) error {
	return verrors.WithContext(verrors.New(verrors.CodeInvalidInput, "unknown encoding"), "encoding", string(e))
}

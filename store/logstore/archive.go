package logstore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/sigstore/sigstore/pkg/signature"
	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/go/dweb/address"
	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/internal/blockfs"
	"github.com/jmgilman/go/dweb/store"
)

const (
	dataDir       = ".dweb"
	keyFile       = dataDir + "/key"
	secretKeyFile = dataDir + "/secret_key"
	logFile       = dataDir + "/metadata.log"
	blocksDir     = dataDir + "/blocks"

	// downloadConcurrency bounds parallel block fetches in Download.
	downloadConcurrency = 4
)

// Archive is a store.Handle over one vault.
type Archive struct {
	driver *Driver
	fs     *blockfs.FS
	cas    *blockfs.CAS
	logger *slog.Logger
	sparse bool

	key string
	// verifier checks entry signatures against the vault key. signer is
	// set only when this process holds the secret key.
	verifier signature.Verifier
	signer   signature.Signer

	notifier *dispatcher

	mu         sync.RWMutex
	log        []entry
	contentLen int64
	// updated is closed and replaced every time the log grows.
	updated chan struct{}
	joined  bool
	closed  bool
}

var _ store.Handle = (*Archive)(nil)

func openArchive(d *Driver, fsys *blockfs.FS, opts store.OpenOptions) (*Archive, error) {
	a := &Archive{
		driver:  d,
		fs:      fsys,
		cas:     blockfs.NewCAS(fsys, blocksDir),
		sparse:  opts.Sparse,
		updated: make(chan struct{}),
	}
	if err := a.loadKeys(opts.Key); err != nil {
		return nil, err
	}
	if err := a.loadLog(); err != nil {
		return nil, err
	}
	a.logger = d.logger.With("key", a.key)
	a.notifier = newDispatcher()
	return a, nil
}

func (a *Archive) loadKeys(want string) error {
	if want != "" {
		k, err := address.ParseKey(want)
		if err != nil {
			return err
		}
		want = k
	}

	exists, err := a.fs.Exists(keyFile)
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to inspect vault storage")
	}

	switch {
	case exists:
		raw, err := a.fs.ReadFile(keyFile)
		if err != nil {
			return verrors.Wrap(err, verrors.CodeInternal, "failed to read vault key")
		}
		stored := strings.TrimSpace(string(raw))
		if want != "" && want != stored {
			return verrors.WithContextMap(
				verrors.New(verrors.CodeInvalidInput, "local storage holds a different vault"),
				map[string]any{"want": want, "have": stored},
			)
		}
		if err := a.setPublicKey(stored); err != nil {
			return err
		}
		if ok, _ := a.fs.Exists(secretKeyFile); ok {
			raw, err := a.fs.ReadFile(secretKeyFile)
			if err != nil {
				return verrors.Wrap(err, verrors.CodeInternal, "failed to read vault secret key")
			}
			priv, err := hex.DecodeString(strings.TrimSpace(string(raw)))
			if err != nil || len(priv) != ed25519.PrivateKeySize {
				return verrors.New(verrors.CodeInternal, "vault secret key is corrupt")
			}
			return a.setSecretKey(ed25519.PrivateKey(priv))
		}
		return nil

	case want == "":
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return verrors.Wrap(err, verrors.CodeInternal, "failed to generate vault key")
		}
		if err := a.setPublicKey(hex.EncodeToString(pub)); err != nil {
			return err
		}
		if err := a.setSecretKey(priv); err != nil {
			return err
		}
		if err := a.fs.WriteFile(secretKeyFile, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
			return verrors.Wrap(err, verrors.CodeInternal, "failed to persist vault secret key")
		}
		return a.writeKeyFile()

	default:
		if err := a.setPublicKey(want); err != nil {
			return err
		}
		return a.writeKeyFile()
	}
}

func (a *Archive) setPublicKey(key string) error {
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return verrors.Newf(verrors.CodeInternal, "vault key %q is corrupt", key)
	}
	verifier, err := signature.LoadED25519Verifier(ed25519.PublicKey(raw))
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to load vault key")
	}
	a.key, a.verifier = key, verifier
	return nil
}

// setSecretKey installs the signer after checking priv belongs to the vault
// key.
func (a *Archive) setSecretKey(priv ed25519.PrivateKey) error {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok || hex.EncodeToString(pub) != a.key {
		return verrors.New(verrors.CodeInternal, "vault secret key does not match the vault key")
	}
	signer, err := signature.LoadED25519Signer(priv)
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to load vault secret key")
	}
	a.signer = signer
	return nil
}

func (a *Archive) writeKeyFile() error {
	if err := a.fs.WriteFile(keyFile, []byte(a.key), 0o644); err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to persist vault key")
	}
	return nil
}

func (a *Archive) loadLog() error {
	exists, err := a.fs.Exists(logFile)
	if err != nil || !exists {
		return err
	}
	data, err := a.fs.ReadFile(logFile)
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to read metadata log")
	}
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Seq != i {
			return verrors.Newf(verrors.CodeInternal, "metadata log out of order at entry %d", i)
		}
		if err := e.verify(a.verifier); err != nil {
			return err
		}
		a.contentLen += int64(len(e.Blocks))
	}
	a.log = entries
	return nil
}

// Key implements store.Handle.
func (a *Archive) Key() string { return a.key }

// Writable implements store.Handle.
func (a *Archive) Writable() bool { return a.signer != nil }

// Len implements store.Handle.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.log)
}

// Version implements store.Reader. A live handle observes its full log.
func (a *Archive) Version() int { return a.Len() }

// Peers implements store.Handle.
func (a *Archive) Peers() int {
	if a.driver.network == nil {
		return 0
	}
	return len(a.driver.network.peers(a))
}

// Checkout implements store.Handle.
func (a *Archive) Checkout(version int) store.Reader {
	return &view{a: a, version: version}
}

// snapshot returns the log prefix of length n, clamped to what is known.
func (a *Archive) snapshot(n int) ([]entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, errClosed()
	}
	if n < 0 || n > len(a.log) {
		n = len(a.log)
	}
	return a.log[:n:n], nil
}

// Stat implements store.Reader.
func (a *Archive) Stat(ctx context.Context, name string) (*store.Stat, error) {
	return a.stat(ctx, -1, name)
}

// ReadFile implements store.Reader.
func (a *Archive) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return a.readFile(ctx, -1, name)
}

// ReadDir implements store.Reader.
func (a *Archive) ReadDir(ctx context.Context, name string) ([]string, error) {
	return a.readDir(ctx, -1, name)
}

// History implements store.Reader.
func (a *Archive) History(ctx context.Context, start, end int) ([]store.Change, error) {
	return a.history(ctx, -1, start, end)
}

func (a *Archive) stat(ctx context.Context, version int, name string) (*store.Stat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := a.snapshot(version)
	if err != nil {
		return nil, err
	}
	p := cleanPath(name)
	t := buildTree(log)

	if e, ok := t.file(p); ok {
		downloaded := 0
		ids, err := e.cids()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if a.cas.Has(id) {
				downloaded++
			}
		}
		return &store.Stat{
			Path:       p,
			Length:     e.Size,
			Mtime:      e.Mtime,
			Ctime:      t.ctimes[p],
			Blocks:     len(e.Blocks),
			Downloaded: downloaded,
			Offset:     e.Offset,
		}, nil
	}
	if t.isDir(p) {
		st := &store.Stat{Path: p, Dir: true}
		if e, ok := t.dirs[p]; ok {
			st.Mtime, st.Ctime = e.Mtime, t.ctimes[p]
		}
		return st, nil
	}
	return nil, notFound(p)
}

func (a *Archive) readFile(ctx context.Context, version int, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := a.snapshot(version)
	if err != nil {
		return nil, err
	}
	p := cleanPath(name)
	t := buildTree(log)

	e, ok := t.file(p)
	if !ok {
		if t.isDir(p) {
			return nil, isDirectory(p)
		}
		return nil, notFound(p)
	}

	ids, err := e.cids()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, e.Size)
	for i, id := range ids {
		block, err := a.block(ctx, id, e.Offset+int64(i))
		if err != nil {
			return nil, verrors.WithContext(err, "path", p)
		}
		out = append(out, block...)
	}
	return out, nil
}

func (a *Archive) readDir(ctx context.Context, version int, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := a.snapshot(version)
	if err != nil {
		return nil, err
	}
	p := cleanPath(name)
	t := buildTree(log)

	if _, ok := t.file(p); ok {
		return nil, notADirectory(p)
	}
	if !t.isDir(p) {
		return nil, notFound(p)
	}
	return t.children(p), nil
}

func (a *Archive) history(ctx context.Context, version, start, end int) ([]store.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log, err := a.snapshot(version)
	if err != nil {
		return nil, err
	}
	start, end = max(start, 0), min(end, len(log))
	if start >= end {
		return []store.Change{}, nil
	}
	out := make([]store.Change, 0, end-start)
	for _, e := range log[start:end] {
		out = append(out, e.change())
	}
	return out, nil
}

// block returns a content block, fetching it from peers when missing
// locally.
func (a *Archive) block(ctx context.Context, id cid.Cid, index int64) ([]byte, error) {
	data, err := a.cas.Get(id)
	if err == nil {
		return data, nil
	}
	if !verrors.Is(err, blockfs.ErrBlockNotFound) {
		return nil, verrors.Wrap(err, verrors.CodeInternal, "failed to read block")
	}
	if a.driver.network == nil {
		return nil, verrors.Newf(verrors.CodeNetwork, "block %d is not available locally", index)
	}

	data, err = a.driver.network.fetch(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if err := a.cas.PutVerified(id, data); err != nil {
		return nil, verrors.Wrap(err, verrors.CodeInternal, "failed to store block")
	}
	a.notifier.emit(store.Notification{Kind: store.NotifyDownload, Feed: store.FeedContent, Block: int(index)})
	return data, nil
}

// WriteFile implements store.Handle.
func (a *Archive) WriteFile(ctx context.Context, name string, data []byte) error {
	if err := a.checkWrite(ctx); err != nil {
		return err
	}
	p := cleanPath(name)
	if p == "/" {
		return isDirectory(p)
	}

	blockSize := a.driver.blockSize
	var ids []string
	for off := 0; off < len(data); off += blockSize {
		id, err := a.cas.Put(data[off:min(off+blockSize, len(data))])
		if err != nil {
			return verrors.Wrap(err, verrors.CodeInternal, "failed to store block")
		}
		ids = append(ids, id.String())
	}

	return a.appendChecked(func(t *tree) ([]entry, error) {
		if dir, ok := t.fileAncestor(p); ok {
			return nil, notADirectory(dir)
		}
		if t.isDir(p) {
			return nil, isDirectory(p)
		}
		return []entry{{
			Type:   store.ChangePut,
			Path:   p,
			Size:   int64(len(data)),
			Blocks: ids,
		}}, nil
	})
}

// Mkdir implements store.Handle.
func (a *Archive) Mkdir(ctx context.Context, name string) error {
	if err := a.checkWrite(ctx); err != nil {
		return err
	}
	p := cleanPath(name)

	return a.appendChecked(func(t *tree) ([]entry, error) {
		if _, ok := t.file(p); ok || t.isDir(p) {
			return nil, verrors.WithContext(verrors.New(verrors.CodeAlreadyExists, "entry already exists"), "path", p)
		}
		if dir, ok := t.fileAncestor(p); ok {
			return nil, notADirectory(dir)
		}
		return []entry{{Type: store.ChangePut, Path: p, Dir: true}}, nil
	})
}

// Unlink implements store.Handle.
func (a *Archive) Unlink(ctx context.Context, name string) error {
	if err := a.checkWrite(ctx); err != nil {
		return err
	}
	p := cleanPath(name)

	return a.appendChecked(func(t *tree) ([]entry, error) {
		if _, ok := t.file(p); !ok {
			if t.isDir(p) {
				return nil, isDirectory(p)
			}
			return nil, notFound(p)
		}
		return []entry{{Type: store.ChangeDelete, Path: p}}, nil
	})
}

// Rmdir implements store.Handle. A recursive removal appends one delete per
// descendant, deepest first, then one for the directory.
func (a *Archive) Rmdir(ctx context.Context, name string, recursive bool) error {
	if err := a.checkWrite(ctx); err != nil {
		return err
	}
	p := cleanPath(name)
	if p == "/" {
		return verrors.New(verrors.CodeInvalidInput, "cannot remove the root directory")
	}

	return a.appendChecked(func(t *tree) ([]entry, error) {
		if _, ok := t.file(p); ok {
			return nil, notADirectory(p)
		}
		if !t.isDir(p) {
			return nil, notFound(p)
		}
		below := t.descendants(p)
		if len(below) > 0 && !recursive {
			return nil, verrors.WithContext(verrors.New(verrors.CodeNotEmpty, "directory is not empty"), "path", p)
		}
		out := make([]entry, 0, len(below)+1)
		for _, e := range below {
			out = append(out, entry{Type: store.ChangeDelete, Path: e.Path, Dir: e.Dir})
		}
		return append(out, entry{Type: store.ChangeDelete, Path: p, Dir: true}), nil
	})
}

func (a *Archive) checkWrite(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.Writable() {
		return verrors.New(verrors.CodeNotWritable, "this process does not hold the vault's write key")
	}
	return nil
}

// appendChecked builds entries against the current tree and appends them
// atomically, then pushes them to peers.
func (a *Archive) appendChecked(build func(t *tree) ([]entry, error)) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errClosed()
	}
	entries, err := build(buildTree(a.log))
	if err == nil {
		now := a.driver.now().UTC()
		offset := a.contentLen
		for i := range entries {
			entries[i].Seq = len(a.log) + i
			entries[i].Mtime = now
			if len(entries[i].Blocks) > 0 {
				entries[i].Offset = offset
				offset += int64(len(entries[i].Blocks))
			}
			if err = entries[i].sign(a.signer); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = a.commitLocked(entries)
	}
	a.mu.Unlock()
	if err != nil {
		return err
	}

	if a.driver.network != nil {
		a.driver.network.broadcast(a)
	}
	return nil
}

// commitLocked persists entries and applies them. Caller holds a.mu.
func (a *Archive) commitLocked(entries []entry) error {
	if len(entries) == 0 {
		return nil
	}
	data, err := encodeEntries(entries)
	if err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to encode log entries")
	}
	if err := a.fs.AppendFile(logFile, data); err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "failed to append to metadata log")
	}
	a.log = append(a.log, entries...)
	for _, e := range entries {
		a.contentLen += int64(len(e.Blocks))
		a.notifier.emit(store.Notification{Kind: store.NotifyAppend, Path: e.Path})
	}
	close(a.updated)
	a.updated = make(chan struct{})
	return nil
}

// entriesFrom returns a copy of the log from seq onwards and the total
// length.
func (a *Archive) entriesFrom(seq int) ([]entry, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if seq >= len(a.log) {
		return nil, len(a.log)
	}
	out := make([]entry, len(a.log)-seq)
	copy(out, a.log[seq:])
	return out, len(a.log)
}

// syncFrom pulls entries src has and a lacks.
func (a *Archive) syncFrom(ctx context.Context, src *Archive) error {
	if src.Len() <= a.Len() {
		return nil
	}
	entries, total := src.entriesFrom(a.Len())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errClosed()
	}
	var accepted []entry
	next := len(a.log)
	for _, e := range entries {
		if e.Seq < next {
			continue
		}
		if e.Seq != next {
			break
		}
		if err := e.verify(a.verifier); err != nil {
			a.mu.Unlock()
			a.logger.Warn("rejected entry from peer", "seq", e.Seq, "error", err)
			return err
		}
		accepted = append(accepted, e)
		next++
	}
	err := a.commitLocked(accepted)
	if err == nil {
		for _, e := range accepted {
			a.notifier.emit(store.Notification{Kind: store.NotifyDownload, Feed: store.FeedMetadata, Block: e.Seq})
		}
		if len(a.log) >= total && len(accepted) > 0 {
			a.notifier.emit(store.Notification{Kind: store.NotifySync, Feed: store.FeedMetadata})
		}
	}
	a.mu.Unlock()
	if err != nil || len(accepted) == 0 {
		return err
	}

	if !a.sparse && !a.Writable() {
		return a.Download(ctx, "/")
	}
	return nil
}

// Download implements store.Handle.
func (a *Archive) Download(ctx context.Context, name string) error {
	if a.Writable() {
		return nil
	}
	log, err := a.snapshot(-1)
	if err != nil {
		return err
	}
	p := cleanPath(name)
	t := buildTree(log)
	files := t.filesUnder(p)
	if len(files) == 0 && !t.isDir(p) {
		return notFound(p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	seen := make(map[cid.Cid]struct{})
	for _, e := range files {
		ids, err := e.cids()
		if err != nil {
			return err
		}
		for i, id := range ids {
			if _, dup := seen[id]; dup || a.cas.Has(id) {
				continue
			}
			seen[id] = struct{}{}
			index := e.Offset + int64(i)
			g.Go(func() error {
				_, err := a.block(gctx, id, index)
				return err
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if a.contentComplete(t) {
		a.notifier.emit(store.Notification{Kind: store.NotifySync, Feed: store.FeedContent})
	}
	return nil
}

// contentComplete reports whether every block reachable from t is local.
func (a *Archive) contentComplete(t *tree) bool {
	for _, e := range t.files {
		ids, err := e.cids()
		if err != nil {
			return false
		}
		for _, id := range ids {
			if !a.cas.Has(id) {
				return false
			}
		}
	}
	return true
}

// Update implements store.Handle.
func (a *Archive) Update(ctx context.Context) error {
	for {
		a.mu.RLock()
		n, ch, closed := len(a.log), a.updated, a.closed
		a.mu.RUnlock()

		switch {
		case n > 0:
			return nil
		case closed:
			return errClosed()
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// JoinNetwork implements store.Handle. Joining twice is a no-op.
func (a *Archive) JoinNetwork(ctx context.Context) error {
	if a.driver.network == nil {
		return nil
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errClosed()
	}
	if a.joined {
		a.mu.Unlock()
		return nil
	}
	a.joined = true
	a.mu.Unlock()

	return a.driver.network.join(ctx, a)
}

// Notify implements store.Handle.
func (a *Archive) Notify(fn func(store.Notification)) func() {
	return a.notifier.subscribe(fn)
}

// Close leaves the network and stops notification delivery.
func (a *Archive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	joined := a.joined
	close(a.updated)
	a.mu.Unlock()

	if joined {
		a.driver.network.leave(a)
	}
	a.notifier.close()
	return nil
}

// view is a read view pinned to a log prefix.
type view struct {
	a       *Archive
	version int
}

func (v *view) Version() int { return v.version }

func (v *view) Stat(ctx context.Context, name string) (*store.Stat, error) {
	return v.a.stat(ctx, v.version, name)
}

func (v *view) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return v.a.readFile(ctx, v.version, name)
}

func (v *view) ReadDir(ctx context.Context, name string) ([]string, error) {
	return v.a.readDir(ctx, v.version, name)
}

func (v *view) History(ctx context.Context, start, end int) ([]store.Change, error) {
	return v.a.history(ctx, v.version, start, end)
}

func notFound(p string) error {
	return verrors.WithContext(verrors.New(verrors.CodeNotFound, "no such file or directory"), "path", p)
}

func notADirectory(p string) error {
	return verrors.WithContext(verrors.New(verrors.CodeNotADirectory, "not a directory"), "path", p)
}

func isDirectory(p string) error {
	return verrors.WithContext(verrors.New(verrors.CodeInvalidInput, "is a directory"), "path", p)
}

func errClosed() error {
	return verrors.New(verrors.CodeClosed, "vault handle is closed")
}

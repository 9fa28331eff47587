package logstore

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func open(t *testing.T, d *Driver, opts store.OpenOptions) store.Handle {
	t.Helper()
	h, err := d.Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// recorder collects notifications delivered to a handle.
type recorder struct {
	mu  sync.Mutex
	got []store.Notification
}

func record(h store.Handle) *recorder {
	r := &recorder{}
	h.Notify(func(n store.Notification) {
		r.mu.Lock()
		r.got = append(r.got, n)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) kinds(kind store.NotificationKind) []store.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Notification
	for _, n := range r.got {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, kind store.NotificationKind, n int) []store.Notification {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.kinds(kind)) >= n }, time.Second, 5*time.Millisecond)
	return r.kinds(kind)
}

// TestArchive_WriteRead verifies writes are readable and overwrites win.
func TestArchive_WriteRead(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})

	assert.True(t, h.Writable())
	assert.Len(t, h.Key(), 64)
	assert.Equal(t, 0, h.Len())

	require.NoError(t, h.WriteFile(ctx, "/hello.txt", []byte("one")))
	require.NoError(t, h.WriteFile(ctx, "hello.txt", []byte("two")))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 2, h.Version())

	data, err := h.ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	old, err := h.Checkout(1).ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(old))
}

// TestArchive_EmptyFile verifies zero-length files have no blocks.
func TestArchive_EmptyFile(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})

	require.NoError(t, h.WriteFile(ctx, "/empty", nil))
	data, err := h.ReadFile(ctx, "/empty")
	require.NoError(t, err)
	assert.Empty(t, data)

	st, err := h.Stat(ctx, "/empty")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Blocks)
	assert.Equal(t, int64(0), st.Size())
}

// TestArchive_Blocks verifies files are chunked and offsets advance through
// the content feed.
func TestArchive_Blocks(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil), WithBlockSize(4)), store.OpenOptions{})

	require.NoError(t, h.WriteFile(ctx, "/a", []byte("0123456789")))
	require.NoError(t, h.WriteFile(ctx, "/b", []byte("xy")))

	a, err := h.Stat(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, 3, a.Blocks)
	assert.Equal(t, 3, a.Downloaded)
	assert.Equal(t, int64(0), a.Offset)
	assert.Equal(t, int64(10), a.Length)

	b, err := h.Stat(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), b.Offset)

	data, err := h.ReadFile(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

// TestArchive_Directories verifies mkdir, listing and removal rules.
func TestArchive_Directories(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})

	require.NoError(t, h.Mkdir(ctx, "/docs"))
	require.NoError(t, h.WriteFile(ctx, "/docs/readme.md", []byte("#")))
	require.NoError(t, h.WriteFile(ctx, "/docs/deep/file.txt", []byte("x")))
	require.NoError(t, h.WriteFile(ctx, "/top.txt", []byte("t")))

	names, err := h.ReadDir(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "top.txt"}, names)

	names, err = h.ReadDir(ctx, "/docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"deep", "readme.md"}, names)

	st, err := h.Stat(ctx, "/docs/deep")
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	err = h.Mkdir(ctx, "/docs")
	assert.True(t, verrors.HasCode(err, verrors.CodeAlreadyExists))

	err = h.Rmdir(ctx, "/docs", false)
	assert.True(t, verrors.HasCode(err, verrors.CodeNotEmpty))

	before := h.Len()
	require.NoError(t, h.Rmdir(ctx, "/docs", true))
	// deep/file.txt, readme.md, then the directory itself
	assert.Equal(t, before+3, h.Len())

	names, err = h.ReadDir(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"top.txt"}, names)

	_, err = h.Stat(ctx, "/docs/deep")
	assert.True(t, verrors.HasCode(err, verrors.CodeNotFound))
}

// TestArchive_Errors verifies collaborator error codes.
func TestArchive_Errors(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})
	require.NoError(t, h.WriteFile(ctx, "/file", []byte("x")))
	require.NoError(t, h.Mkdir(ctx, "/dir"))

	tests := []struct {
		name string
		err  error
		code verrors.ErrorCode
	}{
		{"read missing", func() error { _, err := h.ReadFile(ctx, "/nope"); return err }(), verrors.CodeNotFound},
		{"stat missing", func() error { _, err := h.Stat(ctx, "/nope"); return err }(), verrors.CodeNotFound},
		{"readdir file", func() error { _, err := h.ReadDir(ctx, "/file"); return err }(), verrors.CodeNotADirectory},
		{"read dir", func() error { _, err := h.ReadFile(ctx, "/dir"); return err }(), verrors.CodeInvalidInput},
		{"write below file", h.WriteFile(ctx, "/file/child", []byte("x")), verrors.CodeNotADirectory},
		{"write over dir", h.WriteFile(ctx, "/dir", []byte("x")), verrors.CodeInvalidInput},
		{"unlink missing", h.Unlink(ctx, "/nope"), verrors.CodeNotFound},
		{"unlink dir", h.Unlink(ctx, "/dir"), verrors.CodeInvalidInput},
		{"rmdir file", h.Rmdir(ctx, "/file", false), verrors.CodeNotADirectory},
		{"rmdir missing", h.Rmdir(ctx, "/nope", false), verrors.CodeNotFound},
		{"rmdir root", h.Rmdir(ctx, "/", true), verrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			assert.Equal(t, tt.code, verrors.GetCode(tt.err))
		})
	}
}

// TestArchive_History verifies history ranges are clamped.
func TestArchive_History(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})
	require.NoError(t, h.WriteFile(ctx, "/a", []byte("1")))
	require.NoError(t, h.WriteFile(ctx, "/b", []byte("2")))
	require.NoError(t, h.Unlink(ctx, "/a"))

	all, err := h.History(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, []store.Change{
		{Path: "/a", Version: 1, Type: store.ChangePut},
		{Path: "/b", Version: 2, Type: store.ChangePut},
		{Path: "/a", Version: 3, Type: store.ChangeDelete},
	}, all)

	mid, err := h.History(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, all[1:2], mid)

	empty, err := h.History(ctx, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, empty)

	pinned, err := h.Checkout(2).History(ctx, -5, 10)
	require.NoError(t, err)
	assert.Equal(t, all[:2], pinned)
}

// TestArchive_Persistence verifies a local vault reopens with its key, its
// write capability and its contents.
func TestArchive_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vault")
	d := New(WithNetwork(nil))

	h, err := d.Open(ctx, store.OpenOptions{LocalPath: dir})
	require.NoError(t, err)
	key := h.Key()
	require.NoError(t, h.WriteFile(ctx, "/kept.txt", []byte("persisted")))
	require.NoError(t, h.Close())

	h = open(t, d, store.OpenOptions{LocalPath: dir})
	assert.Equal(t, key, h.Key())
	assert.True(t, h.Writable())
	assert.Equal(t, 1, h.Len())

	data, err := h.ReadFile(ctx, "/kept.txt")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))

	// Matching key is accepted, a different one is refused.
	h2, err := d.Open(ctx, store.OpenOptions{LocalPath: dir, Key: key})
	require.NoError(t, err)
	require.NoError(t, h2.Close())

	_, err = d.Open(ctx, store.OpenOptions{LocalPath: dir, Key: string(bytes.Repeat([]byte("ab"), 32))})
	assert.True(t, verrors.HasCode(err, verrors.CodeInvalidInput))
}

// TestArchive_TamperedStorage verifies a reopened vault refuses a log whose
// entries no longer match their signatures, and a secret key that does not
// belong to the vault.
func TestArchive_TamperedStorage(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vault")
	d := New(WithNetwork(nil))

	h, err := d.Open(ctx, store.OpenOptions{LocalPath: dir})
	require.NoError(t, err)
	require.NoError(t, h.WriteFile(ctx, "/kept.txt", []byte("persisted")))
	require.NoError(t, h.Close())

	logPath := filepath.Join(dir, ".dweb", "metadata.log")
	original, err := os.ReadFile(logPath)
	require.NoError(t, err)

	tampered := bytes.Replace(original, []byte("/kept.txt"), []byte("/evil.txt"), 1)
	require.NoError(t, os.WriteFile(logPath, tampered, 0o644))
	_, err = d.Open(ctx, store.OpenOptions{LocalPath: dir})
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.CodeInternal))
	assert.Contains(t, err.Error(), "invalid signature")

	require.NoError(t, os.WriteFile(logPath, original, 0o644))
	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	secretPath := filepath.Join(dir, ".dweb", "secret_key")
	require.NoError(t, os.WriteFile(secretPath, []byte(hex.EncodeToString(other)), 0o600))
	_, err = d.Open(ctx, store.OpenOptions{LocalPath: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

// TestArchive_Notifications verifies appends are delivered in order and
// nothing is replayed to late subscribers.
func TestArchive_Notifications(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})

	require.NoError(t, h.WriteFile(ctx, "/early", []byte("x")))

	r := record(h)
	for _, p := range []string{"/a", "/b", "/a"} {
		require.NoError(t, h.WriteFile(ctx, p, []byte(p)))
	}

	got := r.waitFor(t, store.NotifyAppend, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "/a", got[0].Path)
	assert.Equal(t, "/b", got[1].Path)
	assert.Equal(t, "/a", got[2].Path)
}

// TestArchive_Unsubscribe verifies a stopped subscriber receives nothing.
func TestArchive_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	h := open(t, New(WithNetwork(nil)), store.OpenOptions{})

	var mu sync.Mutex
	calls := 0
	stop := h.Notify(func(store.Notification) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	stop()

	kept := record(h)
	require.NoError(t, h.WriteFile(ctx, "/a", []byte("x")))
	kept.waitFor(t, store.NotifyAppend, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

// TestArchive_Replication verifies a replica receives metadata and content
// from its owner over a shared network.
func TestArchive_Replication(t *testing.T) {
	ctx := context.Background()
	d := New(WithNetwork(NewNetwork()))

	owner := open(t, d, store.OpenOptions{})
	require.NoError(t, owner.JoinNetwork(ctx))
	require.NoError(t, owner.WriteFile(ctx, "/first.txt", []byte("first")))

	replica := open(t, d, store.OpenOptions{Key: owner.Key()})
	r := record(replica)
	assert.False(t, replica.Writable())
	require.NoError(t, replica.JoinNetwork(ctx))
	require.NoError(t, replica.Update(ctx))

	assert.Equal(t, 1, owner.Peers())
	assert.Equal(t, 1, replica.Peers())

	data, err := replica.ReadFile(ctx, "/first.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	require.NoError(t, owner.WriteFile(ctx, "/second.txt", []byte("second")))
	assert.Equal(t, 2, replica.Len())

	appends := r.waitFor(t, store.NotifyAppend, 2)
	assert.Equal(t, "/first.txt", appends[0].Path)
	assert.Equal(t, "/second.txt", appends[1].Path)

	syncs := r.waitFor(t, store.NotifySync, 1)
	assert.Equal(t, store.FeedMetadata, syncs[0].Feed)

	err = replica.WriteFile(ctx, "/nope", []byte("x"))
	assert.True(t, verrors.HasCode(err, verrors.CodeNotWritable))
}

// TestArchive_SparseReplica verifies content is fetched on read and on
// Download.
func TestArchive_SparseReplica(t *testing.T) {
	ctx := context.Background()
	d := New(WithNetwork(NewNetwork()), WithBlockSize(2))

	owner := open(t, d, store.OpenOptions{})
	require.NoError(t, owner.JoinNetwork(ctx))
	require.NoError(t, owner.WriteFile(ctx, "/a.txt", []byte("abcd")))
	require.NoError(t, owner.WriteFile(ctx, "/b.txt", []byte("efgh")))

	replica := open(t, d, store.OpenOptions{Key: owner.Key(), Sparse: true})
	r := record(replica)
	require.NoError(t, replica.JoinNetwork(ctx))

	st, err := replica.Stat(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Blocks)
	assert.Equal(t, 0, st.Downloaded)

	data, err := replica.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	st, err = replica.Stat(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Downloaded)

	require.NoError(t, replica.Download(ctx, "/"))
	st, err = replica.Stat(ctx, "/b.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Downloaded)

	syncs := r.waitFor(t, store.NotifySync, 2)
	assert.Equal(t, store.FeedContent, syncs[len(syncs)-1].Feed)
	assert.NotEmpty(t, r.kinds(store.NotifyDownload))
}

// TestArchive_OfflineReplica verifies missing blocks fail with a network
// error once no peer can serve them.
func TestArchive_OfflineReplica(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	d := New(WithNetwork(n))

	owner, err := d.Open(ctx, store.OpenOptions{})
	require.NoError(t, err)
	require.NoError(t, owner.JoinNetwork(ctx))
	require.NoError(t, owner.WriteFile(ctx, "/a.txt", []byte("abcd")))

	replica := open(t, d, store.OpenOptions{Key: owner.Key(), Sparse: true})
	require.NoError(t, replica.JoinNetwork(ctx))
	require.NoError(t, owner.Close())
	assert.Equal(t, 0, replica.Peers())

	_, err = replica.ReadFile(ctx, "/a.txt")
	assert.True(t, verrors.HasCode(err, verrors.CodeNetwork))
}

// TestArchive_UpdateBlocksUntilFirstEntry verifies Update waits for
// replication.
func TestArchive_UpdateBlocksUntilFirstEntry(t *testing.T) {
	ctx := context.Background()
	d := New(WithNetwork(NewNetwork()))

	owner := open(t, d, store.OpenOptions{})
	require.NoError(t, owner.JoinNetwork(ctx))
	replica := open(t, d, store.OpenOptions{Key: owner.Key()})
	require.NoError(t, replica.JoinNetwork(ctx))

	done := make(chan error, 1)
	go func() { done <- replica.Update(ctx) }()

	select {
	case <-done:
		t.Fatal("Update returned before any entry was replicated")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, owner.WriteFile(ctx, "/a", []byte("x")))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Update did not return")
	}
}

// TestArchive_UpdateCancelled verifies Update honours its context and Close.
func TestArchive_UpdateCancelled(t *testing.T) {
	d := New(WithNetwork(nil))
	h := open(t, d, store.OpenOptions{Key: string(bytes.Repeat([]byte("cd"), 32))})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Update(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- h.Update(context.Background()) }()
	require.NoError(t, h.Close())
	assert.True(t, verrors.HasCode(<-done, verrors.CodeClosed))
}

// TestArchive_Closed verifies a closed handle refuses work.
func TestArchive_Closed(t *testing.T) {
	ctx := context.Background()
	h, err := New(WithNetwork(nil)).Open(ctx, store.OpenOptions{})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	_, err = h.ReadDir(ctx, "/")
	assert.True(t, verrors.HasCode(err, verrors.CodeClosed))
	assert.True(t, verrors.HasCode(h.WriteFile(ctx, "/a", nil), verrors.CodeClosed))
}

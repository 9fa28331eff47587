package logstore

import (
	"context"
	"io"
	"log/slog"
	"time"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/internal/blockfs"
	"github.com/jmgilman/go/dweb/store"
)

// DefaultBlockSize is the content block size used when none is configured.
const DefaultBlockSize = 64 * 1024

// Driver opens log-backed vault handles.
type Driver struct {
	network   *Network
	blockSize int
	logger    *slog.Logger
	now       func() time.Time
}

var _ store.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithNetwork sets the network handles join. Pass nil to keep handles
// offline.
func WithNetwork(n *Network) Option {
	return func(d *Driver) {
		d.network = n
	}
}

// WithBlockSize sets the content block size in bytes.
func WithBlockSize(size int) Option {
	return func(d *Driver) {
		if size > 0 {
			d.blockSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// New returns a Driver. Without options handles join DefaultNetwork.
func New(opts ...Option) *Driver {
	d := &Driver{
		network:   DefaultNetwork(),
		blockSize: DefaultBlockSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open opens or creates a vault as described by opts.
func (d *Driver) Open(ctx context.Context, opts store.OpenOptions) (store.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		fsys *blockfs.FS
		err  error
	)
	if opts.LocalPath != "" {
		fsys, err = blockfs.NewLocal(opts.LocalPath)
		if err != nil {
			return nil, verrors.WithContext(
				verrors.Wrap(err, verrors.CodeInternal, "failed to prepare vault directory"),
				"path", opts.LocalPath,
			)
		}
	} else {
		fsys = blockfs.NewMemory()
	}

	a, err := openArchive(d, fsys, opts)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("opened vault",
		"key", a.key,
		"writable", a.Writable(),
		"length", a.Len(),
		"storage", fsys.Type().String(),
	)
	return a, nil
}

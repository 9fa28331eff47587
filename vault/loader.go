package vault

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmgilman/go/dweb/address"
	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

type loadState int

const (
	stateInitializing loadState = iota
	stateWaitingForFirstSync
	stateReady
	stateFailed
)

func (s loadState) String() string {
	switch s {
	case stateInitializing:
		return "initializing"
	case stateWaitingForFirstSync:
		return "waiting-for-first-sync"
	case stateReady:
		return "ready"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// loader opens the store once and publishes the outcome. done is closed
// exactly once; handle, checkout and err are immutable afterwards.
type loader struct {
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state loadState

	handle   store.Handle
	checkout *Checkout
	err      error
}

func startLoader(addr address.Address, o *options) *loader {
	ctx, cancel := context.WithCancel(context.Background())
	l := &loader{
		logger: o.logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx, addr, o)
	return l
}

func (l *loader) setState(s loadState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.logger.Debug("vault load state", "state", s.String())
}

func (l *loader) current() loadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *loader) run(ctx context.Context, addr address.Address, o *options) {
	defer close(l.done)

	sparse := !addr.IsZero()
	if o.sparse != nil {
		sparse = *o.sparse
	}
	h, err := o.driver.Open(ctx, store.OpenOptions{
		Key:       addr.Key,
		LocalPath: o.localPath,
		Sparse:    sparse,
	})
	if err != nil {
		l.fail(err)
		return
	}

	if err := h.JoinNetwork(ctx); err != nil {
		l.logger.Warn("failed to join network", "key", h.Key(), "error", err)
	}

	if !h.Writable() && h.Len() == 0 {
		l.setState(stateWaitingForFirstSync)
		if err := h.Update(ctx); err != nil {
			_ = h.Close()
			l.fail(err)
			return
		}
	}

	l.handle = h
	version := Live()
	if addr.Versioned() {
		version = FixedVersion(addr.Version)
	}
	l.checkout = resolveCheckout(h, version)
	l.setState(stateReady)
}

func (l *loader) fail(err error) {
	l.err = verrors.Wrap(err, verrors.CodeLoadFailure, "failed to load vault")
	l.setState(stateFailed)
	l.logger.Debug("vault load failed", "error", err)
}

// wait blocks until loading settles or ctx ends.
func (l *loader) wait(ctx context.Context) (*Checkout, error) {
	select {
	case <-l.done:
		if l.err != nil {
			return nil, l.err
		}
		return l.checkout, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loaded returns the outcome without blocking.
func (l *loader) loaded() (*Checkout, bool) {
	select {
	case <-l.done:
		return l.checkout, l.err == nil
	default:
		return nil, false
	}
}

// close stops a pending load and closes the handle.
func (l *loader) close() error {
	l.cancel()
	<-l.done
	if l.handle != nil {
		return l.handle.Close()
	}
	return nil
}

package logstore

import (
	"context"
	"errors"
	"sync"

	"github.com/ipfs/go-cid"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

// Network is an in-process swarm. Handles for the same key that joined the
// same Network replicate to each other: entries are pushed on append and
// content blocks are fetched on demand.
type Network struct {
	mu      sync.Mutex
	members map[string][]*Archive
}

// NewNetwork returns an empty Network.
func NewNetwork() *Network {
	return &Network{members: make(map[string][]*Archive)}
}

var (
	defaultNetworkOnce sync.Once
	defaultNetwork     *Network
)

// DefaultNetwork returns the process-wide Network.
func DefaultNetwork() *Network {
	defaultNetworkOnce.Do(func() {
		defaultNetwork = NewNetwork()
	})
	return defaultNetwork
}

func (n *Network) join(ctx context.Context, a *Archive) error {
	n.mu.Lock()
	others := append([]*Archive(nil), n.members[a.key]...)
	n.members[a.key] = append(n.members[a.key], a)
	n.mu.Unlock()

	a.logger.Debug("joined network", "peers", len(others))

	var errs []error
	for _, p := range others {
		p.notifier.emit(store.Notification{Kind: store.NotifyPeerAdd})
		a.notifier.emit(store.Notification{Kind: store.NotifyPeerAdd})

		if err := a.syncFrom(ctx, p); err != nil {
			errs = append(errs, err)
		}
		if err := p.syncFrom(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return verrors.Wrap(err, verrors.CodeNetwork, "failed to sync with peers")
	}
	return nil
}

func (n *Network) leave(a *Archive) {
	n.mu.Lock()
	members := n.members[a.key]
	var rest []*Archive
	for _, p := range members {
		if p != a {
			rest = append(rest, p)
		}
	}
	if len(rest) == 0 {
		delete(n.members, a.key)
	} else {
		n.members[a.key] = rest
	}
	n.mu.Unlock()

	if len(rest) == len(members) {
		return
	}
	for _, p := range rest {
		p.notifier.emit(store.Notification{Kind: store.NotifyPeerRemove})
	}
}

// peers returns the other members sharing a's key.
func (n *Network) peers(a *Archive) []*Archive {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*Archive
	for _, p := range n.members[a.key] {
		if p != a {
			out = append(out, p)
		}
	}
	return out
}

// broadcast lets every peer pull what src has appended. Called without
// src's lock held.
func (n *Network) broadcast(src *Archive) {
	for _, p := range n.peers(src) {
		if err := p.syncFrom(context.Background(), src); err != nil {
			src.logger.Warn("failed to replicate to peer", "error", err)
		}
	}
}

// fetch returns block id from the first peer holding it.
func (n *Network) fetch(ctx context.Context, a *Archive, id cid.Cid) ([]byte, error) {
	for _, p := range n.peers(a) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.cas.Has(id) {
			continue
		}
		data, err := p.cas.Get(id)
		if err != nil {
			a.logger.Debug("peer failed to serve block", "cid", id.String(), "error", err)
			continue
		}
		return data, nil
	}
	return nil, verrors.WithContext(
		verrors.New(verrors.CodeNetwork, "block is not available from any peer"),
		"cid", id.String(),
	)
}

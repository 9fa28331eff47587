package cli

import (
	"context"
	"os"

	"github.com/jmgilman/go/dweb/address"
	"github.com/jmgilman/go/dweb/names"
	"github.com/jmgilman/go/dweb/store/logstore"
	"github.com/jmgilman/go/dweb/vault"
)

func (o *RootOptions) vaultOptions() []vault.Option {
	network := logstore.DefaultNetwork()
	if !o.cfg.Network.Enabled {
		network = nil
	}
	return []vault.Option{
		vault.WithDriver(logstore.New(logstore.WithNetwork(network), logstore.WithLogger(o.logger))),
		vault.WithLogger(o.logger),
		vault.WithDefaultTimeout(o.timeout()),
	}
}

// openTarget opens a local vault directory, a vault address or a name that
// resolves to one.
func (o *RootOptions) openTarget(ctx context.Context, target string) (*vault.Vault, error) {
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		return vault.Load(ctx, vault.LoadParams{LocalPath: target, Options: o.vaultOptions()})
	}

	addr, err := address.Parse(target)
	if err != nil || addr.IsZero() {
		key, rerr := names.New(names.WithLogger(o.logger)).Resolve(ctx, target)
		if rerr != nil {
			return nil, rerr
		}
		addr = address.Address{Key: key}
	}

	opts := o.vaultOptions()
	if dir := o.cfg.ReplicaDir(addr.Key); dir != "" {
		opts = append(opts, vault.WithLocalPath(dir))
	}
	v, err := vault.New(addr.String(), opts...)
	if err != nil {
		return nil, err
	}
	if err := v.Ready(ctx); err != nil {
		_ = v.Close()
		return nil, err
	}
	return v, nil
}

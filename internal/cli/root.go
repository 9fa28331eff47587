// Package cli implements the dvault command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/go/dweb/config"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags and the state derived from them.
type RootOptions struct {
	ConfigPath string
	Timeout    time.Duration
	Format     string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand returns the dvault command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dvault",
		Short: "Read and write versioned dweb vaults",
		Long: `dvault creates, inspects and edits versioned, append-only vaults.

A target is either a local vault directory or a vault address of the form
dweb://<key>[+version]. Addresses with a version read a historical checkout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = cfg.Logger(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "path to the configuration file")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "per-operation timeout (overrides the configuration)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(
		newCreateCommand(opts),
		newInfoCommand(opts),
		newLsCommand(opts),
		newCatCommand(opts),
		newWriteCommand(opts),
		newMkdirCommand(opts),
		newRmCommand(opts),
		newHistoryCommand(opts),
		newResolveCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

func (o *RootOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return o.cfg.GetTimeout()
}

package cli

import (
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configOptions struct {
	write bool
}

func newConfigCommand(root *RootOptions) *cobra.Command {
	opts := &configOptions{}
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration after defaults and environment overrides are applied.

With --write the effective configuration is saved to the --config path.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.write {
				if err := root.cfg.Save(root.ConfigPath); err != nil {
					return err
				}
				root.logger.Info("configuration written", "path", root.ConfigPath)
			}

			data, err := yaml.Marshal(root.cfg)
			if err != nil {
				return err
			}
			return root.out(cmd.OutOrStdout()).emit(root.cfg, func(w io.Writer) {
				_, _ = w.Write(data)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.write, "write", false, "save the effective configuration to the --config path")
	return cmd
}

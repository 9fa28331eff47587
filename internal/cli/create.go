package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmgilman/go/dweb/manifest"
	"github.com/jmgilman/go/dweb/vault"
)

type createOptions struct {
	title       string
	description string
	types       []string
	author      string
	authorURL   string
}

func newCreateCommand(root *RootOptions) *cobra.Command {
	opts := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create <dir>",
		Short: "Create a new vault in an empty or missing directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := vault.CreateParams{
				LocalPath:   args[0],
				Title:       opts.title,
				Description: opts.description,
				Type:        manifest.Types(opts.types),
				Options:     root.vaultOptions(),
			}
			if opts.author != "" {
				params.Author = &manifest.Author{Name: opts.author, URL: opts.authorURL}
			}

			v, err := vault.Create(cmd.Context(), params)
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			return root.out(cmd.OutOrStdout()).emit(map[string]string{"url": v.URL()}, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, v.URL())
			})
		},
	}
	cmd.Flags().StringVar(&opts.title, "title", "", "vault title")
	cmd.Flags().StringVar(&opts.description, "description", "", "vault description")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "vault type tags")
	cmd.Flags().StringVar(&opts.author, "author", "", "author name")
	cmd.Flags().StringVar(&opts.authorURL, "author-url", "", "author URL")
	return cmd
}

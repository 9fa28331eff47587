package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/go/dweb/vault"
)

func newInfoCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <target>",
		Short: "Show a vault's identity, state and manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			info, err := v.GetInfo(cmd.Context())
			if err != nil {
				return err
			}
			return root.out(cmd.OutOrStdout()).emit(info, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintf(tw, "url:\t%s\n", info.URL)
				_, _ = fmt.Fprintf(tw, "owner:\t%t\n", info.IsOwner)
				_, _ = fmt.Fprintf(tw, "version:\t%d\n", info.Version)
				_, _ = fmt.Fprintf(tw, "peers:\t%d\n", info.Peers)
				if info.Title != "" {
					_, _ = fmt.Fprintf(tw, "title:\t%s\n", info.Title)
				}
				if info.Description != "" {
					_, _ = fmt.Fprintf(tw, "description:\t%s\n", info.Description)
				}
				if len(info.Type) > 0 {
					_, _ = fmt.Fprintf(tw, "type:\t%s\n", strings.Join(info.Type, ", "))
				}
				if info.Author != nil {
					_, _ = fmt.Fprintf(tw, "author:\t%s\n", info.Author.Name)
				}
				_ = tw.Flush()
			})
		},
	}
}

func newLsCommand(root *RootOptions) *cobra.Command {
	var stat bool
	cmd := &cobra.Command{
		Use:   "ls <target> [path]",
		Short: "List a directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "/"
			if len(args) == 2 {
				p = args[1]
			}
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			var opts []vault.CallOption
			if stat {
				opts = append(opts, vault.WithStat())
			}
			entries, err := v.ReadDir(cmd.Context(), p, opts...)
			if err != nil {
				return err
			}
			return root.out(cmd.OutOrStdout()).emit(entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, e := range entries {
					if e.Stat == nil {
						_, _ = fmt.Fprintln(tw, e.Name)
						continue
					}
					_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
						e.Stat.Mode(), e.Stat.Size(), e.Stat.ModTime().Format(time.RFC3339), e.Name)
				}
				_ = tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&stat, "stat", false, "show mode, size and modification time")
	return cmd
}

func newCatCommand(root *RootOptions) *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "cat <target> <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			data, err := v.ReadFile(cmd.Context(), args[1], vault.WithEncoding(vault.Encoding(encoding)))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", string(vault.EncodingUTF8), "output encoding (utf8|binary|hex|base64)")
	return cmd
}

func newHistoryCommand(root *RootOptions) *cobra.Command {
	var (
		start, end int
		reverse    bool
	)
	cmd := &cobra.Command{
		Use:   "history <target>",
		Short: "List the vault's log entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			opts := []vault.CallOption{vault.WithStart(start), vault.WithEnd(end)}
			if reverse {
				opts = append(opts, vault.WithReverse())
			}
			entries, err := v.History(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			return root.out(cmd.OutOrStdout()).emit(entries, func(w io.Writer) {
				for _, e := range entries {
					_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", e.Version, e.Type, e.Path)
				}
			})
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first entry")
	cmd.Flags().IntVar(&end, "end", 0, "entry after the last (0 means the current length)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "newest first")
	return cmd
}

func newResolveCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Resolve a name to a vault key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.ResolveName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return root.out(cmd.OutOrStdout()).emit(map[string]string{"key": key}, func(w io.Writer) {
				_, _ = fmt.Fprintln(w, key)
			})
		},
	}
}

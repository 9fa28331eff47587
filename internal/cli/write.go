package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/vault"
)

func newWriteCommand(root *RootOptions) *cobra.Command {
	var encoding string
	cmd := &cobra.Command{
		Use:   "write <target> <path> <file|->",
		Short: "Write a file from disk or standard input",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[2] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[2])
			}
			if err != nil {
				return verrors.WithContext(verrors.Wrap(err, verrors.CodeInvalidInput, "failed to read input"), "source", args[2])
			}

			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			return v.WriteFile(cmd.Context(), args[1], data, vault.WithEncoding(vault.Encoding(encoding)))
		},
	}
	cmd.Flags().StringVar(&encoding, "encoding", string(vault.EncodingUTF8), "input encoding (utf8|binary|hex|base64)")
	return cmd
}

func newMkdirCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <target> <path>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()
			return v.Mkdir(cmd.Context(), args[1])
		},
	}
}

func newRmCommand(root *RootOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <target> <path>",
		Short: "Remove a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := root.openTarget(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			st, err := v.Stat(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if st.IsDir() {
				var opts []vault.CallOption
				if recursive {
					opts = append(opts, vault.WithRecursive())
				}
				return v.Rmdir(cmd.Context(), args[1], opts...)
			}
			return v.Unlink(cmd.Context(), args[1])
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

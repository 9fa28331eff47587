// Command dvault creates, inspects and edits versioned vaults.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jmgilman/go/dweb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	root := cli.NewRootCommand()
	err := root.ExecuteContext(ctx)
	asJSON := root.PersistentFlags().Lookup("format").Value.String() == "json"
	code := cli.PrintError(os.Stderr, asJSON, err)

	stop()
	os.Exit(code)
}

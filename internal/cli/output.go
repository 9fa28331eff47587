package cli

import (
	"encoding/json"
	"fmt"
	"io"

	verrors "github.com/jmgilman/go/dweb/errors"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// formatter renders command results as text or JSON.
type formatter struct {
	json bool
	w    io.Writer
}

func (o *RootOptions) out(w io.Writer) *formatter {
	return &formatter{json: o.Format == "json", w: w}
}

// emit writes v as JSON, or calls text to render it.
func (f *formatter) emit(v any, text func(io.Writer)) error {
	if f.json {
		enc := json.NewEncoder(f.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.w)
	return nil
}

// PrintError reports err in the requested format and returns the exit code.
func PrintError(w io.Writer, asJSON bool, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": verrors.ToJSON(err)})
		return ExitFailure
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return ExitFailure
}

package manifest

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	verrors "github.com/jmgilman/go/dweb/errors"
)

// schemaSource constrains the known manifest fields. Unknown fields are
// allowed so manifests written by newer tools still load.
const schemaSource = `
#Manifest: {
	url?:         =~"^dweb://[0-9a-f]{64}"
	title?:       string
	description?: string
	type?:        [...string] | string
	author?:      string | {
		name?: string
		url?:  string
		...
	}
	...
}
`

var (
	// schemaMu serializes evaluation; cue values are not safe for
	// concurrent use.
	schemaMu    sync.Mutex
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
)

func schema() (*cue.Context, cue.Value) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaValue = schemaCtx.CompileString(schemaSource).LookupPath(cue.ParsePath("#Manifest"))
	})
	return schemaCtx, schemaValue
}

// ValidateJSON checks raw manifest JSON against the manifest schema.
func ValidateJSON(data []byte) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, s := schema()
	if err := s.Err(); err != nil {
		return verrors.Wrap(err, verrors.CodeInternal, "manifest schema is invalid")
	}

	v := ctx.CompileBytes(data)
	if err := v.Err(); err != nil {
		return verrors.Wrap(err, verrors.CodeInvalidInput, "manifest is not valid JSON")
	}

	if err := s.Unify(v).Validate(cue.Concrete(true), cue.All()); err != nil {
		return verrors.WithContext(
			verrors.Wrap(err, verrors.CodeInvalidInput, "manifest failed validation"),
			"issues", issues(err),
		)
	}
	return nil
}

func issues(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if p := e.Path(); len(p) > 0 {
			msg = fmt.Sprintf("%s: %s", strings.Join(p, "."), msg)
		}
		out = append(out, msg)
	}
	return out
}

// Package pathutil normalizes and validates vault paths.
//
// Reads only normalize. Mutations normalize, then validate against the
// allow-list, then check the path is not reserved.
package pathutil

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/manifest"
)

// validPath is the allow-list for path characters: letters and digits in any
// script, whitespace, separators and the URL-safe punctuation set.
var validPath = regexp.MustCompile(`^[\p{L}\p{N}\-._~!$&'()*+,;=:@/\s]+$`)

// Normalize percent-decodes p, composes it to Unicode NFC and ensures
// exactly one leading separator. Empty input is the root. Input with an
// invalid escape sequence is used undecoded.
func Normalize(p string) string {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return "/" + strings.TrimLeft(norm.NFC.String(p), "/")
}

// ValidPath rejects paths containing characters outside the allow-list.
func ValidPath(p string) error {
	if !validPath.MatchString(p) {
		return verrors.WithContext(
			verrors.New(verrors.CodeInvalidPath, "path contains invalid characters"),
			"path", p,
		)
	}
	return nil
}

// ValidFilePath is ValidPath plus a ban on trailing separators, since a file
// path cannot name a directory.
func ValidFilePath(p string) error {
	if strings.HasSuffix(p, "/") {
		return verrors.WithContext(
			verrors.New(verrors.CodeInvalidPath, "files can not have a trailing slash"),
			"path", p,
		)
	}
	return ValidPath(p)
}

// Unprotected rejects the reserved manifest path, including spellings that
// clean to it.
func Unprotected(p string) error {
	if path.Clean("/"+p) == manifest.Path {
		return verrors.WithContext(
			verrors.New(verrors.CodeProtectedFile, "the manifest can only be changed through configure"),
			"path", p,
		)
	}
	return nil
}

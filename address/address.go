// Package address parses vault addresses of the form
//
//	dweb://<key>[+<version>]/<path>
//
// where key is the 64 character hex encoding of the vault's public key and
// version is a positive log length. A missing version means the live head.
package address

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	verrors "github.com/jmgilman/go/dweb/errors"
)

// Scheme is the URL scheme for vault addresses.
const Scheme = "dweb"

// KeySize is the decoded length of a vault key in bytes.
const KeySize = 32

// Address is a parsed vault address. The zero value means "no address":
// create a fresh vault.
type Address struct {
	// Key is the lowercase hex vault key.
	Key string

	// Version is the requested log length, or 0 for the live head.
	Version int

	// Path is the decoded path component, "/" when absent.
	Path string
}

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool {
	return a.Key == ""
}

// Versioned reports whether a pins a historical version.
func (a Address) Versioned() bool {
	return a.Version > 0
}

// Origin renders the address without version or path.
func (a Address) Origin() string {
	return Scheme + "://" + a.Key
}

// String renders the address with its version, without the path.
func (a Address) String() string {
	if a.Key == "" {
		return ""
	}
	if a.Version > 0 {
		return a.Origin() + "+" + strconv.Itoa(a.Version)
	}
	return a.Origin()
}

// Parse parses s. The empty string returns the zero Address and no error.
// Accepted forms are "dweb://<key>[+n][/path]" and the same without the
// scheme prefix.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, nil
	}

	rest := s
	if i := strings.Index(rest, "://"); i >= 0 {
		if !strings.EqualFold(rest[:i], Scheme) {
			return Address{}, invalid(s, "unsupported scheme %q", rest[:i])
		}
		rest = rest[i+3:]
	}

	host, p := rest, "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, p = rest[:i], rest[i:]
	}

	addr := Address{Path: p}
	if decoded, err := url.PathUnescape(p); err == nil {
		addr.Path = decoded
	}

	key := host
	if i := strings.IndexByte(host, '+'); i >= 0 {
		key = host[:i]
		v, err := strconv.Atoi(host[i+1:])
		if err != nil || v < 1 {
			return Address{}, invalid(s, "version must be a positive integer, got %q", host[i+1:])
		}
		addr.Version = v
	}

	k, err := ParseKey(key)
	if err != nil {
		return Address{}, verrors.WithContext(err, "address", s)
	}
	addr.Key = k
	return addr, nil
}

// ParseKey validates a hex vault key and returns it lowercased.
func ParseKey(key string) (string, error) {
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != KeySize {
		return "", verrors.Newf(verrors.CodeAddress, "invalid vault key %q: want %d hex-encoded bytes", key, KeySize)
	}
	return hex.EncodeToString(raw), nil
}

// IsKey reports whether s is a well-formed hex vault key.
func IsKey(s string) bool {
	_, err := ParseKey(s)
	return err == nil
}

func invalid(s, format string, args ...any) error {
	return verrors.WithContext(verrors.Newf(verrors.CodeAddress, format, args...), "address", s)
}

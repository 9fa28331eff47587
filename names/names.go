// Package names resolves human-readable names to vault keys.
//
// A name that already carries a key (a bare key or a vault address) resolves
// to that key without network access. Otherwise the host is looked up in
// DNS, where a TXT record of the form "dwebkey=<key>" names the vault, and
// then over HTTPS at /.well-known/dweb, where the first line is the vault
// address and an optional "TTL=<seconds>" line sets how long the answer may
// be cached.
package names

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/jmgilman/go/dweb/address"
	verrors "github.com/jmgilman/go/dweb/errors"
)

const (
	// DefaultTTL is how long a resolved name is cached when the source
	// does not say.
	DefaultTTL = time.Hour

	// DefaultCacheSize bounds the number of cached names.
	DefaultCacheSize = 256

	txtPrefix     = "dwebkey="
	wellKnownPath = "/.well-known/dweb"
	maxBodySize   = 64 * 1024
)

// Resolver maps names to vault keys. It is safe for concurrent use.
type Resolver struct {
	lookupTXT func(ctx context.Context, host string) ([]string, error)
	client    *http.Client
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache
}

type cached struct {
	key     string
	expires time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTXTLookup replaces the DNS TXT lookup.
func WithTXTLookup(fn func(ctx context.Context, host string) ([]string, error)) Option {
	return func(r *Resolver) {
		r.lookupTXT = fn
	}
}

// WithHTTPClient sets the client used for well-known lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithTTL sets the default cache lifetime. Zero disables caching.
func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = d
	}
}

// WithCacheSize bounds the cache.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		r.cache = lru.New(n)
	}
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Resolver using the system DNS resolver and
// http.DefaultClient.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		lookupTXT: net.DefaultResolver.LookupTXT,
		client:    http.DefaultClient,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:     lru.New(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the process-wide Resolver.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = New()
	})
	return defaultResolver
}

// Resolve returns the hex key name refers to.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if addr, err := address.Parse(name); err == nil && !addr.IsZero() {
		return addr.Key, nil
	}

	host := hostOf(name)
	if host == "" {
		return "", verrors.WithContext(verrors.New(verrors.CodeAddress, "name is empty"), "name", name)
	}

	if key, ok := r.fromCache(host); ok {
		return key, nil
	}

	if key, ok := r.resolveTXT(ctx, host); ok {
		r.store(host, key, r.ttl)
		return key, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key, ttl, err := r.resolveWellKnown(ctx, host)
	if err != nil {
		return "", verrors.WithContext(
			verrors.Wrap(err, verrors.CodeNotFound, "could not resolve name"),
			"name", name,
		)
	}
	r.store(host, key, ttl)
	return key, nil
}

func (r *Resolver) resolveTXT(ctx context.Context, host string) (string, bool) {
	records, err := r.lookupTXT(ctx, host)
	if err != nil {
		r.logger.Debug("txt lookup failed", "host", host, "error", err)
		return "", false
	}
	for _, rec := range records {
		value, ok := strings.CutPrefix(strings.TrimSpace(rec), txtPrefix)
		if !ok {
			continue
		}
		if key, err := address.ParseKey(value); err == nil {
			return key, true
		}
	}
	return "", false
}

func (r *Resolver) resolveWellKnown(ctx context.Context, host string) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+wellKnownPath, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", 0, verrors.Newf(verrors.CodeNotFound, "well-known lookup returned %s", resp.Status)
	}
	return parseWellKnown(io.LimitReader(resp.Body, maxBodySize), r.ttl)
}

// parseWellKnown reads the vault address from the first line and an optional
// TTL line after it.
func parseWellKnown(body io.Reader, ttl time.Duration) (string, time.Duration, error) {
	sc := bufio.NewScanner(body)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", 0, err
		}
		return "", 0, verrors.New(verrors.CodeInvalidInput, "well-known file is empty")
	}
	addr, err := address.Parse(strings.TrimSpace(sc.Text()))
	if err != nil {
		return "", 0, err
	}
	if addr.IsZero() {
		return "", 0, verrors.New(verrors.CodeInvalidInput, "well-known file has no address")
	}

	for sc.Scan() {
		v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "TTL=")
		if !ok {
			continue
		}
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	return addr.Key, ttl, sc.Err()
}

func (r *Resolver) fromCache(host string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(host)
	if !ok {
		return "", false
	}
	c := v.(cached)
	if !r.now().Before(c.expires) {
		r.cache.Remove(host)
		return "", false
	}
	return c.key, true
}

func (r *Resolver) store(host, key string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(host, cached{key: key, expires: r.now().Add(ttl)})
}

// hostOf strips any scheme, path and version suffix from a name.
func hostOf(name string) string {
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	if i := strings.IndexAny(name, "/?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '+'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

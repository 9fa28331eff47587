package vault

import (
	"log/slog"
	"time"

	"github.com/jmgilman/go/dweb/store"
)

// Encoding selects how ReadFile renders and WriteFile interprets file bytes.
type Encoding string

const (
	// EncodingUTF8 passes bytes through unchanged. It is the default.
	EncodingUTF8 Encoding = "utf8"
	// EncodingBinary passes bytes through unchanged.
	EncodingBinary Encoding = "binary"
	// EncodingHex renders bytes as lowercase hex.
	EncodingHex Encoding = "hex"
	// EncodingBase64 renders bytes as standard padded base64.
	EncodingBase64 Encoding = "base64"
)

// CallOptions holds the per-call settings. Each operation reads only the
// fields it recognizes and ignores the rest.
type CallOptions struct {
	// Timeout bounds the call. Zero uses the vault default.
	Timeout time.Duration

	// Stat makes ReadDir attach a stat record to each entry.
	Stat bool

	// Start and End bound History to [Start, End). A zero End means the
	// checkout's current length.
	Start int
	End   int

	// Reverse makes History walk the same range newest first.
	Reverse bool

	// Recursive lets Rmdir remove non-empty directories.
	Recursive bool

	// Encoding applies to ReadFile and WriteFile.
	Encoding Encoding
}

// CallOption configures a single call.
type CallOption func(*CallOptions)

// WithTimeout bounds a call by d.
func WithTimeout(d time.Duration) CallOption {
	return func(o *CallOptions) {
		o.Timeout = d
	}
}

// WithStat augments ReadDir entries with their stat records.
func WithStat() CallOption {
	return func(o *CallOptions) {
		o.Stat = true
	}
}

// WithStart sets the first History entry. With WithReverse the bound is
// counted back from the newest entry, so a reverse call does not mirror the
// forward range: with four entries, start 0 and end 2 return the two oldest
// forward and the two newest in reverse.
func WithStart(n int) CallOption {
	return func(o *CallOptions) {
		o.Start = n
	}
}

// WithEnd sets the History end bound. Zero means the log length. Like
// WithStart it is counted back from the newest entry when reversing.
func WithEnd(n int) CallOption {
	return func(o *CallOptions) {
		o.End = n
	}
}

// WithReverse returns History newest first, with the start and end bounds
// measured back from the newest entry.
func WithReverse() CallOption {
	return func(o *CallOptions) {
		o.Reverse = true
	}
}

// WithRecursive allows Rmdir on non-empty directories.
func WithRecursive() CallOption {
	return func(o *CallOptions) {
		o.Recursive = true
	}
}

// WithEncoding sets the ReadFile/WriteFile encoding.
func WithEncoding(e Encoding) CallOption {
	return func(o *CallOptions) {
		o.Encoding = e
	}
}

func (v *Vault) callOptions(opts []CallOption) CallOptions {
	o := CallOptions{Timeout: v.opts.timeout, Encoding: EncodingUTF8}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = v.opts.timeout
	}
	return o
}

type options struct {
	driver    store.Driver
	localPath string
	logger    *slog.Logger
	timeout   time.Duration
	sparse    *bool
}

// Option configures a Vault.
type Option func(*options)

// WithDriver sets the store driver. The default is a logstore driver on the
// process-wide network.
func WithDriver(d store.Driver) Option {
	return func(o *options) {
		o.driver = d
	}
}

// WithLocalPath persists the vault under dir. Without it the vault lives in
// memory.
func WithLocalPath(dir string) Option {
	return func(o *options) {
		o.localPath = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDefaultTimeout sets the timeout of calls that do not pass WithTimeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSparse overrides whether content is downloaded lazily. Vaults opened
// by address are sparse by default; created and loaded vaults are not.
func WithSparse(sparse bool) Option {
	return func(o *options) {
		o.sparse = &sparse
	}
}

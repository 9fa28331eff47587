package vault

import (
	"strconv"

	"github.com/jmgilman/go/dweb/store"
)

// Version selects the point in the log a vault observes: the live head, or a
// fixed number of entries.
type Version struct {
	n int
}

// Live is the version that tracks the head of the log.
func Live() Version { return Version{} }

// FixedVersion pins a view to the first n log entries. n must be positive.
func FixedVersion(n int) Version { return Version{n: n} }

// Fixed returns the pinned entry count, if any.
func (v Version) Fixed() (int, bool) {
	return v.n, v.n > 0
}

// IsLive reports whether v tracks the head of the log.
func (v Version) IsLive() bool { return v.n <= 0 }

func (v Version) String() string {
	if v.IsLive() {
		return "live"
	}
	return "+" + strconv.Itoa(v.n)
}

// Checkout is the read view a vault operates on.
type Checkout struct {
	version Version
	handle  store.Handle
	reader  store.Reader
}

func resolveCheckout(h store.Handle, v Version) *Checkout {
	c := &Checkout{version: v, handle: h, reader: h}
	if n, ok := v.Fixed(); ok {
		c.reader = h.Checkout(n)
	}
	return c
}

// Version returns the number of log entries the view observes. A live
// checkout reports the handle's length at the time of the call.
func (c *Checkout) Version() int {
	if n, ok := c.version.Fixed(); ok {
		return n
	}
	return c.handle.Len()
}

// Reader returns the view reads go to.
func (c *Checkout) Reader() store.Reader { return c.reader }

// Writable reports whether mutations are allowed: the checkout must be live
// and the handle must hold the write key.
func (c *Checkout) Writable() bool {
	return c.version.IsLive() && c.handle.Writable()
}

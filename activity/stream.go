package activity

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	verrors "github.com/jmgilman/go/dweb/errors"
	"github.com/jmgilman/go/dweb/store"
)

// Source pushes native notifications. store.Handle satisfies it.
type Source interface {
	Notify(fn func(store.Notification)) (stop func())
}

// Handler receives events. Handlers run on the source's delivery goroutine
// and must not block for long.
type Handler func(Event)

// Subscription identifies a registered listener.
type Subscription struct {
	ID    uuid.UUID
	Event EventName
}

type listener struct {
	sub Subscription
	fn  Handler
}

// Stream fans translated notifications out to listeners.
type Stream struct {
	src       Source
	translate func(store.Notification) (Event, bool)

	mu        sync.Mutex
	listeners []listener
	stop      func()
	closed    bool
}

// NewFileStream returns a stream of EventChanged filtered by a glob pattern.
// "*" matches within one path segment and "**" across segments. An empty
// pattern matches every path.
func NewFileStream(src Source, pattern string) (*Stream, error) {
	match := func(string) bool { return true }
	if pattern != "" {
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, verrors.WithContext(
				verrors.Wrap(err, verrors.CodeInvalidInput, "invalid path pattern"),
				"pattern", pattern,
			)
		}
		match = g.Match
	}

	return newStream(src, func(n store.Notification) (Event, bool) {
		if n.Kind != store.NotifyAppend || !match(n.Path) {
			return nil, false
		}
		return Changed{Path: n.Path}, true
	}), nil
}

// NewNetworkStream returns a stream of EventNetworkChanged, EventDownload and
// EventSync.
func NewNetworkStream(src Source) *Stream {
	return newStream(src, func(n store.Notification) (Event, bool) {
		switch n.Kind {
		case store.NotifyPeerAdd, store.NotifyPeerRemove:
			return NetworkChanged{}, true
		case store.NotifyDownload:
			return Download{Feed: n.Feed, Block: n.Block}, true
		case store.NotifySync:
			return Sync{Feed: n.Feed}, true
		default:
			return nil, false
		}
	})
}

func newStream(src Source, translate func(store.Notification) (Event, bool)) *Stream {
	return &Stream{src: src, translate: translate}
}

// AddEventListener registers fn for events named name. The first listener
// starts listening to the source.
func (s *Stream) AddEventListener(name EventName, fn Handler) Subscription {
	sub := Subscription{ID: uuid.New(), Event: name}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sub
	}
	s.listeners = append(s.listeners, listener{sub: sub, fn: fn})
	if s.stop == nil {
		s.stop = s.src.Notify(s.deliver)
	}
	return sub
}

// RemoveEventListener unregisters a listener. Removing the last listener
// stops listening to the source. Unknown subscriptions are ignored.
func (s *Stream) RemoveEventListener(sub Subscription) {
	s.mu.Lock()
	var stop func()
	for i, l := range s.listeners {
		if l.sub.ID == sub.ID {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			break
		}
	}
	if len(s.listeners) == 0 {
		stop, s.stop = s.stop, nil
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Close removes every listener and detaches from the source.
func (s *Stream) Close() {
	s.mu.Lock()
	stop := s.stop
	s.stop, s.listeners, s.closed = nil, nil, true
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (s *Stream) deliver(n store.Notification) {
	ev, ok := s.translate(n)
	if !ok {
		return
	}

	s.mu.Lock()
	var fns []Handler
	for _, l := range s.listeners {
		if l.sub.Event == ev.Name() {
			fns = append(fns, l.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

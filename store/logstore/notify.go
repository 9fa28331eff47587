package logstore

import (
	"sync"
	"sync/atomic"

	"github.com/jmgilman/go/dweb/store"
)

type subscriber struct {
	fn     func(store.Notification)
	active atomic.Bool
}

type queued struct {
	n    store.Notification
	subs []*subscriber
}

// dispatcher delivers notifications to subscribers from a single goroutine,
// in emission order. The subscriber set is captured at emit time, so a
// notification is never delivered to a subscriber registered after it was
// emitted.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []queued
	subs   []*subscriber
	closed bool
	done   chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn func(store.Notification)) func() {
	s := &subscriber{fn: fn}
	s.active.Store(true)

	d.mu.Lock()
	d.subs = append(d.subs, s)
	d.mu.Unlock()

	return func() {
		s.active.Store(false)
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, cur := range d.subs {
			if cur == s {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

func (d *dispatcher) emit(n store.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || len(d.subs) == 0 {
		return
	}
	subs := make([]*subscriber, len(d.subs))
	copy(subs, d.subs)
	d.queue = append(d.queue, queued{n: n, subs: subs})
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		q := d.queue[0]
		d.queue[0] = queued{}
		d.queue = d.queue[1:]
		d.mu.Unlock()

		for _, s := range q.subs {
			if s.active.Load() {
				s.fn(q.n)
			}
		}
	}
}

// close delivers what is already queued, then stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}

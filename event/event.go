// Package event implements the in-process publish/subscribe hub the
// federation core uses to decouple the Voting Manager, Federation Manager,
// and Idle-Members Kicker from each other and from the block-processing
// path. The API shape (Dispatcher.Subscribe/Post, Subscription.Chan) is
// reconstructed from its call sites across the teacher's tree
// (protocol/bbft.go, netsync/consensus/handle.go, api/miner.go) since the
// teacher's own event package source wasn't part of the retrieval pack.
package event

import (
	"reflect"
	"sync"

	"github.com/bytom/federation/errors"
)

// Obj wraps a delivered event value, matching the shape the teacher's call
// sites destructure via `obj.Data.(event.SomeEvent)`.
type Obj struct {
	Data interface{}
}

// Subscription is returned by Dispatcher.Subscribe. It is fire-and-forget:
// delivery to its channel never blocks Post, so it is only appropriate for
// consumers (broadcast loops, admin notifiers) that don't need the
// synchronous-processing guarantee described in the concurrency model.
// Components that must observe an event's effects before the publisher
// proceeds (the Idle Kicker reacting to MemberAdded, for instance) use
// SubscribeFunc instead.
type Subscription struct {
	d       *Dispatcher
	typ     reflect.Type
	ch      chan Obj
	fn      func(interface{})
	once    sync.Once
	closeCh chan struct{}
}

// Chan returns the channel events of the subscribed type are delivered on.
func (s *Subscription) Chan() <-chan Obj {
	return s.ch
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.d.remove(s)
		close(s.closeCh)
		if s.ch != nil {
			close(s.ch)
		}
	})
}

// Dispatcher is a synchronous, in-process event bus. Post returns only
// after every SubscribeFunc handler for that event's type has run to
// completion, guaranteeing (per the concurrency model) that a handler
// observing new state - e.g. the Idle Kicker reading the roster after a
// MemberAdded - never races the publisher. Channel subscribers (Subscribe)
// are best-effort and never delay Post.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[reflect.Type][]*Subscription
	closed bool
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[reflect.Type][]*Subscription)}
}

// Subscribe registers a fire-and-forget channel subscriber for events with
// the same dynamic type as sample.
func (d *Dispatcher) Subscribe(sample interface{}) (*Subscription, error) {
	return d.subscribe(sample, make(chan Obj, 16), nil)
}

// SubscribeFunc registers a synchronous callback invoked in-line by Post,
// before Post returns, for events with the same dynamic type as sample.
func (d *Dispatcher) SubscribeFunc(sample interface{}, handler func(interface{})) (*Subscription, error) {
	return d.subscribe(sample, nil, handler)
}

func (d *Dispatcher) subscribe(sample interface{}, ch chan Obj, fn func(interface{})) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("event: dispatcher is stopped")
	}

	typ := reflect.TypeOf(sample)
	sub := &Subscription{d: d, typ: typ, ch: ch, fn: fn, closeCh: make(chan struct{})}
	d.subs[typ] = append(d.subs[typ], sub)
	return sub, nil
}

// Post delivers ev to every live subscriber of ev's dynamic type. Callback
// subscribers run synchronously, in registration order, before Post
// returns; channel subscribers are notified on a best-effort basis (a full
// channel drops the event rather than blocking the publisher).
func (d *Dispatcher) Post(ev interface{}) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return errors.New("event: dispatcher is stopped")
	}
	typ := reflect.TypeOf(ev)
	subs := make([]*Subscription, len(d.subs[typ]))
	copy(subs, d.subs[typ])
	d.mu.RUnlock()

	obj := Obj{Data: ev}
	for _, sub := range subs {
		if sub.fn != nil {
			sub.fn(ev)
			continue
		}
		select {
		case sub.ch <- obj:
		default:
		}
	}
	return nil
}

// Stop closes every live subscription and rejects further Subscribe/Post
// calls, used on cooperative node shutdown.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.closed = true
	subs := d.subs
	d.subs = make(map[reflect.Type][]*Subscription)
	d.mu.Unlock()

	for _, list := range subs {
		for _, sub := range list {
			sub.once.Do(func() {
				close(sub.closeCh)
				if sub.ch != nil {
					close(sub.ch)
				}
			})
		}
	}
}

func (d *Dispatcher) remove(target *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[target.typ]
	for i, sub := range list {
		if sub == target {
			d.subs[target.typ] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

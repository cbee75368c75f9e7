// Package store implements observable values. A subscriber is called with
// the current value when it subscribes and again after every change.
//
// Notifications for one store are delivered in the order the changes were
// made. A subscriber may change the store it observes; the nested change is
// delivered after the current round of notifications completes.
//
// One goroutine at a time delivers notifications. A Set or Subscribe that
// runs while another call is delivering only queues its notification, and
// the delivering call runs it before returning. In that case the caller
// returns before its subscribers have seen the value.
package store

import (
	"slices"
	"sync"
)

// Readable is a value that can be observed.
type Readable[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

type notification[T any] struct {
	value T
	subs  []subscriber[T]
}

// Writable holds a value and notifies subscribers when it changes.
// The zero value is not usable; create one with NewWritable.
type Writable[T any] struct {
	mu        sync.Mutex
	value     T
	subs      []subscriber[T]
	nextID    uint64
	pending   []notification[T]
	notifying bool
}

// NewWritable returns a store holding initial.
func NewWritable[T any](initial T) *Writable[T] {
	return &Writable[T]{value: initial}
}

// Get returns the current value.
func (w *Writable[T]) Get() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Set replaces the value and notifies subscribers.
func (w *Writable[T]) Set(v T) {
	w.mu.Lock()
	w.value = v
	w.enqueueLocked()
	w.mu.Unlock()
	w.drain()
}

// Update replaces the value with fn(current) and notifies subscribers.
// fn runs with the store locked and must not call back into the store.
func (w *Writable[T]) Update(fn func(T) T) {
	w.mu.Lock()
	w.value = fn(w.value)
	w.enqueueLocked()
	w.mu.Unlock()
	w.drain()
}

// TryUpdate is Update for changes that can fail. When fn returns an error
// the value is left unchanged and nobody is notified.
func (w *Writable[T]) TryUpdate(fn func(T) (T, error)) error {
	w.mu.Lock()
	next, err := fn(w.value)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.value = next
	w.enqueueLocked()
	w.mu.Unlock()
	w.drain()
	return nil
}

// Subscribe registers fn and calls it with the current value. When no
// notification round is running the call happens before Subscribe returns.
// Otherwise, for example when a subscriber subscribes to the store it
// observes, the initial value is queued behind that round. It still reaches
// fn before any change made after Subscribe.
func (w *Writable[T]) Subscribe(fn func(T)) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.subs = append(w.subs, subscriber[T]{id: id, fn: fn})
	w.pending = append(w.pending, notification[T]{value: w.value, subs: []subscriber[T]{{id: id, fn: fn}}})
	w.mu.Unlock()
	w.drain()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.subs = slices.DeleteFunc(w.subs, func(s subscriber[T]) bool { return s.id == id })
		})
	}
}

// SubscriberCount returns the number of active subscribers.
func (w *Writable[T]) SubscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

func (w *Writable[T]) enqueueLocked() {
	if len(w.subs) == 0 {
		return
	}
	w.pending = append(w.pending, notification[T]{value: w.value, subs: slices.Clone(w.subs)})
}

// drain delivers queued notifications unless another call is already doing
// so, in which case that call picks up the new entries.
func (w *Writable[T]) drain() {
	w.mu.Lock()
	if w.notifying {
		w.mu.Unlock()
		return
	}
	w.notifying = true
	for len(w.pending) > 0 {
		n := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()
		for _, s := range n.subs {
			if w.active(s.id) {
				s.fn(n.value)
			}
		}
		w.mu.Lock()
	}
	w.notifying = false
	w.mu.Unlock()
}

func (w *Writable[T]) active(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.ContainsFunc(w.subs, func(s subscriber[T]) bool { return s.id == id })
}

var _ Readable[int] = (*Writable[int])(nil)

// Static returns a Readable that never changes.
func Static[T any](v T) Readable[T] {
	return static[T]{v}
}

type static[T any] struct{ v T }

func (s static[T]) Get() T { return s.v }

func (s static[T]) Subscribe(fn func(T)) func() {
	fn(s.v)
	return func() {}
}

package store

import "sync"

// Derive maps src through fn. The result is computed on demand; it holds
// no state of its own.
func Derive[S, T any](src Readable[S], fn func(S) T) Readable[T] {
	return &derived[S, T]{src: src, fn: fn}
}

type derived[S, T any] struct {
	src Readable[S]
	fn  func(S) T
}

func (d *derived[S, T]) Get() T { return d.fn(d.src.Get()) }

func (d *derived[S, T]) Subscribe(fn func(T)) func() {
	return d.src.Subscribe(func(s S) { fn(d.fn(s)) })
}

// Derive2 combines two stores. Subscribers are first called once both
// sources have reported a value.
func Derive2[A, B, T any](a Readable[A], b Readable[B], fn func(A, B) T) Readable[T] {
	return &derived2[A, B, T]{a: a, b: b, fn: fn}
}

type derived2[A, B, T any] struct {
	a  Readable[A]
	b  Readable[B]
	fn func(A, B) T
}

func (d *derived2[A, B, T]) Get() T { return d.fn(d.a.Get(), d.b.Get()) }

func (d *derived2[A, B, T]) Subscribe(fn func(T)) func() {
	var (
		mu     sync.Mutex
		av     A
		bv     B
		haveA  bool
		haveB  bool
		closed bool
	)
	emit := func() {
		mu.Lock()
		if !haveA || !haveB || closed {
			mu.Unlock()
			return
		}
		a, b := av, bv
		mu.Unlock()
		fn(d.fn(a, b))
	}
	unsubA := d.a.Subscribe(func(v A) {
		mu.Lock()
		av, haveA = v, true
		mu.Unlock()
		emit()
	})
	unsubB := d.b.Subscribe(func(v B) {
		mu.Lock()
		bv, haveB = v, true
		mu.Unlock()
		emit()
	})
	return func() {
		mu.Lock()
		closed = true
		mu.Unlock()
		unsubA()
		unsubB()
	}
}

// Collapse flattens a store of stores. Subscribers follow whichever inner
// store outer currently holds.
func Collapse[T any](outer Readable[Readable[T]]) Readable[T] {
	return &collapsed[T]{outer: outer}
}

type collapsed[T any] struct {
	outer Readable[Readable[T]]
}

func (c *collapsed[T]) Get() T { return c.outer.Get().Get() }

func (c *collapsed[T]) Subscribe(fn func(T)) func() {
	var (
		mu     sync.Mutex
		inner  func()
		closed bool
	)
	unsubOuter := c.outer.Subscribe(func(r Readable[T]) {
		mu.Lock()
		prev := inner
		inner = nil
		stop := closed
		mu.Unlock()
		if prev != nil {
			prev()
		}
		if stop {
			return
		}
		unsub := r.Subscribe(fn)
		mu.Lock()
		inner = unsub
		mu.Unlock()
	})
	return func() {
		mu.Lock()
		closed = true
		prev := inner
		inner = nil
		mu.Unlock()
		unsubOuter()
		if prev != nil {
			prev()
		}
	}
}

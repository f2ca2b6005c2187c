// Package reactive provides the subscribe/notify primitive the session and
// tenant stores publish their state through.
package reactive

import "sync"

// Observable holds a value and notifies subscribers whenever it is replaced.
// Values are treated as immutable snapshots: publishers must not mutate a
// value after handing it to Set.
type Observable[T any] struct {
	mu      sync.Mutex
	value   T
	nextID  uint64
	subs    map[uint64]func(T)
	order   []uint64
	notifMu sync.Mutex
}

// New creates an Observable holding initial.
func New[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[uint64]func(T)),
	}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set replaces the value and notifies subscribers.
func (o *Observable[T]) Set(v T) {
	o.Update(func(T) T { return v })
}

// Update replaces the value with fn(current) atomically and notifies
// subscribers with the new value. fn runs under the lock and must not call
// back into the Observable.
func (o *Observable[T]) Update(fn func(T) T) T {
	// notifMu keeps notifications in the same order as the updates that
	// produced them when several goroutines publish at once.
	o.notifMu.Lock()
	defer o.notifMu.Unlock()

	o.mu.Lock()
	o.value = fn(o.value)
	v := o.value
	subs := o.snapshotLocked()
	o.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
	return v
}

// Subscribe registers fn to be called with every new value. It returns an
// idempotent unsubscribe function. fn is not called with the current value;
// use Get for that. fn must not publish to the same Observable synchronously.
func (o *Observable[T]) Subscribe(fn func(T)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.order = append(o.order, id)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, sid := range o.order {
				if sid == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (o *Observable[T]) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *Observable[T]) snapshotLocked() []func(T) {
	out := make([]func(T), 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.subs[id])
	}
	return out
}

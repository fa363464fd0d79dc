// Package bus provides a typed publish/subscribe channel, injected into the components
// that need to announce or observe session and preference changes
package bus

import (
	"context"
	"sync"
)

// Bus keeps track of a buffered channel for each subscriber that needs to be notified
// when a message of type T is published
type Bus[T any] struct {
	mu         sync.RWMutex
	chs        map[int]chan T
	nextHandle int
}

// New initializes an empty bus
func New[T any]() *Bus[T] {
	return &Bus[T]{
		chs: make(map[int]chan T),
	}
}

// Subscribe registers a new channel with the given buffer size, returning that channel
// along with a function that unregisters (and closes) it. The unsubscribe function may
// be called more than once.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)

	b.mu.Lock()
	handle := b.nextHandle
	b.nextHandle++
	b.chs[handle] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if registered, ok := b.chs[handle]; ok {
				delete(b.chs, handle)
				close(registered)
			}
		})
	}
	return ch, unsubscribe
}

// Publish fans a message out to all currently-registered channels. A subscriber whose
// buffer is full misses the message rather than stalling the publisher. Returns the
// number of subscribers that received the message.
func (b *Bus[T]) Publish(message T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.chs {
		select {
		case ch <- message:
			delivered++
		default:
		}
	}
	return delivered
}

// Len reports how many subscribers are currently registered
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.chs)
}

// Close unregisters and closes every subscriber channel
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for handle, ch := range b.chs {
		delete(b.chs, handle)
		close(ch)
	}
}

// Forward republishes every message from src onto dst, converted with fn, until ctx is
// canceled or src is closed
func Forward[T any, U any](ctx context.Context, src *Bus[T], dst *Bus[U], fn func(T) U) {
	ch, unsubscribe := src.Subscribe(32)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-ch:
				if !ok {
					return
				}
				dst.Publish(fn(message))
			}
		}
	}()
}

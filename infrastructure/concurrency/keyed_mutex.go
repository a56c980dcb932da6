// Package concurrency provides in-process synchronization for conversation turns.
package concurrency

import (
	"context"
	"sync"
)

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex hands out one mutual-exclusion scope per conversation id.
// Entries are reference counted and dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[int64]*keyedEntry),
	}
}

// Lock blocks until the conversation is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, conversationID int64) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[conversationID]
	if !ok {
		entry = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[conversationID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(conversationID, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(conversationID, entry, true) })
	}, nil
}

func (k *KeyedMutex) release(conversationID int64, entry *keyedEntry, held bool) {
	if held {
		<-entry.sem
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, conversationID)
	}
}

// Len returns the number of conversations currently locked or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify carries discrete, low-frequency transitions (support
// status, placement state, aggregate snapshots) to in-process observers.
//
// High-frequency per-frame data does not go through here; see
// orientation.PoseCell.
package notify

import (
	"sort"
	"sync"
)

// Topic fans a value out to every subscriber. The zero value is ready
// to use and safe for concurrent use.
//
// Handlers run on the publishing goroutine, outside the topic's lock,
// in subscription order. A handler may subscribe or unsubscribe.
type Topic[T any] struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]func(T)
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs == nil {
		t.subs = make(map[uint64]func(T))
	}
	t.next++
	id := t.next
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Publish delivers v to the current subscribers.
func (t *Topic[T]) Publish(v T) {
	for _, fn := range t.snapshot() {
		fn(v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Topic[T]) snapshot() []func(T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]uint64, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.subs[id])
	}
	return fns
}

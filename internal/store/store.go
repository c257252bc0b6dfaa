// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package store holds the visualizer's shared state: the latest activation
// snapshot and the training progress counters.
//
// Snapshots are replaced as a whole. Readers always see either the previous
// or the new snapshot in full.
package store

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/born-ml/neuroviz/internal/topology"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("store: closed")

// Probe is a published snapshot and the ID it was published under.
type Probe struct {
	ID       uuid.UUID
	Label    int32 // dataset label of the probed sample, -1 if unknown
	Snapshot *topology.Snapshot
}

// Store is safe for concurrent use.
type Store struct {
	latest atomic.Pointer[Probe]

	mu       sync.Mutex
	subs     map[chan uuid.UUID]struct{}
	closed   bool
	progress Progress
}

// New returns an empty store in the untrained state.
func New() *Store {
	return &Store{
		subs:     make(map[chan uuid.UUID]struct{}),
		progress: Progress{State: Untrained, ValAccuracy: math.NaN()},
	}
}

// Publish makes snap the latest snapshot and notifies subscribers.
func (s *Store) Publish(snap *topology.Snapshot, label int32) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return uuid.Nil, ErrClosed
	}

	p := &Probe{ID: uuid.New(), Label: label, Snapshot: snap}
	s.latest.Store(p)

	for ch := range s.subs {
		// drop a stale pending ID so the newest one wins
		select {
		case <-ch:
		default:
		}
		ch <- p.ID
	}
	return p.ID, nil
}

// Latest returns the most recent probe, or nil before the first Publish.
func (s *Store) Latest() *Probe {
	return s.latest.Load()
}

// Subscribe returns a channel that receives the ID of every published
// probe. The channel buffers one ID; a slow reader only sees the newest.
// The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan uuid.UUID, func()) {
	ch := make(chan uuid.UUID, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// Close closes every subscriber channel. Later Publish calls fail.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

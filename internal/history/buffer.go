// Package history keeps the most recent snapshots in memory.
package history

import "github.com/chrissnell/tipstation/internal/types"

// Buffer is a fixed-capacity FIFO of snapshots in insertion order. When full,
// Push evicts the oldest entry. Buffer does no locking of its own.
type Buffer struct {
	entries []types.Snapshot
	start   int
	size    int
}

// New returns an empty buffer holding at most capacity snapshots. Capacities
// below one are raised to one.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{entries: make([]types.Snapshot, capacity)}
}

// Push appends s, evicting the oldest entry if the buffer is full
func (b *Buffer) Push(s types.Snapshot) {
	if b.size < len(b.entries) {
		b.entries[(b.start+b.size)%len(b.entries)] = s
		b.size++
		return
	}
	b.entries[b.start] = s
	b.start = (b.start + 1) % len(b.entries)
}

// Latest returns the newest entry
func (b *Buffer) Latest() (types.Snapshot, bool) {
	if b.size == 0 {
		return types.Snapshot{}, false
	}
	return b.entries[(b.start+b.size-1)%len(b.entries)], true
}

// All returns a copy of the entries, oldest first. An empty buffer yields an
// empty, non-nil slice.
func (b *Buffer) All() []types.Snapshot {
	out := make([]types.Snapshot, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.entries[(b.start+i)%len(b.entries)])
	}
	return out
}

// Len returns the number of entries held
func (b *Buffer) Len() int { return b.size }

// Cap returns the fixed capacity
func (b *Buffer) Cap() int { return len(b.entries) }

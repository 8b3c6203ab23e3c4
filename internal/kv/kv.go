// Package kv defines the collaborator contract the storage engine expects
// from the physical, ordered byte-oriented key/value store, and provides
// two concrete implementations: an in-memory engine backed by a B-tree per
// table, and an on-disk engine backed by Pebble.
//
// "Table" is a logical column-family-like identifier; within a table, keys
// are opaque byte strings compared lexicographically.
package kv

import "github.com/cockroachdb/errors"

// ErrNotFound is returned by Engine.Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Iterator walks a table's keys in ascending byte order starting at some
// lower bound. It is a finite, restartable-only-by-recreation sequence.
type Iterator interface {
	// Next advances the iterator and reports whether a pair is available.
	Next() bool
	// Key returns the current key. Valid only after a true Next.
	Key() []byte
	// Value returns the current value. Valid only after a true Next.
	Value() []byte
	// Close releases resources held by the iterator.
	Close() error
}

// WriteBatch accumulates Put/Delete operations across one or more tables
// and applies them atomically on Commit.
type WriteBatch interface {
	Put(table string, key, value []byte)
	Delete(table string, key []byte)
	// DeleteRange removes every physical key under the given table.
	// Operations apply in the order recorded: a Put recorded after the
	// DeleteRange in the same batch survives it. Used to implement
	// View.Clear at merge time.
	DeleteRange(table string)
	// Commit applies the batch atomically. On error the engine is left
	// unchanged.
	Commit() error
}

// Reader is the read-only subset of Engine that both a live Engine and a
// point-in-time Snapshot satisfy.
type Reader interface {
	Get(table string, key []byte) ([]byte, error)
	Has(table string, key []byte) (bool, error)
	// Iterate returns keys >= from in ascending order. from == nil means
	// the start of the table.
	Iterate(table string, from []byte) Iterator
}

// Snapshot is an immutable, point-in-time Reader. It must not observe any
// write committed to the Engine after it was taken.
type Snapshot interface {
	Reader
	Close() error
}

// Engine is the physical store collaborator: ordered iteration, point
// lookups, and atomically-batched writes, multiplexed over named tables.
type Engine interface {
	Reader
	// NewSnapshot captures a consistent, immutable view of the engine as
	// it stands at the call. Cheap to take; holds no write lock.
	NewSnapshot() Snapshot
	NewBatch() WriteBatch
	Close() error
}

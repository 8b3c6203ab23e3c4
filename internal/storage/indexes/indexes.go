// Package indexes provides the generic, non-Merkelized index adapters
// over storage.View: list, map, entry, key-set, value-set and sparse
// list. These mirror exonum-merkledb's plain (non-proof) index family
// and exist both as usable collaborators and as simple foils to exercise
// View/ViewChanges/IndexMetadata independently of the heavier ProofMap.
package indexes

import (
	"encoding/binary"

	"github.com/coreledger/merkledb/internal/storage"
)

// Source is satisfied by both *storage.Fork and *storage.Snapshot.
type Source interface {
	View(addr storage.IndexAddress) *storage.View
}

func ensureOrCheck(src Source, view *storage.View, addr storage.IndexAddress, kind storage.IndexKind) {
	switch s := src.(type) {
	case *storage.Fork:
		storage.EnsureIndexMetadata(s, addr, kind)
	case *storage.Snapshot:
		storage.CheckIndexMetadata(s, addr, kind)
	}
	_ = view
}

// --- Entry: a single optional value. ---

// Entry stores at most one value under addr.
type Entry struct {
	view *storage.View
}

var entryKey = []byte{}

// NewEntry opens an Entry at addr.
func NewEntry(src Source, addr storage.IndexAddress) *Entry {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindEntry)
	return &Entry{view: v}
}

// Get returns the stored value, if any.
func (e *Entry) Get() ([]byte, bool) { return e.view.Get(entryKey) }

// Exists reports whether a value is stored.
func (e *Entry) Exists() bool { return e.view.Contains(entryKey) }

// Set stores value, overwriting any previous one.
func (e *Entry) Set(value []byte) { e.view.Put(entryKey, value) }

// Remove clears the stored value.
func (e *Entry) Remove() { e.view.Delete(entryKey) }

// --- MapIndex: arbitrary key/value pairs. ---

// MapIndex is a thin View adapter with arbitrary byte keys.
type MapIndex struct {
	view *storage.View
}

// NewMapIndex opens a MapIndex at addr.
func NewMapIndex(src Source, addr storage.IndexAddress) *MapIndex {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindMap)
	return &MapIndex{view: v}
}

func (m *MapIndex) Get(key []byte) ([]byte, bool) { return m.view.Get(key) }
func (m *MapIndex) Contains(key []byte) bool       { return m.view.Contains(key) }
func (m *MapIndex) Put(key, value []byte)          { m.view.Put(key, value) }
func (m *MapIndex) Remove(key []byte)              { m.view.Delete(key) }
func (m *MapIndex) Clear()                         { m.view.Clear() }
func (m *MapIndex) Iterate(from []byte) storage.Iterator { return m.view.Iterate(from) }

// --- KeySetIndex: a set of keys with no associated value. ---

// KeySetIndex stores elements as keys with empty values (exonum's
// key_set_index.rs).
type KeySetIndex struct {
	view *storage.View
}

// NewKeySetIndex opens a KeySetIndex at addr.
func NewKeySetIndex(src Source, addr storage.IndexAddress) *KeySetIndex {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindKeySet)
	return &KeySetIndex{view: v}
}

func (s *KeySetIndex) Contains(item []byte) bool { return s.view.Contains(item) }
func (s *KeySetIndex) Insert(item []byte)        { s.view.Put(item, []byte{}) }
func (s *KeySetIndex) Remove(item []byte)        { s.view.Delete(item) }
func (s *KeySetIndex) Clear()                    { s.view.Clear() }

// Iterate yields the set's elements in ascending order.
func (s *KeySetIndex) Iterate() storage.Iterator { return s.view.Iterate(nil) }

// --- ValueSetIndex: a set of values keyed by their digest. ---

// ValueSetIndex stores values keyed by storage.HashValue(value), so
// arbitrary (possibly large) values can be tested for set membership
// without needing them to double as comparable map keys.
type ValueSetIndex struct {
	view *storage.View
}

// NewValueSetIndex opens a ValueSetIndex at addr.
func NewValueSetIndex(src Source, addr storage.IndexAddress) *ValueSetIndex {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindValueSet)
	return &ValueSetIndex{view: v}
}

func (s *ValueSetIndex) Contains(value []byte) bool {
	h := storage.HashValue(value)
	return s.view.Contains(h.Bytes())
}

func (s *ValueSetIndex) Insert(value []byte) {
	h := storage.HashValue(value)
	s.view.Put(h.Bytes(), value)
}

func (s *ValueSetIndex) Remove(value []byte) {
	h := storage.HashValue(value)
	s.view.Delete(h.Bytes())
}

func (s *ValueSetIndex) Clear() { s.view.Clear() }

// Iterate yields (hash, value) pairs in ascending hash order.
func (s *ValueSetIndex) Iterate() storage.Iterator { return s.view.Iterate(nil) }

// --- ListIndex: an append-only indexed sequence. ---

const (
	listLenTag  = byte(0)
	listElemTag = byte(1)
)

func listLenKey() []byte { return []byte{listLenTag} }

func listElemKey(i uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = listElemTag
	binary.BigEndian.PutUint64(buf[1:], i)
	return buf
}

// ListIndex is a dense, append-only list addressed by position.
type ListIndex struct {
	view *storage.View
}

// NewListIndex opens a ListIndex at addr.
func NewListIndex(src Source, addr storage.IndexAddress) *ListIndex {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindList)
	return &ListIndex{view: v}
}

// Len returns the number of elements.
func (l *ListIndex) Len() uint64 {
	raw, ok := l.view.Get(listLenKey())
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func (l *ListIndex) setLen(n uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	l.view.Put(listLenKey(), buf)
}

// Get returns the element at index i.
func (l *ListIndex) Get(i uint64) ([]byte, bool) {
	if i >= l.Len() {
		return nil, false
	}
	return l.view.Get(listElemKey(i))
}

// Set overwrites the element at index i (i must be < Len()).
func (l *ListIndex) Set(i uint64, value []byte) {
	if i >= l.Len() {
		panic("indexes: ListIndex.Set index out of range")
	}
	l.view.Put(listElemKey(i), value)
}

// Push appends value, growing the list by one.
func (l *ListIndex) Push(value []byte) {
	n := l.Len()
	l.view.Put(listElemKey(n), value)
	l.setLen(n + 1)
}

// Pop removes and returns the last element, if any.
func (l *ListIndex) Pop() ([]byte, bool) {
	n := l.Len()
	if n == 0 {
		return nil, false
	}
	val, _ := l.view.Get(listElemKey(n - 1))
	l.view.Delete(listElemKey(n - 1))
	l.setLen(n - 1)
	return val, true
}

// Clear empties the list.
func (l *ListIndex) Clear() { l.view.Clear() }

// --- SparseListIndex: an indexed list that tolerates gaps. ---

// SparseListIndex allows removing individual elements by index without
// shifting the rest: a removed slot reads back as absent (a tombstone)
// rather than shrinking the index space. Capacity tracks one past the
// highest index ever assigned.
type SparseListIndex struct {
	view *storage.View
}

// NewSparseListIndex opens a SparseListIndex at addr.
func NewSparseListIndex(src Source, addr storage.IndexAddress) *SparseListIndex {
	v := src.View(addr)
	ensureOrCheck(src, v, addr, storage.IndexKindSparseList)
	return &SparseListIndex{view: v}
}

// Capacity returns one past the highest index ever assigned.
func (s *SparseListIndex) Capacity() uint64 {
	raw, ok := s.view.Get(listLenKey())
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

func (s *SparseListIndex) setCapacity(n uint64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	s.view.Put(listLenKey(), buf)
}

// Get returns the element at index i, or ok=false if never set or
// removed.
func (s *SparseListIndex) Get(i uint64) ([]byte, bool) { return s.view.Get(listElemKey(i)) }

// Set stores value at index i, growing capacity if needed.
func (s *SparseListIndex) Set(i uint64, value []byte) {
	s.view.Put(listElemKey(i), value)
	if cap := s.Capacity(); i >= cap {
		s.setCapacity(i + 1)
	}
}

// Remove tombstones the element at index i without affecting capacity.
func (s *SparseListIndex) Remove(i uint64) { s.view.Delete(listElemKey(i)) }

// Clear empties the list.
func (s *SparseListIndex) Clear() { s.view.Clear() }

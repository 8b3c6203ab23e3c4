package storage

import (
	"bytes"

	"github.com/coreledger/merkledb/internal/kv"
)

// Iterator is an ordered, finite, restartable-only-by-recreation sequence
// of (key, value) byte pairs, scoped to a single IndexAddress (its family
// prefix, if any, is already stripped from Key()).
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
}

// addressIterator adapts a raw kv.Iterator over a table to a single
// IndexAddress's family-scoped range, stripping the family prefix from
// returned keys and stopping once a physical key no longer starts with it.
type addressIterator struct {
	raw    kv.Iterator
	prefix []byte
	done   bool
}

func newAddressIterator(eng kv.Reader, addr IndexAddress, from []byte) *addressIterator {
	raw := eng.Iterate(addr.Name, addr.prefixedKey(from))
	return &addressIterator{raw: raw, prefix: addr.Bytes}
}

func (it *addressIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.raw.Next() {
		it.done = true
		return false
	}
	if len(it.prefix) > 0 && !bytes.HasPrefix(it.raw.Key(), it.prefix) {
		it.done = true
		return false
	}
	return true
}

func (it *addressIterator) Key() []byte {
	return it.raw.Key()[len(it.prefix):]
}

func (it *addressIterator) Value() []byte {
	return it.raw.Value()
}

// changesIterator walks a ViewChanges' recorded entries (already stripped
// to user keys, in ascending order) from a starting point.
type changesIterator struct {
	entries []entry
	pos     int
}

func newChangesIterator(vc *ViewChanges, from []byte) *changesIterator {
	return &changesIterator{entries: vc.Range(from)}
}

func (it *changesIterator) Next() bool {
	if it.pos >= len(it.entries) {
		return false
	}
	it.pos++
	return true
}

func (it *changesIterator) Key() []byte   { return it.entries[it.pos-1].key }
func (it *changesIterator) change() Change { return it.entries[it.pos-1].change }

// mergeIterator merges, in ordered lock-step, a filtered snapshot
// iterator and a ViewChanges range iterator, suppressing snapshot entries
// shadowed by a Put or Delete recorded in changes. It is a stateful
// merge-peek rather than a materialized list, keeping memory bounded to
// the two current heads.
type mergeIterator struct {
	snap    *addressIterator
	changes *changesIterator

	snapValid    bool
	changesValid bool

	key   []byte
	value []byte
}

func newMergeIterator(snap *addressIterator, changes *changesIterator) *mergeIterator {
	m := &mergeIterator{snap: snap, changes: changes}
	m.snapValid = snap.Next()
	m.changesValid = changes.Next()
	return m
}

func (m *mergeIterator) Next() bool {
	for {
		switch {
		case !m.snapValid && !m.changesValid:
			return false

		case !m.snapValid:
			// Only changes remain.
			c := m.changes.change()
			key := append([]byte(nil), m.changes.Key()...)
			m.changesValid = m.changes.Next()
			if c.IsDelete() {
				continue
			}
			m.key, m.value = key, c.Value()
			return true

		case !m.changesValid:
			m.key = append([]byte(nil), m.snap.Key()...)
			m.value = append([]byte(nil), m.snap.Value()...)
			m.snapValid = m.snap.Next()
			return true

		default:
			cmp := bytes.Compare(m.snap.Key(), m.changes.Key())
			switch {
			case cmp < 0:
				m.key = append([]byte(nil), m.snap.Key()...)
				m.value = append([]byte(nil), m.snap.Value()...)
				m.snapValid = m.snap.Next()
				return true
			case cmp > 0:
				c := m.changes.change()
				key := append([]byte(nil), m.changes.Key()...)
				m.changesValid = m.changes.Next()
				if c.IsDelete() {
					continue
				}
				m.key, m.value = key, c.Value()
				return true
			default:
				// Same key: the change shadows the snapshot entry.
				c := m.changes.change()
				key := append([]byte(nil), m.changes.Key()...)
				m.snapValid = m.snap.Next()
				m.changesValid = m.changes.Next()
				if c.IsDelete() {
					continue
				}
				m.key, m.value = key, c.Value()
				return true
			}
		}
	}
}

func (m *mergeIterator) Key() []byte   { return m.key }
func (m *mergeIterator) Value() []byte { return m.value }

// emptyIterator never yields anything.
type emptyIterator struct{}

func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Key() []byte   { return nil }
func (emptyIterator) Value() []byte { return nil }

package storage

import (
	"github.com/coreledger/merkledb/internal/kv"
)

// View binds an IndexAddress to either a read-only Snapshot or a
// read/write Fork. Physical keys are formed as
// (address.Name, address.Bytes ++ user_key): the database stores Name as
// a logical table identifier and the concatenated bytes as the record key.
type View struct {
	addr    IndexAddress
	reader  kv.Reader
	changes *ViewChanges // nil for a Snapshot-backed (read-only) View
}

// Get reads key, consulting ViewChanges first (Put/Delete are
// authoritative) and falling through to the underlying reader unless the
// view has been emptied, in which case only ViewChanges may be seen.
func (v *View) Get(key []byte) ([]byte, bool) {
	if v.changes != nil {
		if c, ok := v.changes.Get(key); ok {
			if c.IsDelete() {
				return nil, false
			}
			return c.Value(), true
		}
		if v.changes.Emptied() {
			return nil, false
		}
	}
	val, err := v.reader.Get(v.addr.Name, v.addr.prefixedKey(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

// Contains reports whether key is present.
func (v *View) Contains(key []byte) bool {
	_, ok := v.Get(key)
	return ok
}

// Iterate returns an ascending iterator over keys >= from.
func (v *View) Iterate(from []byte) Iterator {
	if v.changes == nil {
		return newAddressIterator(v.reader, v.addr, from)
	}
	if v.changes.Emptied() {
		return newChangesIteratorSkippingDeletes(v.changes, from)
	}
	snap := newAddressIterator(v.reader, v.addr, from)
	changes := newChangesIterator(v.changes, from)
	return newMergeIterator(snap, changes)
}

// changesOnlyIterator filters a raw changesIterator down to live (Put)
// entries, used when the view has been emptied and the snapshot side must
// be skipped entirely.
type changesOnlyIterator struct {
	inner *changesIterator
	key   []byte
	value []byte
}

func newChangesIteratorSkippingDeletes(vc *ViewChanges, from []byte) *changesOnlyIterator {
	return &changesOnlyIterator{inner: newChangesIterator(vc, from)}
}

func (it *changesOnlyIterator) Next() bool {
	for it.inner.Next() {
		c := it.inner.change()
		if c.IsDelete() {
			continue
		}
		it.key = it.inner.Key()
		it.value = c.Value()
		return true
	}
	return false
}

func (it *changesOnlyIterator) Key() []byte   { return it.key }
func (it *changesOnlyIterator) Value() []byte { return it.value }

// --- Mutation: only meaningful on a Fork-backed View. ---

// mustBeWritable panics if this View is backed by a read-only Snapshot.
// Mutating a Snapshot is a programmer error (spec section 7).
func (v *View) mustBeWritable() {
	if v.changes == nil {
		panic("storage: mutation attempted on a read-only (Snapshot) view")
	}
}

// Put records a Put change for key. ViewChanges is keyed in user-key
// space; the family prefix (if any) is applied only when the change is
// eventually written to the physical reader at merge time.
func (v *View) Put(key, value []byte) {
	v.mustBeWritable()
	v.changes.Put(key, value)
}

// Delete records a Delete change for key.
func (v *View) Delete(key []byte) {
	v.mustBeWritable()
	v.changes.Delete(key)
}

// Clear drops all pending changes for this view and marks it emptied: at
// merge time the physical keyspace for this view is wiped before the
// (possibly empty) subsequent change set is applied. Whether Clear also
// erases the view's IndexMetadata entry is an open question the original
// implementation leaves unresolved; this implementation follows it and
// leaves metadata in place (see DESIGN.md).
func (v *View) Clear() {
	v.mustBeWritable()
	v.changes.Clear()
}

// Checkpoint pushes a savepoint.
func (v *View) Checkpoint() {
	v.mustBeWritable()
	v.changes.Checkpoint()
}

// Rollback restores the most recent savepoint, discarding mutations made
// since it was taken.
func (v *View) Rollback() {
	v.mustBeWritable()
	v.changes.Rollback()
}

// CommitCheckpoint discards the most recent savepoint without restoring
// it, making the intervening mutations permanent.
func (v *View) CommitCheckpoint() {
	v.mustBeWritable()
	v.changes.CommitCheckpoint()
}

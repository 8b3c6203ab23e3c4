package storage

import (
	"bytes"
	"sort"

	"github.com/coreledger/merkledb/internal/log"
)

var changesLog = log.Default().Subsystem("storage")

// changeKind tags a Change as a Put or a Delete.
type changeKind uint8

const (
	changePut changeKind = iota
	changeDelete
)

// Change is a tagged union: Put(bytes) or Delete.
type Change struct {
	kind  changeKind
	value []byte
}

// PutChange constructs a Put change carrying value.
func PutChange(value []byte) Change {
	return Change{kind: changePut, value: append([]byte(nil), value...)}
}

// DeleteChange constructs a Delete change.
func DeleteChange() Change {
	return Change{kind: changeDelete}
}

// IsDelete reports whether this change is a Delete.
func (c Change) IsDelete() bool { return c.kind == changeDelete }

// Value returns the Put payload. Only meaningful when !IsDelete().
func (c Change) Value() []byte { return c.value }

// entry pairs a raw physical key with its pending Change, kept in the
// order ViewChanges needs to emit an ascending scan.
type entry struct {
	key    []byte
	change Change
}

// ViewChanges is the per-index in-memory delta buffer held by a Fork: an
// ordered mapping from raw key bytes to Change, plus a savepoint stack
// supporting checkpoint/rollback/commit-checkpoint, plus an emptied flag
// set by Clear.
type ViewChanges struct {
	byKey    map[string]int // raw key -> index into entries
	entries  []entry        // insertion-order storage; byKey indexes into it
	emptied  bool
	snapshots []viewChangesSnapshot
}

// viewChangesSnapshot is a deep-enough copy of ViewChanges' mutable state
// to restore on Rollback.
type viewChangesSnapshot struct {
	byKey   map[string]int
	entries []entry
	emptied bool
}

// NewViewChanges creates an empty change buffer.
func NewViewChanges() *ViewChanges {
	return &ViewChanges{byKey: make(map[string]int)}
}

// Put records a Put change for key, overwriting any prior change for the
// same key.
func (v *ViewChanges) Put(key, value []byte) {
	v.set(key, PutChange(value))
}

// Delete records a Delete change for key.
func (v *ViewChanges) Delete(key []byte) {
	v.set(key, DeleteChange())
}

func (v *ViewChanges) set(key []byte, c Change) {
	k := string(key)
	if idx, ok := v.byKey[k]; ok {
		v.entries[idx].change = c
		return
	}
	v.byKey[k] = len(v.entries)
	v.entries = append(v.entries, entry{key: append([]byte(nil), key...), change: c})
}

// Get looks up the pending change for key, if any.
func (v *ViewChanges) Get(key []byte) (Change, bool) {
	idx, ok := v.byKey[string(key)]
	if !ok {
		return Change{}, false
	}
	return v.entries[idx].change, true
}

// Clear sets emptied and drops all pending changes. At merge time the
// physical keyspace for this view is wiped before the (possibly empty)
// change set recorded after Clear is applied.
func (v *ViewChanges) Clear() {
	v.emptied = true
	v.byKey = make(map[string]int)
	v.entries = nil
}

// Emptied reports whether Clear has been called on this buffer.
func (v *ViewChanges) Emptied() bool { return v.emptied }

// Range returns the recorded entries with key >= from, in ascending key
// order, as a stable slice snapshot (safe for the caller to hold across
// further mutation of v).
func (v *ViewChanges) Range(from []byte) []entry {
	out := make([]entry, 0, len(v.entries))
	for _, e := range v.entries {
		if from == nil || bytes.Compare(e.key, from) >= 0 {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key, out[j].key) < 0 })
	return out
}

// Checkpoint pushes a snapshot of the current state onto the savepoint
// stack.
func (v *ViewChanges) Checkpoint() {
	byKeyCopy := make(map[string]int, len(v.byKey))
	for k, idx := range v.byKey {
		byKeyCopy[k] = idx
	}
	entriesCopy := make([]entry, len(v.entries))
	copy(entriesCopy, v.entries)
	v.snapshots = append(v.snapshots, viewChangesSnapshot{
		byKey:   byKeyCopy,
		entries: entriesCopy,
		emptied: v.emptied,
	})
}

// Rollback pops the most recent savepoint and restores it, discarding
// every mutation made since the matching Checkpoint. It is a no-op if no
// checkpoint is pending.
func (v *ViewChanges) Rollback() {
	n := len(v.snapshots)
	if n == 0 {
		return
	}
	snap := v.snapshots[n-1]
	v.snapshots = v.snapshots[:n-1]
	v.byKey = snap.byKey
	v.entries = snap.entries
	v.emptied = snap.emptied
	changesLog.Debug("rollback", "depth", n-1)
}

// CommitCheckpoint pops the most recent savepoint without restoring it,
// making the mutations made since the matching Checkpoint permanent.
func (v *ViewChanges) CommitCheckpoint() {
	n := len(v.snapshots)
	if n == 0 {
		return
	}
	v.snapshots = v.snapshots[:n-1]
}

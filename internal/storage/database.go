package storage

import (
	"bytes"

	"github.com/cockroachdb/errors"

	"github.com/coreledger/merkledb/internal/kv"
	"github.com/coreledger/merkledb/internal/log"
)

// Database is the top-level handle over a physical kv.Engine. It produces
// Snapshots and Forks and is the only way a Patch is ever applied.
type Database struct {
	engine kv.Engine
	log    *log.Logger
}

// NewDatabase wraps a physical engine.
func NewDatabase(engine kv.Engine) *Database {
	return &Database{engine: engine, log: log.Default().Subsystem("storage")}
}

// Snapshot takes an immutable, point-in-time read view.
func (d *Database) Snapshot() *Snapshot {
	return &Snapshot{reader: d.engine.NewSnapshot()}
}

// Fork takes a point-in-time read view plus a writable change buffer.
func (d *Database) Fork() *Fork {
	d.log.Debug("fork created")
	return newFork(d.engine.NewSnapshot())
}

// Merge atomically applies every ViewChanges recorded in patch to the
// physical engine. A Snapshot taken before Merge returns never observes
// the result (section 5/8.8 isolation). patch may be applied at most once.
func (d *Database) Merge(patch *Patch) error {
	if patch.applied {
		panic("storage: Patch applied more than once")
	}
	patch.applied = true

	batch := d.engine.NewBatch()
	for _, e := range patch.entries {
		if err := d.applyEntry(batch, e.addr, e.changes); err != nil {
			d.log.Error("merge failed while staging address", "address", e.addr.Name, "error", err)
			return errors.Wrapf(err, "storage: merging address %q", e.addr.Name)
		}
	}
	if err := batch.Commit(); err != nil {
		d.log.Error("merge batch commit failed", "error", err)
		return errors.Wrap(err, "storage: committing merge batch")
	}
	d.log.Debug("merge committed", "addresses", len(patch.entries))
	return nil
}

// applyEntry stages one address's changes into batch. An emptied
// ViewChanges must first wipe exactly the address's own keyspace: the
// whole table when the address owns it outright (no family bytes), or
// only the family-prefixed keys when the table is shared with sibling
// families, enumerated off the current physical state.
func (d *Database) applyEntry(batch kv.WriteBatch, addr IndexAddress, vc *ViewChanges) error {
	if vc.Emptied() {
		if len(addr.Bytes) == 0 {
			batch.DeleteRange(addr.Name)
		} else {
			if err := d.deleteFamilyRange(batch, addr); err != nil {
				return err
			}
		}
	}
	for _, e := range vc.entries {
		physicalKey := addr.prefixedKey(e.key)
		if e.change.IsDelete() {
			batch.Delete(addr.Name, physicalKey)
		} else {
			batch.Put(addr.Name, physicalKey, e.change.Value())
		}
	}
	return nil
}

// deleteFamilyRange enumerates every physical key presently under addr's
// family prefix and stages a Delete for each, leaving sibling families in
// the same table untouched.
func (d *Database) deleteFamilyRange(batch kv.WriteBatch, addr IndexAddress) error {
	it := d.engine.Iterate(addr.Name, addr.Bytes)
	for it.Next() {
		key := it.Key()
		if !bytes.HasPrefix(key, addr.Bytes) {
			break
		}
		batch.Delete(addr.Name, append([]byte(nil), key...))
	}
	return it.Close()
}

package kv

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// DiskOptions configures the Pebble-backed on-disk engine.
type DiskOptions struct {
	// Dir is the directory Pebble stores its files in.
	Dir string
	// CacheSizeMB sizes Pebble's block cache. Zero uses Pebble's default.
	CacheSizeMB int
	// MaxOpenFiles bounds the number of files Pebble may hold open at
	// once. Zero uses Pebble's default.
	MaxOpenFiles int
}

// tableSeparator delimits a table name from the user key in the physical
// key space. Table names are dot-separated ASCII segments and never
// contain a NUL byte, so this never collides with a real key prefix.
const tableSeparator = 0x00

// physicalKey builds the on-disk key for (table, key): table ++ 0x00 ++ key.
func physicalKey(table string, key []byte) []byte {
	buf := make([]byte, 0, len(table)+1+len(key))
	buf = append(buf, table...)
	buf = append(buf, tableSeparator)
	buf = append(buf, key...)
	return buf
}

// tableBounds returns the [lower, upper) physical key range that covers
// every key stored under table, with lower starting at from (nil means the
// start of the table).
func tableBounds(table string, from []byte) (lower, upper []byte) {
	lower = physicalKey(table, from)
	upper = append([]byte(table), tableSeparator+1)
	return lower, upper
}

// pebbleReader is satisfied by both *pebble.DB and *pebble.Snapshot, so
// Get/Iterate can be shared between the live engine and its snapshots.
type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func pebbleGet(r pebbleReader, table string, key []byte) ([]byte, error) {
	v, closer, err := r.Get(physicalKey(table, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func pebbleHas(r pebbleReader, table string, key []byte) (bool, error) {
	_, err := pebbleGet(r, table, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func pebbleIterate(r pebbleReader, table string, from []byte) Iterator {
	lower, upper := tableBounds(table, from)
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return &diskIterator{done: true}
	}
	return &diskIterator{it: it}
}

// DiskEngine is an Engine backed by a single Pebble instance, with tables
// folded into the physical key since Pebble has no column families.
type DiskEngine struct {
	db *pebble.DB
}

// OpenDiskEngine opens (creating if necessary) a Pebble store at opts.Dir.
func OpenDiskEngine(opts DiskOptions) (*DiskEngine, error) {
	popts := &pebble.Options{}
	if opts.CacheSizeMB > 0 {
		popts.Cache = pebble.NewCache(int64(opts.CacheSizeMB) << 20)
	}
	if opts.MaxOpenFiles > 0 {
		popts.MaxOpenFiles = opts.MaxOpenFiles
	}
	db, err := pebble.Open(opts.Dir, popts)
	if err != nil {
		return nil, errors.Wrapf(err, "kv: open pebble at %q", opts.Dir)
	}
	return &DiskEngine{db: db}, nil
}

func (d *DiskEngine) Get(table string, key []byte) ([]byte, error) {
	return pebbleGet(d.db, table, key)
}

func (d *DiskEngine) Has(table string, key []byte) (bool, error) {
	return pebbleHas(d.db, table, key)
}

func (d *DiskEngine) Iterate(table string, from []byte) Iterator {
	return pebbleIterate(d.db, table, from)
}

// NewSnapshot takes a Pebble snapshot: a consistent, immutable point-in-time
// view that does not observe writes committed after this call.
func (d *DiskEngine) NewSnapshot() Snapshot {
	return &diskSnapshot{snap: d.db.NewSnapshot()}
}

func (d *DiskEngine) Close() error {
	return d.db.Close()
}

// diskSnapshot wraps a *pebble.Snapshot as a kv.Snapshot.
type diskSnapshot struct {
	snap *pebble.Snapshot
}

func (s *diskSnapshot) Get(table string, key []byte) ([]byte, error) {
	return pebbleGet(s.snap, table, key)
}

func (s *diskSnapshot) Has(table string, key []byte) (bool, error) {
	return pebbleHas(s.snap, table, key)
}

func (s *diskSnapshot) Iterate(table string, from []byte) Iterator {
	return pebbleIterate(s.snap, table, from)
}

func (s *diskSnapshot) Close() error {
	return s.snap.Close()
}

type diskIterator struct {
	it   *pebble.Iterator
	ok   bool
	done bool
}

func (it *diskIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.ok {
		it.ok = it.it.First()
	} else {
		it.ok = it.it.Next()
	}
	if !it.ok {
		it.done = true
	}
	return it.ok
}

func (it *diskIterator) Key() []byte {
	// Strip the "table\x00" prefix up to and including the separator.
	k := it.it.Key()
	for i, b := range k {
		if b == tableSeparator {
			return append([]byte(nil), k[i+1:]...)
		}
	}
	return append([]byte(nil), k...)
}

func (it *diskIterator) Value() []byte {
	return append([]byte(nil), it.it.Value()...)
}

func (it *diskIterator) Close() error {
	return it.it.Close()
}

// diskBatch adapts a pebble.Batch, additionally supporting DeleteRange by
// table via Pebble's native range-delete.
type diskBatch struct {
	batch *pebble.Batch
}

func (d *DiskEngine) NewBatch() WriteBatch {
	return &diskBatch{batch: d.db.NewBatch()}
}

func (b *diskBatch) Put(table string, key, value []byte) {
	_ = b.batch.Set(physicalKey(table, key), value, nil)
}

func (b *diskBatch) Delete(table string, key []byte) {
	_ = b.batch.Delete(physicalKey(table, key), nil)
}

func (b *diskBatch) DeleteRange(table string) {
	lower, upper := tableBounds(table, nil)
	_ = b.batch.DeleteRange(lower, upper, nil)
}

func (b *diskBatch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

package kv

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// btreeDegree mirrors the degree erigon uses for its in-memory history
// B-trees (core/state/history_reader_v3.go: btree.New(16)).
const btreeDegree = 16

// kvItem is a single key/value pair stored as a btree.Item, ordered by the
// raw key bytes.
type kvItem struct {
	key   []byte
	value []byte
}

func (a kvItem) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(kvItem).key) < 0
}

func getFrom(tables map[string]*btree.BTree, table string, key []byte) ([]byte, error) {
	t := tables[table]
	if t == nil {
		return nil, ErrNotFound
	}
	item := t.Get(kvItem{key: key})
	if item == nil {
		return nil, ErrNotFound
	}
	return item.(kvItem).value, nil
}

func iterateFrom(tables map[string]*btree.BTree, table string, from []byte) Iterator {
	t := tables[table]
	if t == nil {
		return &memIterator{}
	}
	items := make([]kvItem, 0, t.Len())
	t.AscendGreaterOrEqual(kvItem{key: from}, func(i btree.Item) bool {
		items = append(items, i.(kvItem))
		return true
	})
	return &memIterator{items: items}
}

// MemEngine is an in-memory Engine backed by one B-tree per table. Tables
// use google/btree's copy-on-write trees (the same package and degree
// erigon's history reader uses) so NewSnapshot is an O(1) Clone per table
// rather than a deep copy.
type MemEngine struct {
	mu     sync.RWMutex
	tables map[string]*btree.BTree
}

// NewMemEngine creates an empty in-memory engine.
func NewMemEngine() *MemEngine {
	return &MemEngine{tables: make(map[string]*btree.BTree)}
}

func (m *MemEngine) Get(table string, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getFrom(m.tables, table, key)
}

func (m *MemEngine) Has(table string, key []byte) (bool, error) {
	_, err := m.Get(table, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *MemEngine) Iterate(table string, from []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return iterateFrom(m.tables, table, from)
}

// NewSnapshot clones every table's B-tree (O(1), copy-on-write) and
// returns an isolated Reader over that fixed point in time: later writes
// to m apply copy-on-write to fresh nodes and never mutate the cloned
// snapshot's view.
func (m *MemEngine) NewSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clone := make(map[string]*btree.BTree, len(m.tables))
	for name, t := range m.tables {
		clone[name] = t.Clone()
	}
	return &memSnapshot{tables: clone}
}

func (m *MemEngine) Close() error { return nil }

// memSnapshot is an immutable Reader over a fixed set of cloned B-trees.
type memSnapshot struct {
	tables map[string]*btree.BTree
}

func (s *memSnapshot) Get(table string, key []byte) ([]byte, error) {
	return getFrom(s.tables, table, key)
}

func (s *memSnapshot) Has(table string, key []byte) (bool, error) {
	_, err := s.Get(table, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *memSnapshot) Iterate(table string, from []byte) Iterator {
	return iterateFrom(s.tables, table, from)
}

func (s *memSnapshot) Close() error { return nil }

// memIterator snapshots matching keys at creation time so callers can
// safely mutate the engine while iterating (the underlying B-tree nodes
// are not safe to mutate mid-walk otherwise).
type memIterator struct {
	items []kvItem
	pos   int
}

func (it *memIterator) Next() bool {
	if it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Key() []byte   { return it.items[it.pos-1].key }
func (it *memIterator) Value() []byte { return it.items[it.pos-1].value }
func (it *memIterator) Close() error  { return nil }

// memBatch records table/key mutations and applies them atomically by
// holding MemEngine.mu for the duration of Commit.
type memBatch struct {
	eng *MemEngine
	ops []memOp
}

type memOp struct {
	table    string
	key      []byte
	value    []byte
	del      bool
	delRange bool
}

func (m *MemEngine) NewBatch() WriteBatch {
	return &memBatch{eng: m}
}

func (b *memBatch) Put(table string, key, value []byte) {
	cp := append([]byte(nil), value...)
	b.ops = append(b.ops, memOp{table: table, key: append([]byte(nil), key...), value: cp})
}

func (b *memBatch) Delete(table string, key []byte) {
	b.ops = append(b.ops, memOp{table: table, key: append([]byte(nil), key...), del: true})
}

func (b *memBatch) DeleteRange(table string) {
	b.ops = append(b.ops, memOp{table: table, delRange: true})
}

func (b *memBatch) Commit() error {
	b.eng.mu.Lock()
	defer b.eng.mu.Unlock()
	for _, op := range b.ops {
		switch {
		case op.delRange:
			b.eng.tables[op.table] = btree.New(btreeDegree)
		case op.del:
			if t := b.eng.tables[op.table]; t != nil {
				t.Delete(kvItem{key: op.key})
			}
		default:
			t := b.eng.tables[op.table]
			if t == nil {
				t = btree.New(btreeDegree)
				b.eng.tables[op.table] = t
			}
			t.ReplaceOrInsert(kvItem{key: op.key, value: op.value})
		}
	}
	return nil
}

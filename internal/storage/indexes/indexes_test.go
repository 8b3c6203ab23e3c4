package indexes

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/coreledger/merkledb/internal/kv"
	"github.com/coreledger/merkledb/internal/storage"
)

func u64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// TestForkThenMergeListIndexS4 is seed scenario S4: fork, push 1 into a
// list index named "wallets", merge; snapshot read of index 0 = 1; fork
// again, push 2, merge; snapshot reads 0 = 1, 1 = 2.
func TestForkThenMergeListIndexS4(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	addr := storage.NewAddress("wallets")

	fork := db.Fork()
	NewListIndex(fork, addr).Push(u64(1))
	if err := db.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := db.Snapshot()
	l := NewListIndex(snap, addr)
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	v, ok := l.Get(0)
	if !ok || binary.BigEndian.Uint64(v) != 1 {
		t.Errorf("index 0 = %v, %v, want 1, true", v, ok)
	}
	snap.Close()

	fork2 := db.Fork()
	NewListIndex(fork2, addr).Push(u64(2))
	if err := db.Merge(fork2.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap2 := db.Snapshot()
	defer snap2.Close()
	l2 := NewListIndex(snap2, addr)
	if l2.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l2.Len())
	}
	v0, _ := l2.Get(0)
	v1, _ := l2.Get(1)
	if binary.BigEndian.Uint64(v0) != 1 || binary.BigEndian.Uint64(v1) != 2 {
		t.Errorf("got [%d %d], want [1 2]", binary.BigEndian.Uint64(v0), binary.BigEndian.Uint64(v1))
	}
}

func TestListIndexPushPop(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	l := NewListIndex(fork, storage.NewAddress("l"))

	l.Push([]byte("a"))
	l.Push([]byte("b"))
	l.Push([]byte("c"))
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}

	v, ok := l.Pop()
	if !ok || string(v) != "c" {
		t.Errorf("Pop() = %q, %v, want c, true", v, ok)
	}
	if l.Len() != 2 {
		t.Errorf("Len() after pop = %d, want 2", l.Len())
	}

	l.Set(0, []byte("z"))
	got, _ := l.Get(0)
	if string(got) != "z" {
		t.Errorf("Get(0) after Set = %q, want z", got)
	}
}

func TestListIndexSetOutOfRangePanics(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	l := NewListIndex(fork, storage.NewAddress("l"))

	defer func() {
		if r := recover(); r == nil {
			t.Error("Set beyond Len() should panic")
		}
	}()
	l.Set(0, []byte("x"))
}

func TestEntry(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	e := NewEntry(fork, storage.NewAddress("singleton"))

	if e.Exists() {
		t.Error("Entry should not exist before Set")
	}
	e.Set([]byte("v"))
	got, ok := e.Get()
	if !ok || string(got) != "v" {
		t.Errorf("Get() = %q, %v, want v, true", got, ok)
	}
	e.Remove()
	if e.Exists() {
		t.Error("Entry should not exist after Remove")
	}
}

func TestMapIndex(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	m := NewMapIndex(fork, storage.NewAddress("m"))

	m.Put([]byte("k1"), []byte("v1"))
	m.Put([]byte("k2"), []byte("v2"))
	if !m.Contains([]byte("k1")) {
		t.Error("k1 should be present")
	}
	m.Remove([]byte("k1"))
	if m.Contains([]byte("k1")) {
		t.Error("k1 should be gone after Remove")
	}
	v, ok := m.Get([]byte("k2"))
	if !ok || !bytes.Equal(v, []byte("v2")) {
		t.Errorf("k2 = %q, %v, want v2, true", v, ok)
	}
}

func TestKeySetIndex(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	s := NewKeySetIndex(fork, storage.NewAddress("s"))

	s.Insert([]byte("x"))
	s.Insert([]byte("y"))
	if !s.Contains([]byte("x")) || !s.Contains([]byte("y")) {
		t.Error("both x and y should be present")
	}
	s.Remove([]byte("x"))
	if s.Contains([]byte("x")) {
		t.Error("x should be gone after Remove")
	}

	it := s.Iterate()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if len(got) != 1 || got[0] != "y" {
		t.Errorf("iterate = %v, want [y]", got)
	}
}

func TestValueSetIndex(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	s := NewValueSetIndex(fork, storage.NewAddress("vs"))

	s.Insert([]byte("payload-a"))
	s.Insert([]byte("payload-b"))
	if !s.Contains([]byte("payload-a")) {
		t.Error("payload-a should be present")
	}
	s.Remove([]byte("payload-a"))
	if s.Contains([]byte("payload-a")) {
		t.Error("payload-a should be gone after Remove")
	}
	if !s.Contains([]byte("payload-b")) {
		t.Error("payload-b should remain")
	}
}

func TestSparseListIndexTombstones(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	s := NewSparseListIndex(fork, storage.NewAddress("sl"))

	s.Set(0, []byte("a"))
	s.Set(5, []byte("f"))
	if s.Capacity() != 6 {
		t.Errorf("Capacity() = %d, want 6", s.Capacity())
	}

	s.Remove(0)
	if _, ok := s.Get(0); ok {
		t.Error("index 0 should read back absent after Remove")
	}
	if s.Capacity() != 6 {
		t.Errorf("Remove should not shrink capacity, got %d", s.Capacity())
	}
	v, ok := s.Get(5)
	if !ok || string(v) != "f" {
		t.Errorf("Get(5) = %q, %v, want f, true", v, ok)
	}
}

func TestIndexMetadataGuardAcrossKinds(t *testing.T) {
	db := storage.NewDatabase(kv.NewMemEngine())
	addr := storage.NewAddress("shared-name")
	fork := db.Fork()
	NewMapIndex(fork, addr)

	defer func() {
		if r := recover(); r == nil {
			t.Error("opening the same address as a different index kind should panic")
		}
	}()
	NewListIndex(fork, addr)
}

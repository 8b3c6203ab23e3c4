package kv

import (
	"bytes"
	"testing"
)

func openTestDiskEngine(t *testing.T) *DiskEngine {
	t.Helper()
	eng, err := OpenDiskEngine(DiskOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("OpenDiskEngine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestDiskEnginePutGet(t *testing.T) {
	eng := openTestDiskEngine(t)

	batch := eng.NewBatch()
	batch.Put("wallets", []byte("a"), []byte("1"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, err := eng.Get("wallets", []byte("a"))
	if err != nil || !bytes.Equal(v, []byte("1")) {
		t.Errorf("Get(a) = %q, %v, want 1, nil", v, err)
	}

	if _, err := eng.Get("wallets", []byte("missing")); err != ErrNotFound {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestDiskEngineIterateScopedToTable(t *testing.T) {
	eng := openTestDiskEngine(t)

	batch := eng.NewBatch()
	batch.Put("a", []byte("k1"), []byte("va1"))
	batch.Put("b", []byte("k1"), []byte("vb1"))
	batch.Put("a", []byte("k2"), []byte("va2"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	it := eng.Iterate("a", nil)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if err := it.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("iterate table a = %v, want [k1 k2]", keys)
	}
}

func TestDiskEngineSnapshotIsolation(t *testing.T) {
	eng := openTestDiskEngine(t)

	batch := eng.NewBatch()
	batch.Put("t", []byte("a"), []byte("1"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := eng.NewSnapshot()
	defer snap.Close()

	batch2 := eng.NewBatch()
	batch2.Put("t", []byte("a"), []byte("2"))
	if err := batch2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	v, err := snap.Get("t", []byte("a"))
	if err != nil || !bytes.Equal(v, []byte("1")) {
		t.Errorf("snapshot Get(a) = %q, %v, want 1, nil", v, err)
	}
	v, err = eng.Get("t", []byte("a"))
	if err != nil || !bytes.Equal(v, []byte("2")) {
		t.Errorf("live Get(a) = %q, %v, want 2, nil", v, err)
	}
}

func TestDiskEngineDeleteRangeScopedToTable(t *testing.T) {
	eng := openTestDiskEngine(t)

	batch := eng.NewBatch()
	batch.Put("a", []byte("k"), []byte("va"))
	batch.Put("b", []byte("k"), []byte("vb"))
	if err := batch.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	batch2 := eng.NewBatch()
	batch2.DeleteRange("a")
	if err := batch2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := eng.Get("a", []byte("k")); err != ErrNotFound {
		t.Errorf("table a should be wiped, got %v", err)
	}
	if _, err := eng.Get("b", []byte("k")); err != nil {
		t.Errorf("table b should be untouched, got %v", err)
	}
}

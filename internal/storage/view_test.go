package storage

import (
	"bytes"
	"testing"

	"github.com/coreledger/merkledb/internal/kv"
)

func TestViewPutGetOnFork(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	v := fork.View(NewAddress("a"))

	if _, ok := v.Get([]byte("k")); ok {
		t.Error("unwritten key should not be found")
	}
	v.Put([]byte("k"), []byte("v1"))
	got, ok := v.Get([]byte("k"))
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Errorf("got %q, %v, want v1, true", got, ok)
	}

	v.Delete([]byte("k"))
	if _, ok := v.Get([]byte("k")); ok {
		t.Error("key should be gone after Delete")
	}
}

func TestViewMutationOnSnapshotPanics(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	snap := db.Snapshot()
	defer snap.Close()
	v := snap.View(NewAddress("a"))

	defer func() {
		if r := recover(); r == nil {
			t.Error("Put on a Snapshot-backed View should panic")
		}
	}()
	v.Put([]byte("k"), []byte("v"))
}

// TestForkIsolationSnapshotBeforeMerge is property 8 (fork isolation): a Snapshot taken
// before merge(p) never observes any change recorded in p.
func TestForkIsolationSnapshotBeforeMerge(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	addr := NewAddress("a")

	fork := db.Fork()
	fork.View(addr).Put([]byte("k"), []byte("v1"))
	if err := db.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	before := db.Snapshot()
	defer before.Close()

	fork2 := db.Fork()
	fork2.View(addr).Put([]byte("k"), []byte("v2"))
	if err := db.Merge(fork2.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, ok := before.View(addr).Get([]byte("k"))
	if !ok || !bytes.Equal(got, []byte("v1")) {
		t.Errorf("snapshot taken before merge should see v1, got %q, %v", got, ok)
	}

	after := db.Snapshot()
	defer after.Close()
	got, ok = after.View(addr).Get([]byte("k"))
	if !ok || !bytes.Equal(got, []byte("v2")) {
		t.Errorf("snapshot taken after merge should see v2, got %q, %v", got, ok)
	}
}

// TestSavepointLawRollback is testable property 9 / seed scenario S5: checkpoint,
// mutate, rollback restores reads to their pre-checkpoint state.
func TestSavepointLawRollback(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	addr := NewAddress("a")
	fork := db.Fork()
	v := fork.View(addr)

	v.Put([]byte("a"), []byte("x"))
	v.Checkpoint()
	v.Put([]byte("a"), []byte("y"))
	v.Put([]byte("b"), []byte("z"))
	v.Rollback()

	got, ok := v.Get([]byte("a"))
	if !ok || !bytes.Equal(got, []byte("x")) {
		t.Errorf("a = %q, %v, want x, true", got, ok)
	}
	if _, ok := v.Get([]byte("b")); ok {
		t.Error("b should be absent after rollback")
	}
}

func TestCommitCheckpointKeepsMutations(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	v := fork.View(NewAddress("a"))

	v.Put([]byte("a"), []byte("x"))
	v.Checkpoint()
	v.Put([]byte("a"), []byte("y"))
	v.CommitCheckpoint()

	got, ok := v.Get([]byte("a"))
	if !ok || !bytes.Equal(got, []byte("y")) {
		t.Errorf("a = %q, %v, want y, true (commit should keep the mutation)", got, ok)
	}
}

func TestRollbackWithNoCheckpointIsNoop(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	v := fork.View(NewAddress("a"))
	v.Put([]byte("a"), []byte("x"))
	v.Rollback()

	got, ok := v.Get([]byte("a"))
	if !ok || !bytes.Equal(got, []byte("x")) {
		t.Errorf("rollback with no pending checkpoint should be a no-op, got %q, %v", got, ok)
	}
}

func TestViewClearEmptiesAndShadowsSnapshot(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	addr := NewAddress("a")

	seed := db.Fork()
	seed.View(addr).Put([]byte("a"), []byte("1"))
	seed.View(addr).Put([]byte("b"), []byte("2"))
	if err := db.Merge(seed.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	fork := db.Fork()
	v := fork.View(addr)
	if _, ok := v.Get([]byte("a")); !ok {
		t.Fatal("precondition: a should be visible before Clear")
	}
	v.Clear()
	if _, ok := v.Get([]byte("a")); ok {
		t.Error("a should not be visible after Clear, even though it exists in the snapshot")
	}
	v.Put([]byte("c"), []byte("3"))
	got, ok := v.Get([]byte("c"))
	if !ok || !bytes.Equal(got, []byte("3")) {
		t.Errorf("c = %q, %v, want 3, true (writes after Clear remain visible)", got, ok)
	}

	if err := db.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}
	final := db.Snapshot()
	defer final.Close()
	if final.Contains(addr, []byte("a")) || final.Contains(addr, []byte("b")) {
		t.Error("merge of an emptied view should wipe the physical keyspace")
	}
	if !final.Contains(addr, []byte("c")) {
		t.Error("c should be durable after merge")
	}
}

func TestForkIterateMergesSnapshotAndChanges(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	addr := NewAddress("a")

	seed := db.Fork()
	seed.View(addr).Put([]byte("a"), []byte("1"))
	seed.View(addr).Put([]byte("c"), []byte("3"))
	if err := db.Merge(seed.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	fork := db.Fork()
	v := fork.View(addr)
	v.Put([]byte("b"), []byte("2"))    // new, between a and c
	v.Put([]byte("a"), []byte("1.1")) // shadows the snapshot entry
	v.Delete([]byte("c"))              // suppresses the snapshot entry

	it := v.Iterate(nil)
	type pair struct{ k, val string }
	var got []pair
	for it.Next() {
		got = append(got, pair{string(it.Key()), string(it.Value())})
	}
	want := []pair{{"a", "1.1"}, {"b", "2"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestForkIterateWhenEmptiedSkipsSnapshot(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	addr := NewAddress("a")

	seed := db.Fork()
	seed.View(addr).Put([]byte("a"), []byte("1"))
	if err := db.Merge(seed.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	fork := db.Fork()
	v := fork.View(addr)
	v.Clear()
	v.Put([]byte("z"), []byte("9"))

	it := v.Iterate(nil)
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if len(keys) != 1 || keys[0] != "z" {
		t.Errorf("got %v, want [z]", keys)
	}
}

func TestFamilyAddressesAreIndependentViews(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	base := NewAddress("shared")
	famA := base.Family([]byte{1})
	famB := base.Family([]byte{2})

	fork := db.Fork()
	fork.View(famA).Put([]byte("k"), []byte("a"))
	fork.View(famB).Put([]byte("k"), []byte("b"))
	if err := db.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := db.Snapshot()
	defer snap.Close()
	va, _ := snap.Get(famA, []byte("k"))
	vb, _ := snap.Get(famB, []byte("k"))
	if !bytes.Equal(va, []byte("a")) || !bytes.Equal(vb, []byte("b")) {
		t.Errorf("family A = %q, family B = %q, want a, b", va, vb)
	}
}

func TestFamilyClearOnlyAffectsOwnFamily(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	base := NewAddress("shared")
	famA := base.Family([]byte{1})
	famB := base.Family([]byte{2})

	seed := db.Fork()
	seed.View(famA).Put([]byte("k"), []byte("a"))
	seed.View(famB).Put([]byte("k"), []byte("b"))
	if err := db.Merge(seed.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	fork := db.Fork()
	fork.View(famA).Clear()
	if err := db.Merge(fork.IntoPatch()); err != nil {
		t.Fatalf("merge: %v", err)
	}

	snap := db.Snapshot()
	defer snap.Close()
	if snap.Contains(famA, []byte("k")) {
		t.Error("famA should be cleared")
	}
	if !snap.Contains(famB, []byte("k")) {
		t.Error("famB should be untouched by famA's Clear")
	}
}

func TestForkUsedAfterIntoPatchPanics(t *testing.T) {
	db := NewDatabase(kv.NewMemEngine())
	fork := db.Fork()
	fork.IntoPatch()

	defer func() {
		if r := recover(); r == nil {
			t.Error("using a Fork after IntoPatch should panic")
		}
	}()
	fork.View(NewAddress("a"))
}

package storage

import "fmt"

// IndexKind identifies which generic index type owns an IndexAddress.
type IndexKind uint8

const (
	IndexKindMap IndexKind = iota + 1
	IndexKindList
	IndexKindEntry
	IndexKindValueSet
	IndexKindKeySet
	IndexKindSparseList
	IndexKindProofList
	IndexKindProofMap
)

var indexKindNames = map[IndexKind]string{
	IndexKindMap:        "Map",
	IndexKindList:       "List",
	IndexKindEntry:      "Entry",
	IndexKindValueSet:   "ValueSet",
	IndexKindKeySet:     "KeySet",
	IndexKindSparseList: "SparseList",
	IndexKindProofList:  "ProofList",
	IndexKindProofMap:   "ProofMap",
}

func (k IndexKind) String() string {
	if name, ok := indexKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IndexKind(%d)", uint8(k))
}

// IndexMetadata is the registry record persisted once per index name (the
// family discriminator is not part of its key, so one record covers every
// family member) the first time it is opened from a Fork.
type IndexMetadata struct {
	Kind      IndexKind
	HasFamily bool
}

// metadataAddress is the reserved namespace the registry lives under. No
// user-created index may use this Name.
var metadataAddress = NewAddress("__INDEX_METADATA__")

func encodeMetadata(m IndexMetadata) []byte {
	hasFamily := byte(0)
	if m.HasFamily {
		hasFamily = 1
	}
	return []byte{byte(m.Kind), hasFamily}
}

func decodeMetadata(b []byte) (IndexMetadata, bool) {
	if len(b) != 2 {
		return IndexMetadata{}, false
	}
	return IndexMetadata{Kind: IndexKind(b[0]), HasFamily: b[1] == 1}, true
}

// EnsureIndexMetadata validates addr against kind on a writable Fork. The
// first open of an address writes its registry entry; every later open
// checks kind and family-discriminator presence against what was recorded
// and panics on mismatch, per the reserved-namespace contract.
func EnsureIndexMetadata(fork *Fork, addr IndexAddress, kind IndexKind) {
	mv := fork.View(metadataAddress)
	key := []byte(addressKey(NewAddress(addr.Name)))
	hasFamily := len(addr.Bytes) > 0

	if raw, ok := mv.Get(key); ok {
		meta, valid := decodeMetadata(raw)
		if !valid {
			panic(fmt.Sprintf("storage: corrupt index metadata for %q", addr.Name))
		}
		checkMetadataMatch(addr, meta, kind, hasFamily)
		return
	}
	mv.Put(key, encodeMetadata(IndexMetadata{Kind: kind, HasFamily: hasFamily}))
}

// CheckIndexMetadata validates addr against kind on a read-only Snapshot.
// Snapshots never write: an address with no recorded entry yet (created by
// a Fork not yet merged) is accepted silently.
func CheckIndexMetadata(snap *Snapshot, addr IndexAddress, kind IndexKind) {
	mv := snap.View(metadataAddress)
	key := []byte(addressKey(NewAddress(addr.Name)))

	raw, ok := mv.Get(key)
	if !ok {
		return
	}
	meta, valid := decodeMetadata(raw)
	if !valid {
		panic(fmt.Sprintf("storage: corrupt index metadata for %q", addr.Name))
	}
	checkMetadataMatch(addr, meta, kind, len(addr.Bytes) > 0)
}

func checkMetadataMatch(addr IndexAddress, meta IndexMetadata, kind IndexKind, hasFamily bool) {
	if meta.Kind != kind {
		panic(fmt.Sprintf("storage: index %q previously created as %s, reopened as %s", addr.Name, meta.Kind, kind))
	}
	if meta.HasFamily != hasFamily {
		panic(fmt.Sprintf("storage: index %q family-discriminator mismatch on reopen", addr.Name))
	}
}

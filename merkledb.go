// Package merkledb is a small facade re-exporting the public surface of
// the storage engine: opening a database, taking snapshots and forks,
// and the Merkelized map built on top of them.
package merkledb

import (
	"github.com/coreledger/merkledb/internal/kv"
	"github.com/coreledger/merkledb/internal/proofmap"
	"github.com/coreledger/merkledb/internal/storage"
)

type (
	Database     = storage.Database
	Snapshot     = storage.Snapshot
	Fork         = storage.Fork
	Patch        = storage.Patch
	View         = storage.View
	IndexAddress = storage.IndexAddress
	IndexKind    = storage.IndexKind
	Hash         = storage.Hash

	ProofMap   = proofmap.ProofMap
	MapProof   = proofmap.MapProof
	ProofEntry = proofmap.ProofEntry
	ProofNode  = proofmap.ProofNode
)

const (
	IndexKindMap        = storage.IndexKindMap
	IndexKindList       = storage.IndexKindList
	IndexKindEntry      = storage.IndexKindEntry
	IndexKindValueSet   = storage.IndexKindValueSet
	IndexKindKeySet     = storage.IndexKindKeySet
	IndexKindSparseList = storage.IndexKindSparseList
	IndexKindProofList  = storage.IndexKindProofList
	IndexKindProofMap   = storage.IndexKindProofMap
)

var ZeroHash = storage.ZeroHash

// NewAddress builds an IndexAddress with no family discriminator.
func NewAddress(name string) IndexAddress { return storage.NewAddress(name) }

// OpenMemDatabase opens an in-memory Database, useful for tests and
// ephemeral state.
func OpenMemDatabase() *Database {
	return storage.NewDatabase(kv.NewMemEngine())
}

// OpenDiskDatabase opens a Pebble-backed Database at the given path.
func OpenDiskDatabase(opts kv.DiskOptions) (*Database, error) {
	engine, err := kv.OpenDiskEngine(opts)
	if err != nil {
		return nil, err
	}
	return storage.NewDatabase(engine), nil
}

// NewProofMap opens a ProofMap at addr over src, which must be a *Fork
// (for read/write access) or a *Snapshot (for read-only access).
func NewProofMap(src interface {
	View(addr IndexAddress) *View
}, addr IndexAddress) *ProofMap {
	return proofmap.NewProofMap(src, addr)
}

// VerifyProof checks proof against claimedRoot with no database access.
func VerifyProof(proof MapProof, claimedRoot Hash) error {
	return proofmap.Verify(proof, claimedRoot)
}

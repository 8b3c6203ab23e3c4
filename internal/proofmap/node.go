package proofmap

import (
	"fmt"

	"github.com/coreledger/merkledb/internal/storage"
)

// BranchNodeSize is the wire size of a BranchNode: two (hash, path) pairs.
const BranchNodeSize = 2 * (storage.HashLength + PathSize)

// BranchNode is the 132-byte wire image of an internal ProofMap node: a
// left and a right child, each a (path, hash) pair. Layout is
// left_hash(32) || right_hash(32) || left_path(34) || right_path(34).
type BranchNode struct {
	raw [BranchNodeSize]byte
}

const (
	leftHashOffset  = 0
	rightHashOffset = storage.HashLength
	leftPathOffset  = 2 * storage.HashLength
	rightPathOffset = 2*storage.HashLength + PathSize
)

// EmptyBranchNode returns a zeroed BranchNode.
func EmptyBranchNode() BranchNode {
	return BranchNode{}
}

func hashOffset(kind ChildKind) int {
	if kind == Right {
		return rightHashOffset
	}
	return leftHashOffset
}

func pathOffset(kind ChildKind) int {
	if kind == Right {
		return rightPathOffset
	}
	return leftPathOffset
}

// ChildHash returns the stored hash of the given side.
func (b *BranchNode) ChildHash(kind ChildKind) storage.Hash {
	off := hashOffset(kind)
	return storage.BytesToHash(b.raw[off : off+storage.HashLength])
}

// ChildPath returns the stored path of the given side.
func (b *BranchNode) ChildPath(kind ChildKind) ProofPath {
	off := pathOffset(kind)
	path, err := DeserializePath(b.raw[off : off+PathSize])
	if err != nil {
		panic("proofmap: corrupt BranchNode path: " + err.Error())
	}
	return path
}

// SetChildPath stores path on the given side.
func (b *BranchNode) SetChildPath(kind ChildKind, path ProofPath) {
	off := pathOffset(kind)
	wire := path.Serialize()
	copy(b.raw[off:off+PathSize], wire[:])
}

// SetChildHash stores hash on the given side.
func (b *BranchNode) SetChildHash(kind ChildKind, hash storage.Hash) {
	off := hashOffset(kind)
	copy(b.raw[off:off+storage.HashLength], hash.Bytes())
}

// SetChild stores both the path and the hash on the given side.
func (b *BranchNode) SetChild(kind ChildKind, path ProofPath, hash storage.Hash) {
	b.SetChildPath(kind, path)
	b.SetChildHash(kind, hash)
}

// Bytes returns the raw 132-byte wire image.
func (b *BranchNode) Bytes() []byte {
	return b.raw[:]
}

// DecodeBranchNode reads a BranchNode from its wire image.
func DecodeBranchNode(buf []byte) (BranchNode, error) {
	if len(buf) != BranchNodeSize {
		return BranchNode{}, fmt.Errorf("proofmap: expected %d bytes for BranchNode, got %d", BranchNodeSize, len(buf))
	}
	var b BranchNode
	copy(b.raw[:], buf)
	return b, nil
}

// Hash returns the node's hash: the hash of its raw 132-byte image, with
// no additional domain-separation tag.
func (b *BranchNode) Hash() storage.Hash {
	return storage.HashBranchImage(b.raw[:])
}

package proofmap

import (
	"github.com/coreledger/merkledb/internal/storage"
)

// valueKeyTag prefixes a user key to form its value-key entry. It is
// chosen strictly greater than both node-key kind bytes (0 = branch,
// 1 = leaf) so that, within the ProofMap's single keyspace, every value
// entry sorts after every node entry: iterating from the start of the
// keyspace always reaches the root node first.
const valueKeyTag = byte(2)

func valueKey(userKey []byte) []byte {
	out := make([]byte, 1+len(userKey))
	out[0] = valueKeyTag
	copy(out[1:], userKey)
	return out
}

// viewSource is satisfied by both *storage.Fork and *storage.Snapshot.
type viewSource interface {
	View(addr storage.IndexAddress) *storage.View
}

// ProofMap is a Merkle Patricia tree (radix-2) over 256-bit keys, storing
// values as leaves and supporting authenticated proofs of presence and
// absence. It keeps node entries (keyed by serialized ProofPath) and
// value entries (keyed by a tagged user key) in the same underlying View,
// per the on-disk layout: the branch-prefix-zeroing invariant on node
// keys guarantees the root is always the first entry in key order.
type ProofMap struct {
	view *storage.View
}

// node is the decoded form of either physical node-key entry.
type node struct {
	path   ProofPath
	leaf   storage.Hash // valid when path.IsLeaf()
	branch BranchNode   // valid when !path.IsLeaf()
}

// NewProofMap opens (or begins) a ProofMap at addr, guarding it under the
// same index metadata registry as every generic index in
// internal/storage/indexes: a Fork records (or confirms) the kind on
// first use, a Snapshot only confirms it.
func NewProofMap(src viewSource, addr storage.IndexAddress) *ProofMap {
	v := src.View(addr)
	switch s := src.(type) {
	case *storage.Fork:
		storage.EnsureIndexMetadata(s, addr, storage.IndexKindProofMap)
	case *storage.Snapshot:
		storage.CheckIndexMetadata(s, addr, storage.IndexKindProofMap)
	}
	return &ProofMap{view: v}
}

func (m *ProofMap) getNode(path ProofPath) node {
	wire := path.Serialize()
	raw, ok := m.view.Get(wire[:])
	if !ok {
		panic("proofmap: missing node for path " + path.String())
	}
	if path.IsLeaf() {
		return node{path: path, leaf: storage.BytesToHash(raw)}
	}
	branch, err := DecodeBranchNode(raw)
	if err != nil {
		panic("proofmap: " + err.Error())
	}
	return node{path: path, branch: branch}
}

// rootNode returns the root's path and decoded node, or ok=false for an
// empty map.
func (m *ProofMap) rootNode() (node, bool) {
	it := m.view.Iterate(nil)
	if !it.Next() {
		return node{}, false
	}
	key := it.Key()
	if len(key) != PathSize {
		// Only value entries exist with no corresponding nodes: should
		// never happen given put always writes both together.
		return node{}, false
	}
	path, err := DeserializePath(key)
	if err != nil {
		panic("proofmap: corrupt root node key: " + err.Error())
	}
	return m.getNode(path), true
}

// Get returns the value stored for key, if any.
func (m *ProofMap) Get(key []byte) ([]byte, bool) {
	return m.view.Get(valueKey(key))
}

// Contains reports whether key has a stored value.
func (m *ProofMap) Contains(key []byte) bool {
	return m.view.Contains(valueKey(key))
}

// RootHash computes the map's current root digest.
func (m *ProofMap) RootHash() storage.Hash {
	root, ok := m.rootNode()
	if !ok {
		return storage.ZeroHash
	}
	if root.path.IsLeaf() {
		wire := root.path.Serialize()
		return storage.HashLeafRoot(wire[:], root.leaf)
	}
	return root.branch.Hash()
}

func (m *ProofMap) insertLeaf(path ProofPath, key, value []byte) storage.Hash {
	valueHash := storage.HashValue(value)
	wire := path.Serialize()
	m.view.Put(wire[:], valueHash.Bytes())
	m.view.Put(valueKey(key), value)
	return valueHash
}

func (m *ProofMap) removeLeaf(path ProofPath, key []byte) {
	wire := path.Serialize()
	m.view.Delete(wire[:])
	m.view.Delete(valueKey(key))
}

func (m *ProofMap) putBranch(path ProofPath, branch BranchNode) storage.Hash {
	wire := path.Serialize()
	m.view.Put(wire[:], branch.Bytes())
	return branch.Hash()
}

// Put inserts or overwrites the value for key.
func (m *ProofMap) Put(key, value []byte) {
	path := NewProofPath(key)
	root, ok := m.rootNode()
	if !ok {
		m.insertLeaf(path, key, value)
		return
	}

	if root.path.IsLeaf() {
		prefixPath := root.path
		i := prefixPath.CommonPrefixLen(path)
		leafHash := m.insertLeaf(path, key, value)
		if i < path.Len() {
			var branch BranchNode
			branch.SetChild(path.Bit(i), path.Suffix(i), leafHash)
			branch.SetChild(prefixPath.Bit(i), prefixPath.Suffix(i), root.leaf)
			m.putBranch(path.Prefix(i), branch)
		}
		return
	}

	branch := root.branch
	prefixPath := root.path
	i := prefixPath.CommonPrefixLen(path)
	if i == prefixPath.Len() {
		suffixPath := path.Suffix(i)
		j, h, split := m.insertBranch(branch, suffixPath, key, value)
		if split {
			branch.SetChild(suffixPath.Bit(0), suffixPath.Prefix(j), h)
		} else {
			branch.SetChildHash(suffixPath.Bit(0), h)
		}
		m.putBranch(prefixPath, branch)
		return
	}

	hash := m.insertLeaf(path, key, value)
	var newBranch BranchNode
	newBranch.SetChild(prefixPath.Bit(i), prefixPath.Suffix(i), branch.Hash())
	newBranch.SetChild(path.Bit(i), path.Suffix(i), hash)
	m.putBranch(prefixPath.Prefix(i), newBranch)
}

// insertBranch descends recursively into parent along path, returning
// either an updated hash for the existing child slot (split=false) or a
// new, shorter child-path length j to install along with the hash
// (split=true), mirroring the structural put algorithm for internal
// branches below the root.
func (m *ProofMap) insertBranch(parent BranchNode, path ProofPath, key, value []byte) (uint16, storage.Hash, bool) {
	childPath := parent.ChildPath(path.Bit(0)).StartFrom(path.Start())
	i := childPath.CommonPrefixLen(path)

	if childPath.Len() == i {
		if childPath.IsLeaf() {
			hash := m.insertLeaf(path, key, value)
			return 0, hash, false
		}
		child := m.getNode(childPath)
		branch := child.branch
		j, h, split := m.insertBranch(branch, path.Suffix(i), key, value)
		if split {
			branch.SetChild(path.Bit(i), path.Suffix(i).Prefix(j), h)
		} else {
			branch.SetChildHash(path.Bit(i), h)
		}
		hash := m.putBranch(childPath, branch)
		return 0, hash, false
	}

	suffixPath := path.Suffix(i)
	var newBranch BranchNode
	hash := m.insertLeaf(suffixPath, key, value)
	newBranch.SetChild(suffixPath.Bit(0), suffixPath, hash)
	newBranch.SetChild(childPath.Bit(i), childPath.Suffix(i), parent.ChildHash(path.Bit(0)))
	h := m.putBranch(path.Prefix(i), newBranch)
	return i, h, true
}

// removeAction tags what remove_node found.
type removeActionKind uint8

const (
	actionKeyNotFound removeActionKind = iota
	actionLeaf
	actionBranch
	actionUpdateHash
)

type removeAction struct {
	kind removeActionKind
	path ProofPath     // valid for actionBranch
	hash storage.Hash  // valid for actionBranch / actionUpdateHash
}

func (m *ProofMap) removeNode(parent BranchNode, path ProofPath, key []byte) removeAction {
	childPath := parent.ChildPath(path.Bit(0)).StartFrom(path.Start())
	i := childPath.CommonPrefixLen(path)
	if i != childPath.Len() {
		return removeAction{kind: actionKeyNotFound}
	}

	child := m.getNode(childPath)
	if child.path.IsLeaf() {
		m.removeLeaf(path, key)
		return removeAction{kind: actionLeaf}
	}

	branch := child.branch
	suffixPath := path.Suffix(i)
	switch action := m.removeNode(branch, suffixPath, key); action.kind {
	case actionLeaf:
		sibling := suffixPath.Bit(0).Not()
		siblingPath := branch.ChildPath(sibling)
		siblingHash := branch.ChildHash(sibling)
		childWire := childPath.Serialize()
		m.view.Delete(childWire[:])
		return removeAction{kind: actionBranch, path: siblingPath, hash: siblingHash}

	case actionBranch:
		newChildPath := action.path.StartFrom(suffixPath.Start())
		branch.SetChild(suffixPath.Bit(0), newChildPath, action.hash)
		h := m.putBranch(childPath, branch)
		return removeAction{kind: actionUpdateHash, hash: h}

	case actionUpdateHash:
		branch.SetChildHash(suffixPath.Bit(0), action.hash)
		h := m.putBranch(childPath, branch)
		return removeAction{kind: actionUpdateHash, hash: h}

	default:
		return removeAction{kind: actionKeyNotFound}
	}
}

// Remove deletes key's entry, if any. Removing a missing key is a no-op.
func (m *ProofMap) Remove(key []byte) {
	path := NewProofPath(key)
	root, ok := m.rootNode()
	if !ok {
		return
	}

	if root.path.IsLeaf() {
		if path.Equal(root.path) {
			m.removeLeaf(path, key)
		}
		return
	}

	branch := root.branch
	prefixPath := root.path
	i := prefixPath.CommonPrefixLen(path)
	if i != prefixPath.Len() {
		return
	}

	suffixPath := path.Suffix(i)
	switch action := m.removeNode(branch, suffixPath, key); action.kind {
	case actionLeaf:
		wire := prefixPath.Serialize()
		m.view.Delete(wire[:])
	case actionBranch:
		newChildPath := action.path.StartFrom(suffixPath.Start())
		branch.SetChild(suffixPath.Bit(0), newChildPath, action.hash)
		m.putBranch(prefixPath, branch)
	case actionUpdateHash:
		branch.SetChildHash(suffixPath.Bit(0), action.hash)
		m.putBranch(prefixPath, branch)
	case actionKeyNotFound:
		return
	}
}

// Clear removes every entry from the map.
func (m *ProofMap) Clear() {
	m.view.Clear()
}

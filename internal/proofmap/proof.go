package proofmap

import (
	"fmt"

	"github.com/coreledger/merkledb/internal/storage"
)

// ProofEntry is one requested key paired with its value, or nil if the
// key was absent at proof-construction time.
type ProofEntry struct {
	Key   []byte
	Value []byte
}

// ProofNode is a sibling record carried in a MapProof: the path and hash
// of a node the verifier cannot otherwise derive.
type ProofNode struct {
	Path ProofPath
	Hash storage.Hash
}

// MapProof is an authenticated envelope of query results, verifiable
// against a claimed root hash without touching the database.
type MapProof struct {
	Entries []ProofEntry
	Proof   []ProofNode
}

// ErrorKind names a reason MapProof verification can fail.
type ErrorKind int

const (
	ErrMalformedStructure ErrorKind = iota
	ErrDuplicateEntry
	ErrNonTerminalNode
	ErrEmbeddedKey
	ErrHashMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedStructure:
		return "MalformedStructure"
	case ErrDuplicateEntry:
		return "DuplicateEntry"
	case ErrNonTerminalNode:
		return "NonTerminalNode"
	case ErrEmbeddedKey:
		return "EmbeddedKey"
	case ErrHashMismatch:
		return "HashMismatch"
	default:
		return "Unknown"
	}
}

// VerifyError is returned by Verify; it is never panicked, since proof
// verification operates on untrusted input.
type VerifyError struct {
	Kind ErrorKind
	Msg  string
}

func (e *VerifyError) Error() string { return fmt.Sprintf("proofmap: %s: %s", e.Kind, e.Msg) }

func verifyErr(kind ErrorKind, format string, args ...any) error {
	return &VerifyError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// GetProof produces a single-key proof: the entry for key (present or
// absent), plus whatever sibling records a verifier needs to recompute
// the root hash.
func (m *ProofMap) GetProof(key []byte) MapProof {
	path := NewProofPath(key)
	root, ok := m.rootNode()
	if !ok {
		return MapProof{Entries: []ProofEntry{{Key: key}}}
	}

	if root.path.IsLeaf() {
		if path.Equal(root.path) {
			val, _ := m.Get(key)
			return MapProof{Entries: []ProofEntry{{Key: key, Value: val}}}
		}
		return MapProof{
			Entries: []ProofEntry{{Key: key}},
			Proof:   []ProofNode{{Path: root.path, Hash: root.leaf}},
		}
	}

	branch := root.branch
	prefixPath := root.path
	i := prefixPath.CommonPrefixLen(path)

	var sink []ProofNode
	var val []byte
	var found bool
	if i != prefixPath.Len() {
		// query diverges from the root branch's own stored prefix before
		// reaching any branching decision: both children are siblings.
		sink = append(sink, ProofNode{Path: branch.ChildPath(Left), Hash: branch.ChildHash(Left)})
		sink = append(sink, ProofNode{Path: branch.ChildPath(Right), Hash: branch.ChildHash(Right)})
	} else {
		val, found = m.descendProof(branch, path.Suffix(i), key, &sink)
	}
	entry := ProofEntry{Key: key}
	if found {
		entry.Value = val
	}
	return MapProof{Entries: []ProofEntry{entry}, Proof: sink}
}

// descendProof walks from parent's children along path — already rebased
// so path.Start() is the absolute bit position of parent's own branching
// decision, exactly as insertBranch/removeNode in map.go rebase their walk
// — recording the sibling not on the search path at every branch crossed,
// until it reaches the matching leaf (recording nothing further: the
// leaf's own hash is recomputed by the verifier from the returned value)
// or diverges partway through a child's stored path (recording both of
// the diverging branch's children and stopping).
func (m *ProofMap) descendProof(parent BranchNode, path ProofPath, key []byte, sink *[]ProofNode) ([]byte, bool) {
	side := path.Bit(0)
	childPath := parent.ChildPath(side).StartFrom(path.Start())
	i := childPath.CommonPrefixLen(path)

	if i == childPath.Len() {
		sibling := side.Not()
		*sink = append(*sink, ProofNode{Path: parent.ChildPath(sibling), Hash: parent.ChildHash(sibling)})

		if childPath.IsLeaf() {
			if path.Equal(childPath) {
				val, _ := m.Get(key)
				return val, true
			}
			// Should not happen: childPath fully matched path's prefix up
			// to its own length and is a leaf, so it must equal path
			// whenever path also reaches the full (256-bit) key length,
			// which it always does.
			return nil, false
		}
		child := m.getNode(childPath)
		return m.descendProof(child.branch, path.Suffix(i), key, sink)
	}

	*sink = append(*sink, ProofNode{Path: parent.ChildPath(Left), Hash: parent.ChildHash(Left)})
	*sink = append(*sink, ProofNode{Path: parent.ChildPath(Right), Hash: parent.ChildHash(Right)})
	return nil, false
}

// GetMultiProof combines the individual proofs for keys into one MapProof:
// sibling records are deduplicated and sorted by ProofPath.Compare, and a
// sibling whose path is a prefix of (or equal to) any requested key's path
// is dropped, since the search for that key descends into it and its hash
// is reconstructable from that key's own records.
func (m *ProofMap) GetMultiProof(keys [][]byte) MapProof {
	var entries []ProofEntry
	requestedKeys := make(map[string]bool)
	presentPaths := make(map[string]bool)

	for _, key := range keys {
		k := string(key)
		if requestedKeys[k] {
			continue
		}
		requestedKeys[k] = true

		proof := m.GetProof(key)
		entries = append(entries, proof.Entries...)
		for _, e := range proof.Entries {
			if e.Value != nil {
				wire := NewProofPath(e.Key).Serialize()
				presentPaths[string(wire[:])] = true
			}
		}
	}

	seen := make(map[string]storage.Hash)
	var paths []ProofPath
	for _, key := range keys {
		proof := m.GetProof(key)
		for _, n := range proof.Proof {
			wire := n.Path.Serialize()
			pk := string(wire[:])
			if presentPaths[pk] {
				continue
			}
			onSearchPath := false
			for _, other := range keys {
				if NewProofPath(other).StartsWith(n.Path) {
					onSearchPath = true
					break
				}
			}
			if onSearchPath {
				continue
			}
			if _, ok := seen[pk]; ok {
				continue
			}
			seen[pk] = n.Hash
			paths = append(paths, n.Path)
		}
	}

	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && paths[j-1].Compare(paths[j]) > 0; j-- {
			paths[j-1], paths[j] = paths[j], paths[j-1]
		}
	}

	proof := make([]ProofNode, len(paths))
	for i, p := range paths {
		wire := p.Serialize()
		proof[i] = ProofNode{Path: p, Hash: seen[string(wire[:])]}
	}
	return MapProof{Entries: entries, Proof: proof}
}

// pathHashPair is a (path, hash) record during fold-based verification.
type pathHashPair struct {
	path ProofPath
	hash storage.Hash
}

// Verify checks proof against claimedRoot with no database access: it
// reconstructs (path, hash) pairs for every present entry, combines them
// with the supplied sibling records, repeatedly folds sibling pairs into
// their parent branch's hash until a single pair remains, and compares
// the resulting root hash to claimedRoot. Absent entries are additionally
// checked against the reconstructed structure.
func Verify(proof MapProof, claimedRoot storage.Hash) error {
	pairs, err := collectPairs(proof)
	if err != nil {
		return err
	}

	if len(pairs) == 0 {
		for _, e := range proof.Entries {
			if e.Value != nil {
				return verifyErr(ErrMalformedStructure, "empty proof claims a present value for key %x", e.Key)
			}
		}
		if claimedRoot != storage.ZeroHash {
			return verifyErr(ErrHashMismatch, "empty map must hash to the zero hash")
		}
		return nil
	}

	final, err := foldToRoot(pairs)
	if err != nil {
		return err
	}

	var rootHash storage.Hash
	if final.path.IsLeaf() {
		wire := final.path.Serialize()
		rootHash = storage.HashLeafRoot(wire[:], final.hash)
	} else {
		rootHash = final.hash
	}
	if rootHash != claimedRoot {
		return verifyErr(ErrHashMismatch, "reconstructed root %s does not match claimed root %s", rootHash.Hex(), claimedRoot.Hex())
	}

	for _, e := range proof.Entries {
		if e.Value != nil {
			continue
		}
		if err := verifyAbsence(NewProofPath(e.Key), pairs); err != nil {
			return err
		}
	}
	return nil
}

func collectPairs(proof MapProof) ([]pathHashPair, error) {
	var pairs []pathHashPair
	index := make(map[string]int)

	add := func(p ProofPath, h storage.Hash) error {
		wire := p.Serialize()
		k := string(wire[:])
		if idx, ok := index[k]; ok {
			if pairs[idx].hash != h {
				return verifyErr(ErrDuplicateEntry, "conflicting entries for the same path")
			}
			return nil
		}
		index[k] = len(pairs)
		pairs = append(pairs, pathHashPair{path: p, hash: h})
		return nil
	}

	seenKeys := make(map[string]bool)
	for _, e := range proof.Entries {
		k := string(e.Key)
		if seenKeys[k] {
			return nil, verifyErr(ErrDuplicateEntry, "duplicate requested key %x", e.Key)
		}
		seenKeys[k] = true
		if e.Value != nil {
			if err := add(NewProofPath(e.Key), storage.HashValue(e.Value)); err != nil {
				return nil, err
			}
		}
	}
	for _, n := range proof.Proof {
		if err := add(n.Path, n.Hash); err != nil {
			return nil, err
		}
	}

	for i := range pairs {
		if !pairs[i].path.IsLeaf() {
			continue
		}
		for j := range pairs {
			if i == j {
				continue
			}
			if pairs[j].path.Len() > pairs[i].path.Len() && pairs[j].path.StartsWith(pairs[i].path) {
				return nil, verifyErr(ErrNonTerminalNode, "leaf path has a claimed descendant")
			}
		}
	}
	return pairs, nil
}

// foldToRoot repeatedly merges the deepest pair of siblings (the pair
// with the greatest common-prefix length whose paths actually diverge)
// into their parent branch's hash, until one pair remains. Folding
// deepest-first avoids merging paths that merely happen to share a long
// prefix without being true siblings under the same branch.
func foldToRoot(pairs []pathHashPair) (pathHashPair, error) {
	work := append([]pathHashPair(nil), pairs...)

	for len(work) > 1 {
		bestI, bestJ, bestLen := -1, -1, -1
		for i := 0; i < len(work); i++ {
			for j := i + 1; j < len(work); j++ {
				l := int(work[i].path.CommonPrefixLen(work[j].path))
				if l >= int(work[i].path.Len()) || l >= int(work[j].path.Len()) {
					continue
				}
				if work[i].path.Bit(uint16(l)) == work[j].path.Bit(uint16(l)) {
					continue
				}
				if l > bestLen {
					bestI, bestJ, bestLen = i, j, l
				}
			}
		}
		if bestI < 0 {
			return pathHashPair{}, verifyErr(ErrMalformedStructure, "proof does not fold to a single root")
		}

		a, b := work[bestI], work[bestJ]
		l := uint16(bestLen)
		var branch BranchNode
		branch.SetChild(a.path.Bit(l), a.path.StartFrom(l), a.hash)
		branch.SetChild(b.path.Bit(l), b.path.StartFrom(l), b.hash)
		merged := pathHashPair{path: a.path.Prefix(l), hash: branch.Hash()}

		next := make([]pathHashPair, 0, len(work)-1)
		for k, p := range work {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, p)
		}
		work = append(next, merged)
	}
	return work[0], nil
}

// verifyAbsence confirms query is not among the pairs the proof actually
// supplied: since foldToRoot must consume every pair to reach the
// claimed (and now hash-verified) root, any leaf contributing to that
// root appears verbatim in pairs, so an exact match here means the
// caller's None claim is contradicted by the very proof it supplied.
func verifyAbsence(query ProofPath, pairs []pathHashPair) error {
	wire := query.Serialize()
	qk := string(wire[:])
	for _, p := range pairs {
		pw := p.path.Serialize()
		if string(pw[:]) == qk {
			return verifyErr(ErrEmbeddedKey, "key claimed absent is present in the proof")
		}
	}
	return nil
}

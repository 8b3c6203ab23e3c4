package storage

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// HashLength is the size in bytes of a Hash.
const HashLength = 32

// Hash is an opaque 256-bit digest. Equality is byte-wise.
type Hash [HashLength]byte

// ZeroHash is the distinguished empty-map / unset digest.
var ZeroHash = Hash{}

// BytesToHash copies b (left-truncated/zero-padded to HashLength) into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Hex returns the 0x-prefixed hex representation.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// Hasher computes 256-bit digests with streaming update, grounded on the
// teacher's crypto.Keccak256 (golang.org/x/crypto/sha3,
// NewLegacyKeccak256) but exposed as a reusable streaming object: callers
// that need to hash a value assembled in pieces (a BranchNode's 132-byte
// image, a leaf root's path||value-hash) can Write incrementally instead
// of concatenating buffers up front.
type Hasher struct {
	d interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
		Reset()
	}
}

// NewHasher returns a fresh Hasher over an empty Keccak-256 state.
func NewHasher() *Hasher {
	return &Hasher{d: sha3.NewLegacyKeccak256()}
}

// Write feeds more bytes into the running digest.
func (h *Hasher) Write(p []byte) (int, error) { return h.d.Write(p) }

// Sum returns the current digest without resetting the hasher.
func (h *Hasher) Sum() Hash { return BytesToHash(h.d.Sum(nil)) }

// Reset clears the hasher for reuse.
func (h *Hasher) Reset() { h.d.Reset() }

// HashValue hashes an already-encoded value (spec 6.3: "the hash of a value
// is taken over its canonical encoded byte form").
func HashValue(encoded []byte) Hash {
	h := NewHasher()
	h.Write(encoded)
	return h.Sum()
}

// HashBranchImage hashes a BranchNode's 132-byte wire image (spec 6.3:
// "the hash of a branch is the hash of its 132-byte image").
func HashBranchImage(image []byte) Hash {
	if len(image) != 132 {
		panic(fmt.Sprintf("storage: branch image must be 132 bytes, got %d", len(image)))
	}
	h := NewHasher()
	h.Write(image)
	return h.Sum()
}

// HashLeafRoot hashes a leaf root's path bytes concatenated with its value
// hash (spec 6.3: "hash(path_bytes || value_hash)" for a leaf root, noting
// the asymmetry with internal leaves which contribute only through their
// parent branch).
func HashLeafRoot(pathBytes []byte, valueHash Hash) Hash {
	h := NewHasher()
	h.Write(pathBytes)
	h.Write(valueHash[:])
	return h.Sum()
}

package storage

import "github.com/coreledger/merkledb/internal/kv"

// Snapshot is an immutable, point-in-time read view over the whole
// database. It is cheap to hold and never observes a merge committed
// after it was taken.
type Snapshot struct {
	reader kv.Snapshot
}

// View returns a read-only View over addr.
func (s *Snapshot) View(addr IndexAddress) *View {
	return &View{addr: addr, reader: s.reader}
}

// Get is a convenience shorthand for View(addr).Get(key).
func (s *Snapshot) Get(addr IndexAddress, key []byte) ([]byte, bool) {
	return s.View(addr).Get(key)
}

// Contains is a convenience shorthand for View(addr).Contains(key).
func (s *Snapshot) Contains(addr IndexAddress, key []byte) bool {
	return s.View(addr).Contains(key)
}

// Iterate is a convenience shorthand for View(addr).Iterate(from).
func (s *Snapshot) Iterate(addr IndexAddress, from []byte) Iterator {
	return s.View(addr).Iterate(from)
}

// Close releases the underlying point-in-time reference. Repeated calls
// are not guarded here: each one is passed to the engine's snapshot.
func (s *Snapshot) Close() error {
	return s.reader.Close()
}

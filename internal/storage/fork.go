package storage

import "github.com/coreledger/merkledb/internal/kv"

// Fork is a transactional write view over a Snapshot: it owns its change
// buffers exclusively, one ViewChanges per IndexAddress touched. A Fork is
// single-threaded and is consumed by IntoPatch; using it afterward is a
// programmer error.
type Fork struct {
	reader   kv.Snapshot
	views    map[string]*ViewChanges
	addrs    map[string]IndexAddress
	consumed bool
}

func newFork(reader kv.Snapshot) *Fork {
	return &Fork{
		reader: reader,
		views:  make(map[string]*ViewChanges),
		addrs:  make(map[string]IndexAddress),
	}
}

// View returns the read/write View for addr, creating its change buffer
// on first use.
func (f *Fork) View(addr IndexAddress) *View {
	if f.consumed {
		panic("storage: Fork used after IntoPatch")
	}
	k := addressKey(addr)
	vc, ok := f.views[k]
	if !ok {
		vc = NewViewChanges()
		f.views[k] = vc
		f.addrs[k] = addr
	}
	return &View{addr: addr, reader: f.reader, changes: vc}
}

// IntoPatch freezes the Fork into a Patch and marks the Fork consumed.
func (f *Fork) IntoPatch() *Patch {
	if f.consumed {
		panic("storage: Fork used after IntoPatch")
	}
	f.consumed = true
	entries := make(map[string]patchEntry, len(f.views))
	for k, vc := range f.views {
		entries[k] = patchEntry{addr: f.addrs[k], changes: vc}
	}
	return &Patch{entries: entries}
}

// Close releases the Fork's underlying point-in-time reference without
// producing a Patch. Used when a Fork is abandoned unmerged.
func (f *Fork) Close() error {
	return f.reader.Close()
}

package storage

// addressKey forms a comparable map key from an IndexAddress (which
// itself contains a byte slice and so cannot be used as a map key
// directly).
func addressKey(addr IndexAddress) string {
	return addr.Name + "\x00" + string(addr.Bytes)
}

// patchEntry pairs an address with the ViewChanges recorded against it.
type patchEntry struct {
	addr    IndexAddress
	changes *ViewChanges
}

// Patch is the frozen collection of all ViewChanges of a Fork: a mapping
// from IndexAddress to ViewChanges representing the Fork's full delta. It
// is one-shot: applied at most once via Database.Merge.
type Patch struct {
	entries map[string]patchEntry
	applied bool
}

// Entries returns the patch's (address, changes) pairs. Iteration order
// is unspecified.
func (p *Patch) Entries() []patchEntry {
	out := make([]patchEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	return out
}

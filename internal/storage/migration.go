package storage

// MigrationHelper stages a schema migration in a Fork scoped under a
// private namespace, so readers of the real index addresses never
// observe a partially-migrated state: staged writes land under
// "<namespace>.<name>" and only become visible at the real address once
// Replace explicitly cuts them over. Grounded on exonum's
// MigrationFork/migration.rs, which wraps a Fork to give migrating code
// its own scoped view of the database distinct from the target indexes.
type MigrationHelper struct {
	db        *Database
	namespace string
	fork      *Fork
}

// NewMigrationHelper opens a fresh Fork scoped under namespace.
func NewMigrationHelper(db *Database, namespace string) *MigrationHelper {
	return &MigrationHelper{db: db, namespace: namespace, fork: db.Fork()}
}

func (m *MigrationHelper) namespaced(addr IndexAddress) IndexAddress {
	return IndexAddress{Name: m.namespace + "." + addr.Name, Bytes: addr.Bytes}
}

// View opens a staged, namespaced View over addr: writes here are
// invisible to readers of addr itself until Replace runs.
func (m *MigrationHelper) View(addr IndexAddress) *View {
	return m.fork.View(m.namespaced(addr))
}

// Merge commits the staged migration data to its namespaced addresses,
// making it durable without yet affecting the real addresses.
func (m *MigrationHelper) Merge() error {
	patch := m.fork.IntoPatch()
	return m.db.Merge(patch)
}

// Replace cuts the migration over: for each of addrs, it copies every
// entry currently staged under the namespaced address into the real
// address, clearing whatever the real address held first, then merges
// that replacement as a single patch. Call Merge before Replace so the
// staged data being copied is itself durable.
func (m *MigrationHelper) Replace(addrs []IndexAddress) error {
	snapshot := m.db.Snapshot()
	defer snapshot.Close()

	fork := m.db.Fork()
	for _, addr := range addrs {
		dst := fork.View(addr)
		dst.Clear()

		src := snapshot.View(m.namespaced(addr))
		it := src.Iterate(nil)
		for it.Next() {
			dst.Put(append([]byte(nil), it.Key()...), append([]byte(nil), it.Value()...))
		}
	}
	return m.db.Merge(fork.IntoPatch())
}

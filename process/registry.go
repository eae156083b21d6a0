package process

import "sync"

// VM is the minimal shape a process's owning container must present to
// be resolvable through this package. It is deliberately empty: nothing
// in this core calls back into the VM through the weak reference today,
// but the registry exists (per spec.md §9's "resolve the VM I belong to
// or fail" re-architecture note) so that callers holding only a *Process
// can still recover its container when they need one, the same way the
// original's WeakVm::upgrade did.
type VM interface{}

var (
	registryMu sync.RWMutex
	registry   = map[uint64]VM{}
)

// Register makes v resolvable under id. Called by a VM container once,
// at construction.
func Register(id uint64, v VM) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = v
}

// Deregister removes id from the registry. Called by a VM container when
// it tears down; every Process holding that id subsequently resolves
// Lookup to (nil, false), mirroring a dangling weak-pointer upgrade.
func Deregister(id uint64) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, id)
}

// Lookup resolves id to its registered VM, if still registered.
func Lookup(id uint64) (VM, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := registry[id]
	return v, ok
}

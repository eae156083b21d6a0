package edi

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// Ed[T] is a shared, reference-counted capability wrapper around a device
// T: the device itself, plus the set of process ids permitted to access
// it. Permissions are monotonically additive (delegation only) and the
// kernel pid is always permitted regardless of the set's contents.
//
// Ed is deliberately a thin value type wrapping a pointer to its shared
// state (*edInner[T]): copying an Ed copies the handle, not the device,
// matching the teacher's own Arc<EdInner<T>> shape from the original Rust
// source this was translated from.
type Ed[T any] struct {
	inner *edInner[T]
}

type edInner[T any] struct {
	dev   T
	perms deadlock.RWMutex
	set   map[Pid]struct{}
}

// New wraps dev with an empty permission set (only the kernel may access
// it until something is granted).
func New[T any](dev T) Ed[T] {
	return FromPerms(dev, nil)
}

// FromPerms wraps dev with an initial permission set.
func FromPerms[T any](dev T, perms []Pid) Ed[T] {
	set := make(map[Pid]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Ed[T]{inner: &edInner[T]{dev: dev, set: set}}
}

// IsAllowed reports whether accessor may operate on the wrapped device.
// The kernel pid is always allowed.
func (e Ed[T]) IsAllowed(accessor Pid) bool {
	if accessor == Kernel {
		return true
	}
	e.inner.perms.RLock()
	defer e.inner.perms.RUnlock()
	_, ok := e.inner.set[accessor]
	return ok
}

// Access returns the wrapped device iff accessor is permitted.
func (e Ed[T]) Access(accessor Pid) (T, bool) {
	if !e.IsAllowed(accessor) {
		var zero T
		return zero, false
	}
	// The device itself never changes after construction, so it is safe
	// to read without holding perms: only the permission set is mutable.
	return e.inner.dev, true
}

// Allow grants newAcc access, provided accessor is itself currently
// permitted. Returns whether the grant took effect.
func (e Ed[T]) Allow(accessor, newAcc Pid) bool {
	if !e.IsAllowed(accessor) {
		return false
	}
	e.inner.perms.Lock()
	defer e.inner.perms.Unlock()
	e.inner.set[newAcc] = struct{}{}
	return true
}

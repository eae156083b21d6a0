// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// Package edi implements the effect-device identifier (Edi) scheme and the
// Ed[T] capability wrapper that gates access to a device by process
// identity. An Edi is a 64-bit token: the top two bits tag its kind
// (process, file, channel, event) and the remaining 62 bits are an
// allocator-assigned payload.
package edi

import "fmt"

// Kind tags the top two bits of an Edi.
type Kind uint64

const (
	KindPid Kind = 0x0 << 62
	KindFd  Kind = 0x1 << 62
	KindChd Kind = 0x2 << 62
	KindEvd Kind = 0x3 << 62

	mask uint64 = 0x3 << 62
)

// Edi is an opaque effect-device identifier: a process, file, channel, or
// event id packed into a single comparable 64-bit token.
type Edi uint64

// Pid is the kernel's own process identifier space.
type Pid uint64

// Kernel is the distinguished process id (0) that is always permitted on
// every Ed, regardless of its permission set.
const Kernel Pid = 0

// Fd identifies a file known to the VM.
type Fd uint64

const (
	Stdin  Fd = 0
	Stdout Fd = 1
	Stderr Fd = 2
)

// Chd identifies a channel known to the VM.
type Chd uint64

// Evd identifies an in-flight I/O event known to the VM.
type Evd uint64

// Handlers dispatches Edi.Kind: exactly one of the four functions below is
// invoked, receiving the stripped (mask-cleared) payload for that kind.
type Handlers[T any] struct {
	Pid func(Pid) T
	Fd  func(Fd) T
	Chd func(Chd) T
	Evd func(Evd) T
}

// Dispatch routes e to the handler matching its kind and returns that
// handler's result. Panics if the top two bits somehow name a kind other
// than the four defined here, which cannot happen through the
// constructors in this package but would indicate memory corruption or a
// bug in a caller that built an Edi by hand.
func Dispatch[T any](e Edi, h Handlers[T]) T {
	payload := uint64(e) &^ mask
	switch uint64(e) & mask {
	case uint64(KindPid):
		return h.Pid(Pid(payload))
	case uint64(KindFd):
		return h.Fd(Fd(payload))
	case uint64(KindChd):
		return h.Chd(Chd(payload))
	case uint64(KindEvd):
		return h.Evd(Evd(payload))
	default:
		panic("edi: irrefutable match on effect device id failed")
	}
}

// Kind returns which of the four device kinds e names.
func (e Edi) Kind() Kind {
	return Kind(uint64(e) & mask)
}

func fromPid(p Pid) Edi { return Edi(uint64(p) | uint64(KindPid)) }
func fromFd(f Fd) Edi   { return Edi(uint64(f) | uint64(KindFd)) }
func fromChd(c Chd) Edi { return Edi(uint64(c) | uint64(KindChd)) }
func fromEvd(v Evd) Edi { return Edi(uint64(v) | uint64(KindEvd)) }

// FromPid, FromFd, FromChd, FromEvd are the total (always-succeeds)
// conversions from a typed id into an Edi.
func FromPid(p Pid) Edi { return fromPid(p) }
func FromFd(f Fd) Edi   { return fromFd(f) }
func FromChd(c Chd) Edi { return fromChd(c) }
func FromEvd(v Evd) Edi { return fromEvd(v) }

// AsPid, AsFd, AsChd, AsEvd are the partial (option-typed) reverse
// conversions: ok is false when e names a different kind.
func (e Edi) AsPid() (p Pid, ok bool) {
	if e.Kind() != KindPid {
		return 0, false
	}
	return Pid(uint64(e) &^ mask), true
}

func (e Edi) AsFd() (f Fd, ok bool) {
	if e.Kind() != KindFd {
		return 0, false
	}
	return Fd(uint64(e) &^ mask), true
}

func (e Edi) AsChd() (c Chd, ok bool) {
	if e.Kind() != KindChd {
		return 0, false
	}
	return Chd(uint64(e) &^ mask), true
}

func (e Edi) AsEvd() (v Evd, ok bool) {
	if e.Kind() != KindEvd {
		return 0, false
	}
	return Evd(uint64(e) &^ mask), true
}

func (e Edi) String() string {
	return "effect " + Dispatch(e, Handlers[string]{
		Pid: func(p Pid) string { return p.String() },
		Fd:  func(f Fd) string { return f.String() },
		Chd: func(c Chd) string { return c.String() },
		Evd: func(v Evd) string { return v.String() },
	})
}

func (p Pid) String() string { return fmt.Sprintf("pid@%d", uint64(p)) }
func (f Fd) String() string  { return fmt.Sprintf("file@%d", uint64(f)) }
func (c Chd) String() string { return fmt.Sprintf("channel@%d", uint64(c)) }
func (v Evd) String() string { return fmt.Sprintf("event@%d", uint64(v)) }

// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// Package process implements the per-process register file and its
// constructed/running/cancelled lifecycle. A Process never touches the
// scheduler or the capability tables directly — the VM spawns it,
// launches it, and looks up the devices it is allowed to reach; a
// Process only owns its own registers, its file allow-list, and a weak
// reference back to the VM it belongs to.
package process

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/value"
)

// RegSet is the process register file: four slots per register class,
// plus the private current-function/instruction-pointer pair that a
// bytecode interpreter (out of scope for this core — see value.Function's
// doc comment) would drive. A freshly constructed RegSet has every
// register zeroed, Nil, or empty, matching original_source/src/process.rs.
type RegSet struct {
	Va, Vb, Vc, Vd value.Value

	Ba, Bb, Bc, Bd byte

	Iwa, Iwb, Iwc, Iwd int
	Uwa, Uwb, Uwc, Uwd uint

	Ia, Ib, Ic, Id int64
	Ua, Ub, Uc, Ud uint64

	Fa, Fb, Fc, Fd float64

	Aa, Ab, Ac, Ad value.Array
	Ta, Tb, Tc, Td value.Tuple

	Fna, Fnb, Fnc, Fnd value.Function

	Sa, Sb, Sc, Sd []byte

	rfn value.Function
	ip  int
}

func newRegSet(start value.Function) RegSet {
	return RegSet{
		Va: value.Nil(),
		Vb: value.Nil(),
		Vc: value.Nil(),
		Vd: value.Nil(),

		Aa: value.NewArray(nil),
		Ab: value.NewArray(nil),
		Ac: value.NewArray(nil),
		Ad: value.NewArray(nil),

		Ta: value.NewTuple(nil),
		Tb: value.NewTuple(nil),
		Tc: value.NewTuple(nil),
		Td: value.NewTuple(nil),

		Fna: value.NoOp(),
		Fnb: value.NoOp(),
		Fnc: value.NoOp(),
		Fnd: value.NoOp(),

		rfn: start,
		ip:  0,
	}
}

// State is a Process's lifecycle stage.
type State int

const (
	// Constructed is the state immediately after New: the process exists
	// but has not yet been handed to a worker.
	Constructed State = iota
	// Running is the state after a successful Launch.
	Running
	// Cancelled is the terminal state reached when a spawn's
	// post-construction capability grants fail; a Cancelled process is
	// never launched and carries no permitted devices.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Process is a single lightweight process's complete state: its
// registers, the set of file ids it may reach, its own pid, and the id
// of the VM that owns it (resolved through the package-level registry
// rather than a strong or weak pointer — see Lookup).
type Process struct {
	regsMu deadlock.Mutex
	regs   RegSet

	fdMu deadlock.Mutex
	fds  map[edi.Fd]struct{}

	pid  edi.Pid
	vmID uint64

	stateMu deadlock.Mutex
	state   State
}

// New builds a process under pid with start as its initial function, fds
// as its initial file allow-list, and vmID naming the VM it belongs to.
// It is always called by the VM under the kernel identity, per spec.
func New(pid edi.Pid, start value.Function, fds map[edi.Fd]struct{}, vmID uint64) *Process {
	allow := make(map[edi.Fd]struct{}, len(fds))
	for fd := range fds {
		allow[fd] = struct{}{}
	}
	return &Process{
		regs:  newRegSet(start),
		fds:   allow,
		pid:   pid,
		vmID:  vmID,
		state: Constructed,
	}
}

// Pid returns the process's own id.
func (p *Process) Pid() edi.Pid { return p.pid }

// State returns the process's current lifecycle stage.
func (p *Process) State() State {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.state
}

// Launch transitions a Constructed process to Running. Returns false if
// the process was not Constructed (already launched, or already
// cancelled).
func (p *Process) Launch() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state != Constructed {
		return false
	}
	p.state = Running
	return true
}

// Cancel transitions a Constructed process to Cancelled. Used by the
// Spawner when a capability grant fails partway through a spawn; has no
// effect on a process that has already been launched. Returns false if
// the process was not Constructed.
func (p *Process) Cancel() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.state != Constructed {
		return false
	}
	p.state = Cancelled
	return true
}

// AllowFd adds fd to the process's file allow-list.
func (p *Process) AllowFd(fd edi.Fd) {
	p.fdMu.Lock()
	defer p.fdMu.Unlock()
	p.fds[fd] = struct{}{}
}

// FdAllowed reports whether fd is in the process's file allow-list.
func (p *Process) FdAllowed(fd edi.Fd) bool {
	p.fdMu.Lock()
	defer p.fdMu.Unlock()
	_, ok := p.fds[fd]
	return ok
}

// Fds returns a snapshot of the process's file allow-list.
func (p *Process) Fds() []edi.Fd {
	p.fdMu.Lock()
	defer p.fdMu.Unlock()
	out := make([]edi.Fd, 0, len(p.fds))
	for fd := range p.fds {
		out = append(out, fd)
	}
	return out
}

// WithRegs runs fn against the process's register file under its lock.
// There is no unlocked accessor: the register file is exactly the
// process's mutable state and a cooperating worker may touch it from
// any I/O polling point.
func (p *Process) WithRegs(fn func(*RegSet)) {
	p.regsMu.Lock()
	defer p.regsMu.Unlock()
	fn(&p.regs)
}

// CurrentFunction returns the function the process is presently
// executing.
func (p *Process) CurrentFunction() value.Function {
	p.regsMu.Lock()
	defer p.regsMu.Unlock()
	return p.regs.rfn
}

// IP returns the process's current instruction pointer.
func (p *Process) IP() int {
	p.regsMu.Lock()
	defer p.regsMu.Unlock()
	return p.regs.ip
}

// SetIP updates the process's instruction pointer, for use by whatever
// bytecode interpreter drives rfn.
func (p *Process) SetIP(ip int) {
	p.regsMu.Lock()
	defer p.regsMu.Unlock()
	p.regs.ip = ip
}

// VM resolves the VM this process belongs to. ok is false once that VM
// has torn down and deregistered itself, mirroring a dangling weak
// pointer upgrade in the original source.
func (p *Process) VM() (VM, bool) {
	return Lookup(p.vmID)
}

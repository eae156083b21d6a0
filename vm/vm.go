// Copyright (2012) Sandia Corporation.
// Under the terms of Contract DE-AC04-94AL85000 with Sandia Corporation,
// the U.S. Government retains certain rights in this software.

// Package vm implements the VM container: the global file and channel
// tables, the sharded per-core process and event pools, the monotonic id
// allocators, the bytecode cache, and the Spawner that grants a new
// process its capabilities atomically (see spawner.go).
package vm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/hostinfo"
	"github.com/sandia-minimega/alm/ioevt"
	"github.com/sandia-minimega/alm/ipc"
	"github.com/sandia-minimega/alm/minilog"
	"github.com/sandia-minimega/alm/process"
)

// idMask clears the top two Edi kind-tag bits, the same mask edi uses —
// counters must never produce a value with either of those bits set.
const idMask uint64 = 0x3FFFFFFFFFFFFFFF

var vmSeq uint64 // assigns each Vm its own process-registry id

// Vm is the capability-secured container: every file, channel, process,
// and in-flight event in the system belongs to exactly one Vm.
type Vm struct {
	id uint64

	fileMu  deadlock.Mutex
	files   map[edi.Fd]edi.Ed[*ioevt.File]
	fileCtr uint64

	chdMu  deadlock.Mutex
	chds   map[edi.Chd]edi.Ed[*ipc.Channel]
	chdCtr uint64

	pidCtrMu deadlock.Mutex
	pidCtr   uint64

	evdCtrMu deadlock.Mutex
	evdCtr   uint64

	codeMu deadlock.RWMutex
	code   map[string][]byte

	pool []*procPool

	group      *errgroup.Group
	groupCtx   context.Context
	cancelWork context.CancelFunc

	closeOnce sync.Once
}

// VmOpts is a builder for the VM's initial standard streams and core
// count, finished off with Alloc.
type VmOpts struct {
	stdin, stdout, stderr *ioevt.File
	cores                 int
}

// NewOpts starts a VmOpts with the process's real stdio and a core count
// of hostinfo.CPUCount().
func NewOpts() *VmOpts {
	return &VmOpts{
		stdin:  ioevt.Stdin(),
		stdout: ioevt.Stdout(),
		stderr: ioevt.Stderr(),
		cores:  hostinfo.CPUCount(),
	}
}

func (o *VmOpts) Stdin(f *ioevt.File) *VmOpts  { o.stdin = f; return o }
func (o *VmOpts) Stdout(f *ioevt.File) *VmOpts { o.stdout = f; return o }
func (o *VmOpts) Stderr(f *ioevt.File) *VmOpts { o.stderr = f; return o }

// Cores sets the worker pool size. Values below hostinfo.MinCoreNum are
// ignored, per spec.
func (o *VmOpts) Cores(n int) *VmOpts {
	if n >= hostinfo.MinCoreNum {
		o.cores = n
	}
	return o
}

// Alloc builds a ready Vm: its standard streams occupy Fd 0/1/2 in the
// global file table, permitted to the kernel pid only until a process is
// granted access by a Spawner.
func (o *VmOpts) Alloc() *Vm {
	cores := o.cores
	if cores < hostinfo.MinCoreNum {
		cores = hostinfo.MinCoreNum
	}

	pool := make([]*procPool, cores)
	for i := range pool {
		pool[i] = newProcPool()
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	vm := &Vm{
		id:         atomic.AddUint64(&vmSeq, 1),
		files:      make(map[edi.Fd]edi.Ed[*ioevt.File]),
		chds:       make(map[edi.Chd]edi.Ed[*ipc.Channel]),
		code:       make(map[string][]byte),
		pool:       pool,
		group:      group,
		groupCtx:   groupCtx,
		cancelWork: cancel,
	}

	vm.files[edi.Stdin] = edi.New(o.stdin)
	vm.files[edi.Stdout] = edi.New(o.stdout)
	vm.files[edi.Stderr] = edi.New(o.stderr)
	vm.fileCtr = 3

	process.Register(vm.id, vm)

	for i, shard := range pool {
		i, shard := i, shard
		vm.group.Go(func() error {
			return vm.runShard(i, shard)
		})
	}

	return vm
}

// runShard is the cooperative scheduler loop for one shard: it repeatedly
// advances every not-yet-done event the shard owns, yielding between
// sweeps, until the VM is closed. Processes themselves are driven by
// whatever bytecode interpreter consumes Function.bc (out of this core's
// scope); this loop only keeps I/O events moving.
func (vm *Vm) runShard(_ int, shard *procPool) error {
	for {
		select {
		case <-vm.groupCtx.Done():
			return nil
		default:
		}

		shard.evMu.Lock()
		pending := make([]ioevt.Event, 0, len(shard.evts))
		for _, ed := range shard.evts {
			if dev, ok := ed.Access(edi.Kernel); ok && !dev.IsDone() {
				pending = append(pending, dev)
			}
		}
		shard.evMu.Unlock()

		for _, ev := range pending {
			if err := ev.Advance(); err != nil {
				minilog.Error("vm: event advance: %v", err)
			}
		}

		if len(pending) == 0 {
			// Nothing to drive this sweep; yield instead of spinning the
			// core. Real work resumes as soon as a new event is
			// registered on this shard.
			select {
			case <-vm.groupCtx.Done():
				return nil
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// Close stops every shard worker and deregisters the VM from the process
// package's weak-reference registry, so any Process still holding this
// VM's id subsequently fails to resolve it.
func (vm *Vm) Close() error {
	var err error
	vm.closeOnce.Do(func() {
		vm.cancelWork()
		if werr := vm.group.Wait(); werr != nil {
			err = errors.Wrap(werr, "vm: shard worker")
		}
		process.Deregister(vm.id)
	})
	return err
}

// InternCode publishes bc under name in the read-heavy function code
// cache, returning the interned (possibly previously-published) bytes.
func (vm *Vm) InternCode(name string, bc []byte) []byte {
	vm.codeMu.Lock()
	defer vm.codeMu.Unlock()
	if existing, ok := vm.code[name]; ok {
		return existing
	}
	vm.code[name] = bc
	return bc
}

// LookupCode retrieves previously interned bytecode by name.
func (vm *Vm) LookupCode(name string) ([]byte, bool) {
	vm.codeMu.RLock()
	defer vm.codeMu.RUnlock()
	bc, ok := vm.code[name]
	return bc, ok
}

// nextFd, nextChd allocate file and channel ids. These counters are
// "simpler monotonic increments" per spec — wrap-around is left
// implementation-defined, so this core does not guard against it.
func (vm *Vm) nextFd() edi.Fd {
	vm.fileMu.Lock()
	defer vm.fileMu.Unlock()
	id := vm.fileCtr & idMask
	vm.fileCtr++
	return edi.Fd(id)
}

func (vm *Vm) nextChd() edi.Chd {
	vm.chdMu.Lock()
	defer vm.chdMu.Unlock()
	id := vm.chdCtr & idMask
	vm.chdCtr++
	return edi.Chd(id)
}

// nextPid allocates a fresh pid in the correct shard, retrying on the
// (extremely unlikely, counter-exhaustion-only) event of a collision. 0
// is reserved for the kernel and is skipped by construction (the counter
// starts at 1).
func (vm *Vm) nextPid() edi.Pid {
	vm.pidCtrMu.Lock()
	defer vm.pidCtrMu.Unlock()
	if vm.pidCtr == 0 {
		vm.pidCtr = 1
	}
	for {
		id := vm.pidCtr & idMask
		vm.pidCtr++
		if id == 0 {
			continue
		}
		pid := edi.Pid(id)
		shard := vm.shardFor(id)
		shard.procMu.Lock()
		_, taken := shard.procs[pid]
		shard.procMu.Unlock()
		if !taken {
			return pid
		}
	}
}

// nextEvd allocates a fresh event id in the correct shard, by the same
// collision-retry policy as nextPid.
func (vm *Vm) nextEvd() edi.Evd {
	vm.evdCtrMu.Lock()
	defer vm.evdCtrMu.Unlock()
	if vm.evdCtr == 0 {
		vm.evdCtr = 1
	}
	for {
		id := vm.evdCtr & idMask
		vm.evdCtr++
		if id == 0 {
			continue
		}
		evd := edi.Evd(id)
		shard := vm.shardFor(id)
		shard.evMu.Lock()
		_, taken := shard.evts[evd]
		shard.evMu.Unlock()
		if !taken {
			return evd
		}
	}
}

// OpenFile registers an already-opened File under a freshly allocated Fd,
// permitted initially to owner only.
func (vm *Vm) OpenFile(f *ioevt.File, owner edi.Pid) edi.Fd {
	fd := vm.nextFd()
	vm.fileMu.Lock()
	vm.files[fd] = edi.FromPerms(f, []edi.Pid{owner})
	vm.fileMu.Unlock()
	return fd
}

// OpenChannel registers a new Channel under a freshly allocated Chd,
// permitted initially to owner only.
func (vm *Vm) OpenChannel(owner edi.Pid) edi.Chd {
	chd := vm.nextChd()
	vm.chdMu.Lock()
	vm.chds[chd] = edi.FromPerms(ipc.New(), []edi.Pid{owner})
	vm.chdMu.Unlock()
	return chd
}

// RegisterEvent places ev under a freshly allocated Evd in the shard that
// owns it, permitted initially to owner only.
func (vm *Vm) RegisterEvent(ev ioevt.Event, owner edi.Pid) edi.Evd {
	evd := vm.nextEvd()
	shard := vm.shardFor(uint64(evd))
	shard.evMu.Lock()
	shard.evts[evd] = edi.FromPerms(ev, []edi.Pid{owner})
	shard.evMu.Unlock()
	return evd
}

// WithFd looks up fd and, iff caller is permitted, invokes f with the
// wrapped File.
func WithFd[T any](vm *Vm, caller edi.Pid, fd edi.Fd, f func(*ioevt.File) T) (T, error) {
	var zero T
	vm.fileMu.Lock()
	ed, ok := vm.files[fd]
	vm.fileMu.Unlock()
	if !ok {
		return zero, &edi.NoSuchFdError{Fd: fd}
	}
	dev, ok := ed.Access(caller)
	if !ok {
		return zero, &edi.AccessDeniedError{Target: edi.FromFd(fd), Caller: caller}
	}
	return f(dev), nil
}

// WithChd looks up chd and, iff caller is permitted, invokes f with the
// wrapped Channel.
func WithChd[T any](vm *Vm, caller edi.Pid, chd edi.Chd, f func(*ipc.Channel) T) (T, error) {
	var zero T
	vm.chdMu.Lock()
	ed, ok := vm.chds[chd]
	vm.chdMu.Unlock()
	if !ok {
		return zero, &edi.NoSuchChdError{Chd: chd}
	}
	dev, ok := ed.Access(caller)
	if !ok {
		return zero, &edi.AccessDeniedError{Target: edi.FromChd(chd), Caller: caller}
	}
	return f(dev), nil
}

// WithPid looks up pid in its owning shard and, iff caller is permitted,
// invokes f with the wrapped Process.
func WithPid[T any](vm *Vm, caller edi.Pid, pid edi.Pid, f func(*process.Process) T) (T, error) {
	var zero T
	shard := vm.shardFor(uint64(pid))
	shard.procMu.Lock()
	ed, ok := shard.procs[pid]
	shard.procMu.Unlock()
	if !ok {
		return zero, &edi.NoSuchPidError{Pid: pid}
	}
	dev, ok := ed.Access(caller)
	if !ok {
		return zero, &edi.AccessDeniedError{Target: edi.FromPid(pid), Caller: caller}
	}
	return f(dev), nil
}

// WithEvd looks up evd in its owning shard and, iff caller is permitted,
// invokes f with the wrapped Event.
func WithEvd[T any](vm *Vm, caller edi.Pid, evd edi.Evd, f func(ioevt.Event) T) (T, error) {
	var zero T
	shard := vm.shardFor(uint64(evd))
	shard.evMu.Lock()
	ed, ok := shard.evts[evd]
	shard.evMu.Unlock()
	if !ok {
		return zero, &edi.NoSuchEvdError{Evd: evd}
	}
	dev, ok := ed.Access(caller)
	if !ok {
		return zero, &edi.AccessDeniedError{Target: edi.FromEvd(evd), Caller: caller}
	}
	return f(dev), nil
}

// allowOnFd, allowOnChd, allowOnPid, allowOnEvd grant newAcc access to an
// existing target, provided caller is itself permitted. Locking order is
// always routing lock (shard/global map) then the target Ed's own lock,
// matching spec.md §4.7 — never the reverse.
func (vm *Vm) allowOnFd(caller edi.Pid, fd edi.Fd, newAcc edi.Pid) error {
	vm.fileMu.Lock()
	ed, ok := vm.files[fd]
	vm.fileMu.Unlock()
	if !ok {
		return &edi.NoSuchFdError{Fd: fd}
	}
	if !ed.Allow(caller, newAcc) {
		return &edi.AccessDeniedError{Target: edi.FromFd(fd), Caller: caller}
	}
	return nil
}

func (vm *Vm) allowOnChd(caller edi.Pid, chd edi.Chd, newAcc edi.Pid) error {
	vm.chdMu.Lock()
	ed, ok := vm.chds[chd]
	vm.chdMu.Unlock()
	if !ok {
		return &edi.NoSuchChdError{Chd: chd}
	}
	if !ed.Allow(caller, newAcc) {
		return &edi.AccessDeniedError{Target: edi.FromChd(chd), Caller: caller}
	}
	return nil
}

func (vm *Vm) allowOnPid(caller edi.Pid, pid edi.Pid, newAcc edi.Pid) error {
	shard := vm.shardFor(uint64(pid))
	shard.procMu.Lock()
	ed, ok := shard.procs[pid]
	shard.procMu.Unlock()
	if !ok {
		return &edi.NoSuchPidError{Pid: pid}
	}
	if !ed.Allow(caller, newAcc) {
		return &edi.AccessDeniedError{Target: edi.FromPid(pid), Caller: caller}
	}
	return nil
}

func (vm *Vm) allowOnEvd(caller edi.Pid, evd edi.Evd, newAcc edi.Pid) error {
	shard := vm.shardFor(uint64(evd))
	shard.evMu.Lock()
	ed, ok := shard.evts[evd]
	shard.evMu.Unlock()
	if !ok {
		return &edi.NoSuchEvdError{Evd: evd}
	}
	if !ed.Allow(caller, newAcc) {
		return &edi.AccessDeniedError{Target: edi.FromEvd(evd), Caller: caller}
	}
	return nil
}

package vm

import (
	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/process"
	"github.com/sandia-minimega/alm/value"
)

// Spawner is a configuration builder for a new process: the four
// allow-sets the new process shall be granted access to, plus the set of
// pids pre-authorized as accessors of the new process itself.
type Spawner struct {
	vm     *Vm
	caller edi.Pid

	pids []edi.Pid
	fds  []edi.Fd
	chds []edi.Chd
	evds []edi.Evd
	self []edi.Pid
}

// NewSpawner starts building a spawn under the authority of caller:
// every grant made by the resulting Spawner is checked against caller's
// own permissions on each target, exactly as if caller had called
// allow_on_* directly.
func (vm *Vm) NewSpawner(caller edi.Pid) *Spawner {
	return &Spawner{vm: vm, caller: caller}
}

func (s *Spawner) AllowPid(p edi.Pid) *Spawner { s.pids = append(s.pids, p); return s }
func (s *Spawner) AllowFd(f edi.Fd) *Spawner   { s.fds = append(s.fds, f); return s }
func (s *Spawner) AllowChd(c edi.Chd) *Spawner { s.chds = append(s.chds, c); return s }
func (s *Spawner) AllowEvd(e edi.Evd) *Spawner { s.evds = append(s.evds, e); return s }

// PermitSelf pre-authorizes p as an accessor of the new process, as part
// of its initial permission set.
func (s *Spawner) PermitSelf(p edi.Pid) *Spawner { s.self = append(s.self, p); return s }

// Spawn allocates a fresh pid, constructs the Process, and grants it
// every accumulated allow-set under the caller's identity. If any grant
// fails, the partially-built process is canceled and never made visible
// in the VM's process table — no pid anywhere in the VM ends up holding
// the rolled-back capabilities of a failed attempt. On success the
// process is inserted into its shard and launched.
func (s *Spawner) Spawn(start value.Function) (edi.Pid, error) {
	vm := s.vm
	pid := vm.nextPid()
	proc := process.New(pid, start, nil, vm.id)
	ed := edi.FromPerms(proc, s.self)

	if err := s.grantAll(proc); err != nil {
		proc.Cancel()
		return 0, err
	}

	shard := vm.shardFor(uint64(pid))
	shard.procMu.Lock()
	shard.procs[pid] = ed
	shard.procMu.Unlock()

	proc.Launch()
	return pid, nil
}

// grantAll performs every accumulated grant under the spawner's caller
// identity, recording successful fd grants on proc's own local allow-list
// (process.Process.AllowFd) as it goes. It stops at the first failure.
func (s *Spawner) grantAll(proc *process.Process) error {
	vm := s.vm
	for _, fd := range s.fds {
		if err := vm.allowOnFd(s.caller, fd, proc.Pid()); err != nil {
			return err
		}
		proc.AllowFd(fd)
	}
	for _, p := range s.pids {
		if err := vm.allowOnPid(s.caller, p, proc.Pid()); err != nil {
			return err
		}
	}
	for _, c := range s.chds {
		if err := vm.allowOnChd(s.caller, c, proc.Pid()); err != nil {
			return err
		}
	}
	for _, e := range s.evds {
		if err := vm.allowOnEvd(s.caller, e, proc.Pid()); err != nil {
			return err
		}
	}
	return nil
}

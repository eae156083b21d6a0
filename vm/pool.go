package vm

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/ioevt"
	"github.com/sandia-minimega/alm/process"
)

// procPool is one shard of the VM's process and event tables. There is
// one shard per worker core; which shard owns a given pid or evd is
// pool_idx(id) = id mod len(pool) — see (*Vm).shardFor.
type procPool struct {
	procMu deadlock.Mutex
	procs  map[edi.Pid]edi.Ed[*process.Process]

	evMu deadlock.Mutex
	evts map[edi.Evd]edi.Ed[ioevt.Event]
}

func newProcPool() *procPool {
	return &procPool{
		procs: make(map[edi.Pid]edi.Ed[*process.Process]),
		evts:  make(map[edi.Evd]edi.Ed[ioevt.Event]),
	}
}

// shardFor routes an id to its owning shard: pool_idx(id) = id mod |pool|.
func (vm *Vm) shardFor(id uint64) *procPool {
	return vm.pool[id%uint64(len(vm.pool))]
}

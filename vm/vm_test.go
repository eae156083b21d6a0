package vm

import (
	"testing"

	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/ioevt"
	"github.com/sandia-minimega/alm/process"
	"github.com/sandia-minimega/alm/value"
)

func testVm(t *testing.T) *Vm {
	t.Helper()
	v := NewOpts().Cores(2).Alloc()
	t.Cleanup(func() {
		if err := v.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return v
}

func TestPidAllocationNeverZeroOrTagged(t *testing.T) {
	v := testVm(t)

	const tagMask = uint64(0x3) << 62
	for i := 0; i < 50; i++ {
		pid, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
		if err != nil {
			t.Fatalf("spawn %d: %v", i, err)
		}
		if pid == 0 {
			t.Fatalf("spawn %d produced pid 0", i)
		}
		if uint64(pid)&tagMask != 0 {
			t.Fatalf("spawn %d produced pid %d with tag bits set", i, pid)
		}
	}
}

func TestShardRoutingIsConsistent(t *testing.T) {
	v := testVm(t)

	for i := 0; i < 20; i++ {
		pid, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}

		shard := v.shardFor(uint64(pid))
		shard.procMu.Lock()
		_, onShard := shard.procs[pid]
		shard.procMu.Unlock()
		if !onShard {
			t.Fatalf("pid %d not found on its routed shard", pid)
		}

		got, err := WithPid(v, edi.Kernel, pid, func(p *process.Process) edi.Pid {
			return p.Pid()
		})
		if err != nil {
			t.Fatalf("lookup spawned pid %d: %v", pid, err)
		}
		if got != pid {
			t.Fatalf("looked up pid %d, got process with pid %d", pid, got)
		}
	}
}

func TestSpawnerAtomicityOnFailedFdGrant(t *testing.T) {
	v := testVm(t)

	before, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
	if err != nil {
		t.Fatalf("spawn before: %v", err)
	}

	_, err = v.NewSpawner(edi.Kernel).AllowFd(edi.Fd(999999)).Spawn(value.NoOp())
	if err == nil {
		t.Fatalf("expected spawn to fail on a nonexistent fd")
	}
	if _, ok := err.(*edi.NoSuchFdError); !ok {
		t.Fatalf("expected NoSuchFdError, got %T: %v", err, err)
	}

	// The failed attempt must not have left any pid reachable in the VM:
	// walk every shard and confirm nothing beyond the one known-good pid
	// from before the failed spawn is present.
	found := 0
	for _, shard := range v.pool {
		shard.procMu.Lock()
		for pid := range shard.procs {
			found++
			if pid != before {
				t.Errorf("unexpected pid %d visible after a failed spawn", pid)
			}
		}
		shard.procMu.Unlock()
	}
	if found != 1 {
		t.Fatalf("expected exactly 1 visible pid after the failed spawn, found %d", found)
	}

	// A subsequent successful spawn still works normally.
	after, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
	if err != nil {
		t.Fatalf("spawn after failed attempt: %v", err)
	}
	if after == before {
		t.Fatalf("expected a distinct pid for the new spawn")
	}
}

func TestAllowFdRequiresPermittedCaller(t *testing.T) {
	v := testVm(t)

	owner, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
	if err != nil {
		t.Fatalf("spawn owner: %v", err)
	}
	outsider, err := v.NewSpawner(edi.Kernel).Spawn(value.NoOp())
	if err != nil {
		t.Fatalf("spawn outsider: %v", err)
	}

	fd := v.OpenFile((*ioevt.File)(nil), owner)

	access := func(caller edi.Pid) error {
		_, err := WithFd(v, caller, fd, func(f *ioevt.File) struct{} { return struct{}{} })
		return err
	}

	if err := access(outsider); err == nil {
		t.Fatalf("expected outsider access to fail")
	} else if _, ok := err.(*edi.AccessDeniedError); !ok {
		t.Fatalf("expected AccessDeniedError, got %T: %v", err, err)
	}

	if err := access(owner); err != nil {
		t.Fatalf("expected owner access to succeed: %v", err)
	}

	if err := v.allowOnFd(owner, fd, outsider); err != nil {
		t.Fatalf("owner should be able to grant: %v", err)
	}
	if err := access(outsider); err != nil {
		t.Fatalf("outsider should now have access: %v", err)
	}
}

func TestCodeCacheInternLookup(t *testing.T) {
	v := testVm(t)

	if _, ok := v.LookupCode("missing"); ok {
		t.Fatalf("expected no entry for an unpublished name")
	}

	bc := []byte{0x01, 0x02, 0x03}
	got := v.InternCode("fn", bc)
	if string(got) != string(bc) {
		t.Fatalf("InternCode returned %v, want %v", got, bc)
	}

	other := []byte{0xFF}
	got2 := v.InternCode("fn", other)
	if string(got2) != string(bc) {
		t.Fatalf("re-interning the same name should return the original bytes, got %v", got2)
	}

	looked, ok := v.LookupCode("fn")
	if !ok || string(looked) != string(bc) {
		t.Fatalf("LookupCode(fn) = %v, %v; want %v, true", looked, ok, bc)
	}
}

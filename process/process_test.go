package process

import (
	"testing"

	"github.com/sandia-minimega/alm/edi"
	"github.com/sandia-minimega/alm/value"
)

func TestNewZeroesRegisters(t *testing.T) {
	start := value.NewFunction(value.Nil(), []byte{0x01}, []byte("start"))
	p := New(edi.Pid(7), start, map[edi.Fd]struct{}{edi.Stdin: {}}, 1)

	if p.Pid() != edi.Pid(7) {
		t.Errorf("pid = %d, want 7", p.Pid())
	}
	if p.State() != Constructed {
		t.Errorf("state = %v, want Constructed", p.State())
	}
	if !p.CurrentFunction().Equal(start) {
		t.Errorf("current function is not the start function")
	}
	if p.IP() != 0 {
		t.Errorf("ip = %d, want 0", p.IP())
	}

	p.WithRegs(func(r *RegSet) {
		if _, ok := r.Va.Byte(); ok {
			t.Errorf("Va should not be a Byte")
		}
		if r.Va.TypeCode() != value.TypeNil {
			t.Errorf("Va = %v, want Nil", r.Va.TypeCode())
		}
		if r.Ba != 0 || r.Bb != 0 || r.Bc != 0 || r.Bd != 0 {
			t.Errorf("byte registers not zeroed")
		}
		if r.Ia != 0 || r.Ua != 0 || r.Fa != 0 {
			t.Errorf("numeric registers not zeroed")
		}
		if !r.Fna.Equal(value.NoOp()) {
			t.Errorf("Fna = %v, want NoOp", r.Fna.Name())
		}
		if r.Ta.Len() != 0 {
			t.Errorf("Ta should start empty")
		}
	})

	if !p.FdAllowed(edi.Stdin) {
		t.Errorf("stdin should be in the initial allow-list")
	}
	if p.FdAllowed(edi.Stdout) {
		t.Errorf("stdout should not be in the initial allow-list")
	}
}

func TestLaunchThenCancelFails(t *testing.T) {
	p := New(edi.Pid(1), value.NoOp(), nil, 1)

	if !p.Launch() {
		t.Fatalf("first Launch should succeed")
	}
	if p.State() != Running {
		t.Fatalf("state = %v, want Running", p.State())
	}
	if p.Launch() {
		t.Errorf("second Launch should fail: already running")
	}
	if p.Cancel() {
		t.Errorf("Cancel should fail on a running process")
	}
	if p.State() != Running {
		t.Errorf("state changed after a rejected Cancel")
	}
}

func TestCancelBeforeLaunch(t *testing.T) {
	p := New(edi.Pid(2), value.NoOp(), nil, 1)

	if !p.Cancel() {
		t.Fatalf("Cancel should succeed on a constructed-but-not-launched process")
	}
	if p.State() != Cancelled {
		t.Fatalf("state = %v, want Cancelled", p.State())
	}
	if p.Launch() {
		t.Errorf("Launch should fail once cancelled")
	}
}

func TestAllowFd(t *testing.T) {
	p := New(edi.Pid(3), value.NoOp(), nil, 1)
	if p.FdAllowed(edi.Stdout) {
		t.Fatalf("stdout should not be allowed yet")
	}
	p.AllowFd(edi.Stdout)
	if !p.FdAllowed(edi.Stdout) {
		t.Errorf("stdout should be allowed after AllowFd")
	}
	fds := p.Fds()
	if len(fds) != 1 || fds[0] != edi.Stdout {
		t.Errorf("Fds() = %v, want [stdout]", fds)
	}
}

func TestVMRegistryResolvesAndDangles(t *testing.T) {
	type fakeVM struct{ name string }
	Register(42, fakeVM{name: "test-vm"})
	defer Deregister(42)

	p := New(edi.Pid(5), value.NoOp(), nil, 42)
	resolved, ok := p.VM()
	if !ok {
		t.Fatalf("expected the registered VM to resolve")
	}
	if resolved.(fakeVM).name != "test-vm" {
		t.Errorf("resolved the wrong VM")
	}

	Deregister(42)
	if _, ok := p.VM(); ok {
		t.Errorf("expected resolution to fail once the VM deregisters")
	}
}
